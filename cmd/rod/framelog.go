package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielnrainer/rodhypix-go/internal/framelog"
	"github.com/danielnrainer/rodhypix-go/internal/render"
)

func newFrameLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "framelog",
		Short: "Inspect and export frame archives",
	}
	cmd.AddCommand(newFrameLogDumpCmd(), newFrameLogExportCmd())
	return cmd
}

func newFrameLogDumpCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print archived frame records",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runFrameLogDump(args[0], limit, asJSON)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of records to print, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per record instead of a table")
	return cmd
}

// dumpRecord is the JSON view of an archived frame, without the
// compressed pixel bytes.
type dumpRecord struct {
	Time            string  `json:"time"`
	Source          string  `json:"source,omitempty"`
	Seq             uint64  `json:"seq"`
	Name            string  `json:"name,omitempty"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	PixelSizeNM     float64 `json:"pixel_size_nm,omitempty"`
	ExposureSeconds float64 `json:"exposure_s,omitempty"`
	Min             uint16  `json:"min"`
	Max             uint16  `json:"max"`
	Mean            float64 `json:"mean"`
	CompressedBytes int     `json:"compressed_bytes"`
}

func runFrameLogDump(path string, limit int, asJSON bool) {
	r, err := framelog.Open(path)
	if err != nil {
		fatal(err)
	}
	defer r.Close()

	enc := json.NewEncoder(os.Stdout)
	count := 0
	for {
		if limit > 0 && count >= limit {
			break
		}
		rec, ts, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fatal(fmt.Errorf("record %d: %w", count, err))
		}
		if asJSON {
			err = enc.Encode(dumpRecord{
				Time:            ts.Format(time.RFC3339Nano),
				Source:          rec.Source,
				Seq:             rec.Seq,
				Name:            rec.Name,
				Width:           rec.Width,
				Height:          rec.Height,
				PixelSizeNM:     rec.PixelSizeNM,
				ExposureSeconds: rec.ExposureSeconds,
				Min:             rec.Min,
				Max:             rec.Max,
				Mean:            rec.Mean,
				CompressedBytes: len(rec.Pixels),
			})
			if err != nil {
				fatal(err)
			}
		} else {
			fmt.Printf("%4d  %s  #%-6d %-20s %dx%d min=%d max=%d mean=%.1f (%d bytes compressed)\n",
				count, ts.Format(time.RFC3339), rec.Seq, rec.Name,
				rec.Width, rec.Height, rec.Min, rec.Max, rec.Mean, len(rec.Pixels))
		}
		count++
	}
	if !asJSON {
		fmt.Printf("%d records\n", count)
	}
}

func newFrameLogExportCmd() *cobra.Command {
	var (
		outDir string
		format string
	)
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export archived frames as PNG or raw uint16 files",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runFrameLogExport(args[0], outDir, format)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "frames", "Output directory")
	cmd.Flags().StringVar(&format, "format", "png", "Output format: png or raw")
	return cmd
}

func runFrameLogExport(path, outDir, format string) {
	r, err := framelog.Open(path)
	if err != nil {
		fatal(err)
	}
	defer r.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fatal(err)
	}

	count := 0
	for {
		rec, _, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fatal(fmt.Errorf("record %d: %w", count, err))
		}
		g, err := rec.Grid()
		if err != nil {
			fatal(fmt.Errorf("record %d (%s): %w", count, rec.Name, err))
		}
		name := rec.Name
		if name == "" {
			name = fmt.Sprintf("record_%04d", count)
		}
		out := filepath.Join(outDir, fmt.Sprintf("%s_%06d.%s", name, rec.Seq, format))
		switch format {
		case "png":
			err = render.WritePNG(out, g)
		case "raw":
			err = render.WriteRaw(out, g)
		default:
			err = fmt.Errorf("unknown output format %q", format)
		}
		if err != nil {
			fatal(err)
		}
		count++
	}
	fmt.Printf("exported %d frames to %s\n", count, outDir)
}
