package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielnrainer/rodhypix-go/internal/render"
	"github.com/danielnrainer/rodhypix-go/rodhypix"
)

func newDecodeCmd() *cobra.Command {
	var (
		outPath string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "decode <file>...",
		Short: "Decode images and write them as PNG or raw uint16",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if outPath != "" && len(args) > 1 {
				fatal(fmt.Errorf("--out only applies to a single input file"))
			}
			for i, path := range args {
				if i > 0 {
					fmt.Println()
				}
				runDecode(path, outPath, format)
			}
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default: input name with new extension)")
	cmd.Flags().StringVar(&format, "format", "png", "Output format: png, raw or none")
	return cmd
}

func runDecode(path, outPath, format string) {
	res, err := rodhypix.DecodeFile(path)
	if err != nil {
		fatal(err)
	}
	st := res.Grid.Stats()
	fmt.Printf("%s: %dx%d pixels\n", path, res.Grid.Width, res.Grid.Height)
	fmt.Printf("  min=%d max=%d mean=%.1f saturated=%d\n", st.Min, st.Max, st.Mean, st.Saturated)
	if ps := res.PixelSizeNM(); ps > 0 {
		fmt.Printf("  pixel size: %g nm\n", ps)
	}

	if format == "none" {
		return
	}
	if outPath == "" {
		base := strings.TrimSuffix(path, filepath.Ext(path))
		outPath = base + "." + format
	}
	switch format {
	case "png":
		err = render.WritePNG(outPath, res.Grid)
	case "raw":
		err = render.WriteRaw(outPath, res.Grid)
	default:
		err = fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		fatal(err)
	}
	fmt.Printf("  wrote %s\n", outPath)
}
