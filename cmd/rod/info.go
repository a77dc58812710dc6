package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielnrainer/rodhypix-go/internal/batch"
	"github.com/danielnrainer/rodhypix-go/rodhypix"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file|dir>...",
		Short: "Print header metadata without decoding pixel data",
		Args:  cobra.MinimumNArgs(1),
		Run:   runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) {
	failed := 0
	var paths []string
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", arg, err)
			failed++
			continue
		}
		if !st.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := batch.Scan(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", arg, err)
			failed++
			continue
		}
		if len(found) == 0 {
			fmt.Fprintf(os.Stderr, "%s: no images found\n", arg)
		}
		paths = append(paths, found...)
	}

	for i, path := range paths {
		if i > 0 {
			fmt.Println()
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		hdr, err := rodhypix.ParseHeader(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		printHeader(path, hdr)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func printHeader(path string, h *rodhypix.Header) {
	fmt.Printf("%s\n", path)
	fmt.Printf("  format version: %.1f\n", h.Version)
	fmt.Printf("  compression: %s\n", h.CompressionTag)
	fmt.Printf("  image: %dx%d pixels\n", h.Width, h.Height)
	fmt.Printf("  header: %d bytes", h.HeaderSize)
	if h.SupplementSize > 0 {
		fmt.Printf(" (+%d supplement)", h.SupplementSize)
	}
	fmt.Println()
	if h.Timestamp != "" {
		fmt.Printf("  acquired: %s\n", h.Timestamp)
	}
	if h.Present.Has(rodhypix.FieldDimensions) {
		fmt.Printf("  binning: %dx%d (chip %dx%d)\n", h.BinningX, h.BinningY, h.ChipWidth, h.ChipHeight)
	}
	if h.Present.Has(rodhypix.FieldExposure) {
		fmt.Printf("  exposure: %gs", h.ExposureSeconds)
		if h.OverflowExposureSeconds > 0 {
			fmt.Printf(" (overflow %gs)", h.OverflowExposureSeconds)
		}
		fmt.Println()
	}
	if h.Present.Has(rodhypix.FieldGain) {
		fmt.Printf("  gain: %g\n", h.Gain)
	}
	if h.Present.Has(rodhypix.FieldOverflow) {
		fmt.Printf("  overflow: flag=%d remeasure=%d threshold=%d\n",
			h.OverflowFlag, h.OverflowRemeasureFlag, h.OverflowThreshold)
	}
	if h.Present.Has(rodhypix.FieldDetectorType) {
		fmt.Printf("  detector type: %d\n", h.DetectorType)
	}
	if h.Present.Has(rodhypix.FieldPixelSize) {
		fmt.Printf("  pixel size: %g nm\n", h.PixelSizeNM())
	}
	if h.Present.Has(rodhypix.FieldWavelength) {
		fmt.Printf("  wavelength: %g\n", h.Wavelength)
	}
	if h.Present.Has(rodhypix.FieldDistance) {
		fmt.Printf("  distance: %g mm\n", h.Distance)
	}
}
