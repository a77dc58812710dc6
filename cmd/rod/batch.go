package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielnrainer/rodhypix-go/internal/batch"
)

func newBatchCmd() *cobra.Command {
	var (
		workers     int
		format      string
		outDir      string
		framelogDir string
		failFast    bool
		noProgress  bool
	)
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Decode every image under a directory in parallel",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			opt := batch.Options{
				Workers:      cfg.Batch.Workers,
				Format:       cfg.Batch.Format,
				OutDir:       cfg.Batch.OutDir,
				FailFast:     cfg.Batch.FailFast,
				ShowProgress: !noProgress,
			}
			if cmd.Flags().Changed("workers") {
				opt.Workers = workers
			}
			if cmd.Flags().Changed("format") {
				opt.Format = format
			}
			if cmd.Flags().Changed("out") {
				opt.OutDir = outDir
			}
			if cmd.Flags().Changed("fail-fast") {
				opt.FailFast = failFast
			}
			opt.FrameLogDir = framelogDir
			runBatch(args[0], opt)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel decode workers (default: number of CPUs)")
	cmd.Flags().StringVar(&format, "format", "png", "Output format: png, raw or none")
	cmd.Flags().StringVarP(&outDir, "out", "o", "decoded", "Output directory")
	cmd.Flags().StringVar(&framelogDir, "framelog-dir", "", "Also archive decoded frames to this directory")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first file that fails to decode")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func runBatch(dir string, opt batch.Options) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := batch.Scan(dir)
	if err != nil {
		fatal(err)
	}
	if len(paths) == 0 {
		fmt.Printf("no images found under %s\n", dir)
		return
	}

	sum, failures, err := batch.Run(ctx, paths, opt)
	if err != nil {
		fatal(err)
	}
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "%s: %v\n", f.Path, f.Err)
	}
	fmt.Printf("decoded %d/%d files (%d failed) in %s\n",
		sum.Decoded, sum.Scanned, sum.Failed, sum.Elapsed.Round(time.Millisecond))
	if sum.Decoded > 0 {
		secs := sum.Elapsed.Seconds()
		if secs > 0 {
			fmt.Printf("  %.1f files/s, %.1f Mpixel/s, %.1f MB in\n",
				float64(sum.Decoded)/secs,
				float64(sum.Pixels)/secs/1e6,
				float64(sum.Bytes)/1e6)
		}
	}
	if sum.Failed > 0 {
		os.Exit(1)
	}
}
