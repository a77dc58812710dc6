package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielnrainer/rodhypix-go/internal/config"
	"github.com/danielnrainer/rodhypix-go/internal/monitor"
	"github.com/danielnrainer/rodhypix-go/internal/stats"
)

func newWatchCmd() *cobra.Command {
	var (
		url      string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll a running rod serve instance and print its counters",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if cmd.Flags().Changed("url") {
				cfg.Monitor.URL = url
			}
			if cmd.Flags().Changed("interval") {
				cfg.Monitor.Interval = config.Duration{Duration: interval}
			}
			runWatch(cfg.Monitor.URL, cfg.Monitor.Interval.Duration)
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:8080/status", "Status URL of the serve instance")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	return cmd
}

func runWatch(url string, interval time.Duration) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var prevDecoded uint64
	var havePrev bool
	monitor.Poll(ctx, url, interval, func(s stats.Snapshot, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
			havePrev = false
			return
		}
		rate := 0.0
		if havePrev && interval > 0 && s.Decoded >= prevDecoded {
			rate = float64(s.Decoded-prevDecoded) / interval.Seconds()
		}
		prevDecoded = s.Decoded
		havePrev = true
		line := fmt.Sprintf("received=%d decoded=%d failures=%d rate=%.1f/s",
			s.Received, s.Decoded, s.Failures, rate)
		if s.LastName != "" {
			line += fmt.Sprintf("  last=#%d %s %dx%d mean=%.1f",
				s.LastSeq, s.LastName, s.LastWidth, s.LastHeight, s.LastMean)
		}
		fmt.Println(line)
	})
}
