package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielnrainer/rodhypix-go/internal/batch"
	"github.com/danielnrainer/rodhypix-go/internal/config"
	"github.com/danielnrainer/rodhypix-go/internal/framelog"
	"github.com/danielnrainer/rodhypix-go/internal/ingest"
	"github.com/danielnrainer/rodhypix-go/internal/server"
	"github.com/danielnrainer/rodhypix-go/internal/stats"
	"github.com/danielnrainer/rodhypix-go/rodhypix"
)

func newServeCmd() *cobra.Command {
	var (
		listen      string
		endpoint    string
		uiRate      float64
		workers     int
		frameLog    bool
		frameLogDir string
		logEvery    int
		replayDir   string
		replayRate  float64
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Decode a ZeroMQ image stream and serve a live preview",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if cmd.Flags().Changed("listen") {
				cfg.Serve.Listen = listen
			}
			if cmd.Flags().Changed("endpoint") {
				cfg.Serve.Endpoint = endpoint
			}
			if cmd.Flags().Changed("ui-rate") {
				cfg.Serve.UIRate = uiRate
			}
			if cmd.Flags().Changed("framelog") {
				cfg.Serve.FrameLog.Enabled = frameLog
			}
			if cmd.Flags().Changed("framelog-dir") {
				cfg.Serve.FrameLog.Dir = frameLogDir
			}
			runServe(cfg, workers, logEvery, replayDir, replayRate)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "HTTP listen address for the preview UI")
	cmd.Flags().StringVar(&endpoint, "endpoint", "tcp://127.0.0.1:5555", "ZeroMQ endpoint to pull images from")
	cmd.Flags().Float64Var(&uiRate, "ui-rate", 4, "Maximum preview updates per second")
	cmd.Flags().IntVar(&workers, "workers", 2, "Number of decode workers")
	cmd.Flags().BoolVar(&frameLog, "framelog", false, "Archive every decoded frame to disk")
	cmd.Flags().StringVar(&frameLogDir, "framelog-dir", "framelogs", "Directory for frame archives")
	cmd.Flags().IntVar(&logEvery, "log-every", 100, "Log every Nth ingest error")
	cmd.Flags().StringVar(&replayDir, "replay", "", "Replay captured files from a directory instead of pulling")
	cmd.Flags().Float64Var(&replayRate, "replay-rate", 10, "Frames per second when replaying, 0 for full speed")
	return cmd
}

func runServe(cfg *config.Config, workers, logEvery int, replayDir string, replayRate float64) {
	log := newLogger(cfg)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if workers < 1 {
		workers = 1
	}

	agg := stats.NewAggregator()

	var archive *framelog.Writer
	if cfg.Serve.FrameLog.Enabled {
		w, err := framelog.Create(cfg.Serve.FrameLog.Dir, "stream")
		if err != nil {
			fatal(err)
		}
		archive = w
		log.Infof("archiving frames to %s", w.Path())
		go func() {
			<-ctx.Done()
			if err := w.Close(); err != nil {
				log.Warnf("frame archive close failed: %v", err)
			}
		}()
	}

	source := cfg.Serve.Endpoint
	var files <-chan ingest.File
	if replayDir != "" {
		paths, err := batch.Scan(replayDir)
		if err != nil {
			fatal(err)
		}
		if len(paths) == 0 {
			fatal(fmt.Errorf("no images found under %s", replayDir))
		}
		source = replayDir
		log.Infof("replaying %d files from %s", len(paths), replayDir)
		files = ingest.Replay(ctx, paths, replayRate, log)
	} else {
		stream, err := ingest.Stream(ctx, cfg.Serve.Endpoint, logEvery, log)
		if err != nil {
			fatal(err)
		}
		log.Infof("pulling images from %s", cfg.Serve.Endpoint)
		files = stream
	}

	updates := make(chan server.Update, 16)
	var minInterval time.Duration
	if cfg.Serve.UIRate > 0 {
		minInterval = time.Duration(float64(time.Second) / cfg.Serve.UIRate)
	}
	var sendMu sync.Mutex
	var lastSent time.Time

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for f := range files {
				agg.RecordReceived(len(f.Data))
				res, err := rodhypix.Decode(f.Data)
				if err != nil {
					agg.RecordFailure()
					log.Warnf("decode %s: %v", f.Name, err)
					continue
				}
				agg.RecordDecoded(f.Seq, f.Name, res.Grid)

				if archive != nil {
					rec := &framelog.Record{
						Source:          source,
						Seq:             f.Seq,
						Name:            f.Name,
						PixelSizeNM:     res.PixelSizeNM(),
						ExposureSeconds: res.Header.ExposureSeconds,
					}
					rec.SetGrid(res.Grid)
					if err := archive.Append(rec); err != nil {
						log.Warnf("frame archive write failed: %v", err)
					}
				}

				sendMu.Lock()
				due := minInterval == 0 || time.Since(lastSent) >= minInterval
				if due {
					lastSent = time.Now()
				}
				sendMu.Unlock()
				if !due {
					continue
				}
				update, err := server.FrameUpdate(f.Seq, f.Name, res)
				if err != nil {
					log.Warnf("render %s: %v", f.Name, err)
					continue
				}
				select {
				case updates <- update:
				default:
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(updates)
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := agg.Snapshot()
				log.Infof("stream stats: received=%d decoded=%d failures=%d pixels=%d",
					s.Received, s.Decoded, s.Failures, s.Pixels)
			}
		}
	}()

	log.Infof("preview UI listening at http://%s", cfg.Serve.Listen)
	if err := server.Run(ctx, cfg.Serve, updates, agg.Snapshot, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
