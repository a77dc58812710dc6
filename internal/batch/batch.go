// Package batch decodes directories of RODHyPix files in parallel and
// writes per-file outputs.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/danielnrainer/rodhypix-go/internal/framelog"
	"github.com/danielnrainer/rodhypix-go/internal/render"
	"github.com/danielnrainer/rodhypix-go/rodhypix"
)

// Options controls a batch run.
type Options struct {
	Workers      int    // worker count, defaults to NumCPU
	Format       string // "png", "raw" or "none"
	OutDir       string
	FrameLogDir  string // when set, archive every decoded frame
	FailFast     bool
	ShowProgress bool
}

// Summary totals one batch run.
type Summary struct {
	Scanned int
	Decoded int
	Failed  int
	Pixels  uint64
	Bytes   uint64
	Elapsed time.Duration
}

// FileError ties a decode failure to its file.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

// Scan walks dir and returns the files that look like RODHyPix images,
// in lexical order.
func Scan(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := sniffFile(path)
		if err != nil {
			return err
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func sniffFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	prefix := make([]byte, 256)
	n, err := f.Read(prefix)
	if err != nil && n == 0 {
		return false, nil
	}
	return rodhypix.Sniff(prefix[:n]), nil
}

// Run decodes every path with a bounded worker pool. Decode failures
// are collected per file; with FailFast the first failure cancels the
// remaining work and is returned.
func Run(ctx context.Context, paths []string, opt Options) (Summary, []FileError, error) {
	start := time.Now()
	summary := Summary{Scanned: len(paths)}

	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if opt.OutDir != "" && opt.Format != "none" {
		if err := os.MkdirAll(opt.OutDir, 0o755); err != nil {
			return summary, nil, err
		}
	}

	var archive *framelog.Writer
	if opt.FrameLogDir != "" {
		w, err := framelog.Create(opt.FrameLogDir, "batch")
		if err != nil {
			return summary, nil, err
		}
		archive = w
		defer archive.Close()
	}

	var bar *progressbar.ProgressBar
	if opt.ShowProgress {
		bar = progressbar.Default(int64(len(paths)), "decoding")
	}

	var mu sync.Mutex
	var failures []FileError

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			defer func() {
				if bar != nil {
					_ = bar.Add(1)
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}

			raw, err := os.ReadFile(path)
			if err == nil {
				var res *rodhypix.Result
				res, err = rodhypix.Decode(raw)
				if err == nil {
					err = writeOutputs(path, i, res, opt, archive)
				}
				if err == nil {
					mu.Lock()
					summary.Decoded++
					summary.Pixels += uint64(len(res.Grid.Pix))
					summary.Bytes += uint64(len(raw))
					mu.Unlock()
					return nil
				}
			}

			mu.Lock()
			summary.Failed++
			failures = append(failures, FileError{Path: path, Err: err})
			mu.Unlock()
			if opt.FailFast {
				return FileError{Path: path, Err: err}
			}
			return nil
		})
	}

	err := g.Wait()
	summary.Elapsed = time.Since(start)
	sort.Slice(failures, func(a, b int) bool { return failures[a].Path < failures[b].Path })
	return summary, failures, err
}

func writeOutputs(path string, index int, res *rodhypix.Result, opt Options, archive *framelog.Writer) error {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if opt.OutDir != "" {
		switch opt.Format {
		case "png":
			if err := render.WritePNG(filepath.Join(opt.OutDir, base+".png"), res.Grid); err != nil {
				return fmt.Errorf("write png: %w", err)
			}
		case "raw":
			if err := render.WriteRaw(filepath.Join(opt.OutDir, base+".raw"), res.Grid); err != nil {
				return fmt.Errorf("write raw: %w", err)
			}
		case "none", "":
		default:
			return fmt.Errorf("unknown output format %q", opt.Format)
		}
	}

	if archive != nil {
		rec := &framelog.Record{
			Source:          path,
			Seq:             uint64(index + 1),
			Name:            base,
			PixelSizeNM:     res.PixelSizeNM(),
			ExposureSeconds: res.Header.ExposureSeconds,
		}
		rec.SetGrid(res.Grid)
		if err := archive.Append(rec); err != nil {
			return fmt.Errorf("archive frame: %w", err)
		}
	}
	return nil
}
