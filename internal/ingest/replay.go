package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Replay feeds previously captured files through the pipeline as if
// they arrived over the wire, for previewing a dataset without a
// detector attached. Files are sent in the order given, at rate frames
// per second; rate 0 sends them back to back. The channel closes after
// the last file or when ctx is cancelled.
func Replay(ctx context.Context, paths []string, rate float64, log *zap.SugaredLogger) <-chan File {
	var interval time.Duration
	if rate > 0 {
		interval = time.Duration(float64(time.Second) / rate)
	}

	out := make(chan File, 1)
	go func() {
		defer close(out)
		sent := 0
		for i, path := range paths {
			raw, err := os.ReadFile(path)
			if err != nil {
				log.Warnf("replay skipping %s: %v", path, err)
				continue
			}
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			select {
			case <-ctx.Done():
				return
			case out <- File{Seq: uint64(i + 1), Name: name, Data: raw}:
				sent++
			}
			if interval > 0 && i+1 < len(paths) {
				select {
				case <-ctx.Done():
					return
				case <-time.After(interval):
				}
			}
		}
		log.Infof("replayed %d files", sent)
	}()
	return out
}
