// Package monitor polls a running preview server's status endpoint,
// for rod watch and for scripting against a live session.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/danielnrainer/rodhypix-go/internal/stats"
)

// Fetch retrieves one status snapshot from url.
func Fetch(ctx context.Context, client *http.Client, url string) (stats.Snapshot, error) {
	var snap stats.Snapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return snap, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, fmt.Errorf("status decode: %w", err)
	}
	return snap, nil
}

// Poll fetches the status every interval and hands each result to
// update until ctx is cancelled. The first fetch happens immediately.
func Poll(ctx context.Context, url string, interval time.Duration, update func(stats.Snapshot, error)) {
	if url == "" || update == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	client := &http.Client{Timeout: 900 * time.Millisecond}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := Fetch(ctx, client, url)
		if ctx.Err() != nil {
			return
		}
		update(snap, err)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
