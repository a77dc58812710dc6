// Package stats accumulates session counters for the live decode
// pipeline. One Aggregator is shared between the ingest loop and the
// status endpoint.
package stats

import (
	"sync"
	"time"

	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
)

type Aggregator struct {
	mu sync.Mutex

	startedAt time.Time
	received  uint64
	decoded   uint64
	failures  uint64
	bytesIn   uint64
	pixels    uint64

	lastSeq    uint64
	lastName   string
	lastWidth  int
	lastHeight int
	lastFrame  frame.Stats
	lastAt     time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{startedAt: time.Now()}
}

// RecordReceived counts an incoming file of n bytes.
func (a *Aggregator) RecordReceived(n int) {
	a.mu.Lock()
	a.received++
	a.bytesIn += uint64(n)
	a.mu.Unlock()
}

// RecordDecoded counts a successful decode and remembers the frame.
func (a *Aggregator) RecordDecoded(seq uint64, name string, g *frame.Grid) {
	st := g.Stats()
	a.mu.Lock()
	a.decoded++
	a.pixels += uint64(len(g.Pix))
	a.lastSeq = seq
	a.lastName = name
	a.lastWidth = g.Width
	a.lastHeight = g.Height
	a.lastFrame = st
	a.lastAt = time.Now()
	a.mu.Unlock()
}

// RecordFailure counts a frame that did not decode.
func (a *Aggregator) RecordFailure() {
	a.mu.Lock()
	a.failures++
	a.mu.Unlock()
}

// Snapshot is a point-in-time copy of the counters, shaped for the
// status endpoint.
type Snapshot struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Received       uint64  `json:"received"`
	Decoded        uint64  `json:"decoded"`
	Failures       uint64  `json:"failures"`
	BytesIn        uint64  `json:"bytes_in"`
	Pixels         uint64  `json:"pixels"`
	LastSeq        uint64  `json:"last_seq"`
	LastName       string  `json:"last_name"`
	LastWidth      int     `json:"last_width"`
	LastHeight     int     `json:"last_height"`
	LastMin        uint16  `json:"last_min"`
	LastMax        uint16  `json:"last_max"`
	LastMean       float64 `json:"last_mean"`
	LastSaturated  int     `json:"last_saturated"`
	LastAgeSeconds float64 `json:"last_age_seconds"`
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Snapshot{
		UptimeSeconds: time.Since(a.startedAt).Seconds(),
		Received:      a.received,
		Decoded:       a.decoded,
		Failures:      a.failures,
		BytesIn:       a.bytesIn,
		Pixels:        a.pixels,
		LastSeq:       a.lastSeq,
		LastName:      a.lastName,
		LastWidth:     a.lastWidth,
		LastHeight:    a.lastHeight,
		LastMin:       a.lastFrame.Min,
		LastMax:       a.lastFrame.Max,
		LastMean:      a.lastFrame.Mean,
		LastSaturated: a.lastFrame.Saturated,
	}
	if !a.lastAt.IsZero() {
		s.LastAgeSeconds = time.Since(a.lastAt).Seconds()
	}
	return s
}
