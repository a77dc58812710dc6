// Package ty6 implements the TY6 compression scheme used for the pixel
// payload of Rigaku Oxford Diffraction detector images.
//
// A payload is compressed line by line. Each line starts with an
// absolute first pixel, followed by blocks of 16 delta-coded samples
// packed at a per-half-block bit width, followed by up to 15 trailing
// delta-coded pixels. Deltas too wide for their block escape to int16
// or int32 literals appended after the block's bit fields.
package ty6

import (
	"errors"
	"fmt"

	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
)

const (
	blockSize     = 8
	shortOverflow = 254
	longOverflow  = 255

	// Escape thresholds for decoded block samples.
	shortOverflowSigned = shortOverflow - 127
	longOverflowSigned  = longOverflow - 127
)

var (
	// ErrTruncated reports line data that ran out before the line's
	// pixel count was reached.
	ErrTruncated = errors.New("ty6: truncated line data")

	// ErrOverrun reports line data that encodes more than the line's
	// pixel count.
	ErrOverrun = errors.New("ty6: surplus line data")
)

// A lineFunc decodes one compressed line into out (one int32 per
// pixel) and reports how many input bytes it consumed.
type lineFunc func(line []byte, out []int32) (int, error)

// Decompress decodes a TY6 payload into a width x height grid.
//
// linedata holds the concatenated compressed lines; offsets holds one
// start position per line, in line order. Line i occupies
// linedata[offsets[i]:offsets[i+1]] (the last line runs to the end of
// linedata) and must decode to exactly width pixels using exactly the
// bytes of its region: running out mid-line fails with ErrTruncated,
// leftover bytes fail with ErrOverrun. Decoded samples are clamped to
// [0, 65535] when stored.
func Decompress(linedata []byte, offsets []uint32, width, height int) (*frame.Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ty6: invalid dimensions %dx%d", width, height)
	}
	if len(offsets) != height {
		return nil, fmt.Errorf("ty6: %d line offsets for %d lines: %w", len(offsets), height, ErrTruncated)
	}

	decode := decodeLine
	g := frame.New(width, height)
	scratch := make([]int32, width)
	size := int64(len(linedata))

	for y := 0; y < height; y++ {
		start := int64(offsets[y])
		end := size
		if y+1 < height {
			end = int64(offsets[y+1])
		}
		if start > end || end > size {
			return nil, fmt.Errorf("ty6: line %d region [%d:%d] outside %d bytes of line data: %w",
				y, start, end, size, ErrTruncated)
		}

		region := linedata[start:end]
		consumed, err := decode(region, scratch)
		if err != nil {
			return nil, fmt.Errorf("ty6: line %d at payload byte %d: %w", y, start+int64(consumed), err)
		}
		if consumed != len(region) {
			return nil, fmt.Errorf("ty6: line %d: %d bytes left after %d pixels: %w",
				y, len(region)-consumed, width, ErrOverrun)
		}

		row := g.Row(y)
		for x, v := range scratch {
			switch {
			case v < 0:
				row[x] = 0
			case v > 0xffff:
				row[x] = 0xffff
			default:
				row[x] = uint16(v)
			}
		}
	}
	return g, nil
}
