// Package rodhypix decodes RODHyPix detector images: an ASCII+binary
// header followed by a TY6-compressed little-endian pixel payload.
//
// The top-level entry points are Decode and DecodeFile. Header parsing
// is available separately through ParseHeader for tools that only need
// metadata, and Sniff gives a cheap format check for directory walks.
// All failures are reported as *DecodeError and match the package
// sentinels under errors.Is.
package rodhypix

import (
	"encoding/binary"
	"errors"
	"os"

	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
	"github.com/danielnrainer/rodhypix-go/rodhypix/ty6"
)

// Result is a fully decoded image.
type Result struct {
	Header *Header
	Grid   *frame.Grid
}

// PixelSizeNM returns the physical pixel size in nanometres, or 0 for
// files that predate the calibration fields.
func (r *Result) PixelSizeNM() float64 {
	return r.Header.PixelSizeNM()
}

// Decode parses and decompresses a complete in-memory file.
func Decode(raw []byte) (*Result, error) {
	h, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}
	linedata, offsets, err := splitPayload(raw, h)
	if err != nil {
		return nil, err
	}
	g, err := ty6.Decompress(linedata, offsets, h.Width, h.Height)
	if err != nil {
		kind := KindTruncatedPayload
		if errors.Is(err, ty6.ErrOverrun) {
			kind = KindPayloadOverrun
		}
		return nil, &DecodeError{Kind: kind, Offset: -1, Err: err}
	}
	return &Result{Header: h, Grid: g}, nil
}

// DecodeFile reads and decodes the file at path.
func DecodeFile(path string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// splitPayload slices the compressed line data and the per-line offset
// table out of raw. Layout after the header: an int32 byte count, that
// many bytes of line data, then one uint32 start offset per image row.
// Trailing bytes beyond the offset table are tolerated.
func splitPayload(raw []byte, h *Header) ([]byte, []uint32, error) {
	pos := h.HeaderSize
	if len(raw) < pos+4 {
		return nil, nil, decodeErr(KindTruncatedPayload, int64(len(raw)),
			"file is %d bytes, payload size field needs %d", len(raw), pos+4)
	}
	size := int(int32(binary.LittleEndian.Uint32(raw[pos:])))
	if size < 0 {
		return nil, nil, decodeErr(KindTruncatedPayload, int64(pos),
			"negative payload size %d", size)
	}
	need := pos + 4 + size + 4*h.Height
	if len(raw) < need {
		return nil, nil, decodeErr(KindTruncatedPayload, int64(len(raw)),
			"file is %d bytes, payload needs %d", len(raw), need)
	}
	linedata := raw[pos+4 : pos+4+size]
	table := raw[pos+4+size : need]
	offsets := make([]uint32, h.Height)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(table[4*i:])
	}
	return linedata, offsets, nil
}
