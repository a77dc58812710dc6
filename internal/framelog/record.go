package framelog

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
)

// Record is one archived frame. Pixels holds the zstd-compressed
// little-endian uint16 values, row-major.
type Record struct {
	Source          string  `cbor:"source"`
	Seq             uint64  `cbor:"seq"`
	Name            string  `cbor:"name"`
	Width           int     `cbor:"width"`
	Height          int     `cbor:"height"`
	PixelSizeNM     float64 `cbor:"pixel_size_nm"`
	ExposureSeconds float64 `cbor:"exposure_s"`
	Min             uint16  `cbor:"min"`
	Max             uint16  `cbor:"max"`
	Mean            float64 `cbor:"mean"`
	Pixels          []byte  `cbor:"pixels"`
}

var zstdEnc = mustNewZstdEncoder()
var zstdDec = mustNewZstdDecoder()

func mustNewZstdEncoder() *zstd.Encoder {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	return enc
}

func mustNewZstdDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	return dec
}

// SetGrid stores g into the record: dimensions, summary statistics and
// compressed pixels.
func (r *Record) SetGrid(g *frame.Grid) {
	st := g.Stats()
	r.Width = g.Width
	r.Height = g.Height
	r.Min = st.Min
	r.Max = st.Max
	r.Mean = st.Mean

	raw := make([]byte, 2*len(g.Pix))
	for i, v := range g.Pix {
		binary.LittleEndian.PutUint16(raw[2*i:], v)
	}
	r.Pixels = zstdEnc.EncodeAll(raw, nil)
}

// Grid decompresses the record's pixels.
func (r *Record) Grid() (*frame.Grid, error) {
	raw, err := zstdDec.DecodeAll(r.Pixels, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	if len(raw) != 2*r.Width*r.Height {
		return nil, fmt.Errorf("record has %d pixel bytes, want %d for %dx%d",
			len(raw), 2*r.Width*r.Height, r.Width, r.Height)
	}
	g := frame.New(r.Width, r.Height)
	for i := range g.Pix {
		g.Pix[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return g, nil
}
