// Package render converts pixel grids into viewable or dumpable
// images. The PNG path windows the 16-bit data into 8 bits with a
// min-max stretch, which is what you want for a quick look at a
// diffraction frame.
package render

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"os"

	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
)

// Window returns the display window for g: its minimum and maximum
// pixel values.
func Window(g *frame.Grid) (lo, hi uint16) {
	st := g.Stats()
	return st.Min, st.Max
}

// EncodePNG renders g as an 8-bit grayscale PNG using a min-max
// stretch. A flat frame renders mid-gray.
func EncodePNG(g *frame.Grid) ([]byte, error) {
	lo, hi := Window(g)
	img := image.NewGray(g.Bounds())
	if hi == lo {
		for i := range img.Pix {
			img.Pix[i] = 128
		}
	} else {
		span := uint32(hi - lo)
		for i, v := range g.Pix {
			img.Pix[i] = uint8(uint32(v-lo) * 255 / span)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePNG writes the windowed PNG rendering of g to path.
func WritePNG(path string, g *frame.Grid) error {
	data, err := EncodePNG(g)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteRaw dumps g as little-endian uint16 values, row-major, with no
// header. Fits straight into numpy or ImageJ.
func WriteRaw(path string, g *frame.Grid) error {
	buf := make([]byte, 2*len(g.Pix))
	for i, v := range g.Pix {
		binary.LittleEndian.PutUint16(buf[2*i:], v)
	}
	return os.WriteFile(path, buf, 0o644)
}
