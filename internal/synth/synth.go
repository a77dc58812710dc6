// Package synth builds complete RODHyPix files from pixel grids. It
// carries its own copy of the writer-side header layout so generated
// fixtures exercise the reader without sharing its code.
package synth

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
	"github.com/danielnrainer/rodhypix-go/rodhypix/ty6"
)

const (
	textSize        = 256
	fullHeaderSize  = 2560
	shortHeaderSize = 768
)

// Options controls the generated header. Zero values pick realistic
// defaults; HeaderSize ShortHeader yields a file without the
// calibration sections.
type Options struct {
	Version    float64
	Tag        string
	HeaderSize int
	Supplement int
	Timestamp  string

	BinningX int
	BinningY int

	Gain              float64
	OverflowThreshold int32
	ExposureSeconds   float64
	DetectorType      int32
	PixelSizeMM       float64
	Wavelength        float64
	DistanceMM        float64
}

// Header sizes understood by the builder.
const (
	FullHeader  = fullHeaderSize
	ShortHeader = shortHeaderSize
)

func (o *Options) fill() {
	if o.Version == 0 {
		o.Version = 5.1
	}
	if o.Tag == "" {
		o.Tag = "TY6"
	}
	if o.HeaderSize == 0 {
		o.HeaderSize = fullHeaderSize
	}
	if o.Timestamp == "" {
		o.Timestamp = "2026-02-11 09:30:00"
	}
	if o.BinningX == 0 {
		o.BinningX = 1
	}
	if o.BinningY == 0 {
		o.BinningY = 1
	}
	if o.Gain == 0 {
		o.Gain = 1
	}
	if o.OverflowThreshold == 0 {
		o.OverflowThreshold = 1000000
	}
	if o.ExposureSeconds == 0 {
		o.ExposureSeconds = 0.1
	}
	if o.DetectorType == 0 {
		o.DetectorType = 1
	}
	if o.PixelSizeMM == 0 {
		o.PixelSizeMM = 0.1
	}
	if o.Wavelength == 0 {
		o.Wavelength = 0.02508
	}
	if o.DistanceMM == 0 {
		o.DistanceMM = 660
	}
}

// File compresses g and wraps it in a complete file image.
func File(g *frame.Grid, opt Options) []byte {
	linedata, offsets := ty6.EncodeImage(g)
	return Container(g.Width, g.Height, opt, linedata, offsets)
}

// Container assembles a file around caller-supplied payload bytes, so
// tests can pair a valid header with a hand-built payload.
func Container(width, height int, opt Options, linedata []byte, offsets []uint32) []byte {
	opt.fill()

	buf := make([]byte, opt.HeaderSize, opt.HeaderSize+4+len(linedata)+4*len(offsets))
	writeText(buf[:textSize], width, height, opt)
	writeBinary(buf, width, height, opt)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(len(linedata))))
	buf = append(buf, linedata...)
	for _, off := range offsets {
		buf = binary.LittleEndian.AppendUint32(buf, off)
	}
	return buf
}

func writeText(dst []byte, width, height int, opt Options) {
	var b strings.Builder
	fmt.Fprintf(&b, "OD SAPPHIRE  %.1f\n", opt.Version)
	fmt.Fprintf(&b, "COMPRESSION=%s\n", opt.Tag)
	fmt.Fprintf(&b, "NX= %d NY= %d NBYTE= 2 XF= 0 YF= 0\n", width, height)
	fmt.Fprintf(&b, "NHEADER= %d NG= 0 NS= 0 NK= 0 NSPARE= 0\n", opt.HeaderSize)
	fmt.Fprintf(&b, "NSUPPLEMENT= %d\n", opt.Supplement)
	fmt.Fprintf(&b, "TIME=%s", opt.Timestamp)

	text := b.String()
	if len(text) > textSize-1 {
		text = text[:textSize-1]
	}
	copy(dst, text)
	for i := len(text); i < textSize; i++ {
		dst[i] = ' '
	}
	dst[textSize-1] = 0x1a
}

// Binary header field offsets, mirrored from the reader.
const (
	offBinning           = 256
	offChipPixels        = 278
	offNumPoints         = 292
	offGain              = 824
	offOverflowFlags     = 1232
	offOverflowThreshold = 1240
	offExposure          = 1248
	offDetectorType      = 1316
	offPixelSize         = 1336
	offWavelength        = 2104
	offDistance          = 2248
)

func writeBinary(dst []byte, width, height int, opt Options) {
	limit := opt.HeaderSize
	put16 := func(off int, v int16) {
		if off+2 <= limit {
			binary.LittleEndian.PutUint16(dst[off:], uint16(v))
		}
	}
	put32 := func(off int, v int32) {
		if off+4 <= limit {
			binary.LittleEndian.PutUint32(dst[off:], uint32(v))
		}
	}
	putF := func(off int, v float64) {
		if off+8 <= limit {
			binary.LittleEndian.PutUint64(dst[off:], math.Float64bits(v))
		}
	}

	put16(offBinning, int16(opt.BinningX))
	put16(offBinning+2, int16(opt.BinningY))
	put16(offChipPixels, int16(width))
	put16(offChipPixels+2, int16(height))
	put16(offChipPixels+4, int16(width))
	put16(offChipPixels+6, int16(height))
	put32(offNumPoints, int32(width*height))

	putF(offGain, opt.Gain)
	put16(offOverflowFlags, 1)
	put16(offOverflowFlags+2, 1)
	put32(offOverflowThreshold, opt.OverflowThreshold)
	putF(offExposure, opt.ExposureSeconds)
	putF(offExposure+8, opt.ExposureSeconds/10)
	put32(offDetectorType, opt.DetectorType)
	putF(offPixelSize, opt.PixelSizeMM)
	putF(offPixelSize+8, opt.PixelSizeMM)
	putF(offWavelength, opt.Wavelength)
	putF(offDistance, opt.DistanceMM)
}
