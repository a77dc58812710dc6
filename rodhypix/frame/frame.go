// Package frame holds the decoded detector image type shared by the
// decoder and everything downstream of it.
package frame

import "image"

// Grid is a decoded detector image: Width*Height unsigned 16-bit
// intensity samples in row-major order. len(Pix) == Width*Height.
type Grid struct {
	Width  int
	Height int
	Pix    []uint16
}

// New returns a zero-filled grid of the given dimensions.
func New(w, h int) *Grid {
	return &Grid{
		Width:  w,
		Height: h,
		Pix:    make([]uint16, w*h),
	}
}

// At returns the sample at (x, y). Panics when out of range, like a
// slice index.
func (g *Grid) At(x, y int) uint16 {
	return g.Pix[y*g.Width+x]
}

// Set stores v at (x, y).
func (g *Grid) Set(x, y int, v uint16) {
	g.Pix[y*g.Width+x] = v
}

// Row returns the y-th row as a subslice of the backing store.
func (g *Grid) Row(y int) []uint16 {
	return g.Pix[y*g.Width : (y+1)*g.Width]
}

// Bounds returns the grid's extent as an image rectangle anchored at
// the origin.
func (g *Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		Width:  g.Width,
		Height: g.Height,
		Pix:    make([]uint16, len(g.Pix)),
	}
	copy(out.Pix, g.Pix)
	return out
}

// Stats summarizes a grid's intensities.
type Stats struct {
	Min       uint16
	Max       uint16
	Mean      float64
	Sum       uint64
	Saturated int // samples at the 16-bit ceiling
}

// Stats scans the grid once. A zero-length grid reports zeros.
func (g *Grid) Stats() Stats {
	if len(g.Pix) == 0 {
		return Stats{}
	}
	s := Stats{Min: g.Pix[0], Max: g.Pix[0]}
	for _, v := range g.Pix {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		if v == 0xffff {
			s.Saturated++
		}
		s.Sum += uint64(v)
	}
	s.Mean = float64(s.Sum) / float64(len(g.Pix))
	return s
}
