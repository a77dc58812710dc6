package synth

import (
	"math"
	"math/rand"

	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
)

// Flat returns a grid with every pixel set to value.
func Flat(w, h int, value uint16) *frame.Grid {
	g := frame.New(w, h)
	for i := range g.Pix {
		g.Pix[i] = value
	}
	return g
}

// Gradient returns a horizontal ramp from 0 to peak.
func Gradient(w, h int, peak uint16) *frame.Grid {
	g := frame.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 0
			if w > 1 {
				v = int(peak) * x / (w - 1)
			}
			g.Set(x, y, uint16(v))
		}
	}
	return g
}

// Beam returns a centered Gaussian spot of the given peak intensity
// with per-pixel shot noise, the way a direct beam looks on the
// detector.
func Beam(w, h int, peak float64, seed int64) *frame.Grid {
	rng := rand.New(rand.NewSource(seed))
	g := frame.New(w, h)
	cx := float64(w) / 2
	cy := float64(h) / 2
	sigma2 := float64(w*h) / 20
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			base := peak * math.Exp(-(dx*dx+dy*dy)/sigma2)
			val := base + rng.NormFloat64()*math.Sqrt(base)
			g.Set(x, y, clampPixel(val))
		}
	}
	return g
}

// Noise returns uniform noise in [0, level].
func Noise(w, h int, level uint16, seed int64) *frame.Grid {
	rng := rand.New(rand.NewSource(seed))
	g := frame.New(w, h)
	for i := range g.Pix {
		g.Pix[i] = uint16(rng.Intn(int(level) + 1))
	}
	return g
}

// HotPixels overwrites count random pixels with value, simulating
// stuck detector channels.
func HotPixels(g *frame.Grid, count int, value uint16, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < count; i++ {
		g.Pix[rng.Intn(len(g.Pix))] = value
	}
}

func clampPixel(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}
