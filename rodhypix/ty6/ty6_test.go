package ty6

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
)

func decodeRow(t *testing.T, fn lineFunc, line []byte, w int) []int32 {
	t.Helper()
	out := make([]int32, w)
	consumed, err := fn(line, out)
	if err != nil {
		t.Fatalf("line decode failed: %v", err)
	}
	if consumed != len(line) {
		t.Fatalf("consumed %d of %d bytes", consumed, len(line))
	}
	return out
}

func TestFirstPixelForms(t *testing.T) {
	cases := []struct {
		name string
		line []byte
		want int32
	}{
		{"zero", []byte{127}, 0},
		{"max-direct", []byte{253}, 126},
		{"min-direct", []byte{0}, -127},
		{"short-escape", []byte{254, 0x2c, 0x01}, 300},
		{"short-escape-negative", []byte{254, 0xfb, 0xff}, -5},
		{"long-escape", []byte{255, 0x40, 0x9c, 0x00, 0x00}, 40000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range Kernels() {
				got := decodeRow(t, lineKernels[k], tc.line, 1)
				if got[0] != tc.want {
					t.Fatalf("kernel %v: got %d, want %d", k, got[0], tc.want)
				}
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rows := map[string][]uint16{
		"single":      {42},
		"flat":        {10, 10, 10, 10},
		"step":        {10, 10, 10, 10, 20, 20, 20, 20},
		"ramp17":      rampRow(17, 3),
		"ramp33":      rampRow(33, 7),
		"block-exact": rampRow(1 + 16, 1),
		"jumps":       {0, 65535, 0, 65535, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17},
		"saturated":   {65535, 65535, 65535, 65535, 65535, 65535, 65535, 65535, 65535, 65535, 65535, 65535, 65535, 65535, 65535, 65535, 65535},
	}
	for name, row := range rows {
		t.Run(name, func(t *testing.T) {
			line := EncodeLine(row)
			for _, k := range Kernels() {
				got := decodeRow(t, lineKernels[k], line, len(row))
				for i, v := range got {
					if v != int32(row[i]) {
						t.Fatalf("kernel %v: pixel %d = %d, want %d", k, i, v, row[i])
					}
				}
			}
		})
	}
}

func rampRow(w int, step uint16) []uint16 {
	row := make([]uint16, w)
	var v uint16
	for i := range row {
		row[i] = v
		v += step
	}
	return row
}

func TestKernelEquivalenceRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	widths := []int{1, 2, 15, 16, 17, 31, 32, 33, 64, 177, 512}
	for _, w := range widths {
		for trial := 0; trial < 20; trial++ {
			row := make([]uint16, w)
			v := rng.Intn(1 << 16)
			for i := range row {
				switch rng.Intn(10) {
				case 0:
					v = rng.Intn(1 << 16)
				case 1:
					v += rng.Intn(4000) - 2000
				default:
					v += rng.Intn(7) - 3
				}
				if v < 0 {
					v = 0
				}
				if v > 0xffff {
					v = 0xffff
				}
				row[i] = uint16(v)
			}

			line := EncodeLine(row)
			base := make([]int32, w)
			fast := make([]int32, w)
			cb, err := decodeLineBase(line, base)
			if err != nil {
				t.Fatalf("w=%d trial=%d: base decode: %v", w, trial, err)
			}
			cf, err := decodeLineFast(line, fast)
			if err != nil {
				t.Fatalf("w=%d trial=%d: fast decode: %v", w, trial, err)
			}
			if cb != cf {
				t.Fatalf("w=%d trial=%d: consumed %d vs %d bytes", w, trial, cb, cf)
			}
			for i := range base {
				if base[i] != fast[i] {
					t.Fatalf("w=%d trial=%d: pixel %d: base %d fast %d", w, trial, i, base[i], fast[i])
				}
			}
			for i := range base {
				if base[i] != int32(row[i]) {
					t.Fatalf("w=%d trial=%d: pixel %d = %d, want %d", w, trial, i, base[i], row[i])
				}
			}
		}
	}
}

// packBits writes the low nbit bits of val into field starting at bit
// position bitpos.
func packBits(field []byte, bitpos int, val uint32, nbit int) {
	for b := 0; b < nbit; b++ {
		if val&(1<<b) != 0 {
			field[(bitpos+b)>>3] |= 1 << uint((bitpos+b)&7)
		}
	}
}

// buildWideLine assembles a 17-pixel line whose one block packs both
// halves at a bit width the encoder never emits (9-15 bits).
func buildWideLine(t *testing.T, first int32, deltas *[16]int32, nbit int) []byte {
	t.Helper()
	zeroAt := int32(1)<<(nbit-1) - 1
	line := []byte{byte(first + 127)}
	line = append(line, byte(nbit)|byte(nbit)<<4)
	for half := 0; half < 2; half++ {
		field := make([]byte, nbit)
		for j := 0; j < blockSize; j++ {
			d := deltas[half*blockSize+j]
			raw := d + zeroAt
			if raw < 0 || raw >= int32(1)<<nbit {
				t.Fatalf("delta %d does not fit %d bits", d, nbit)
			}
			if d >= shortOverflowSigned {
				t.Fatalf("delta %d would be read as an escape", d)
			}
			packBits(field, nbit*j, uint32(raw), nbit)
		}
		line = append(line, field...)
	}
	return line
}

func TestWideBitWidths(t *testing.T) {
	for nbit := 9; nbit <= 15; nbit++ {
		zeroAt := int32(1)<<(nbit-1) - 1
		var deltas [16]int32
		for i := range deltas {
			switch i % 4 {
			case 0:
				deltas[i] = -zeroAt
			case 1:
				deltas[i] = 126
			case 2:
				deltas[i] = -(zeroAt / 2)
			default:
				deltas[i] = int32(i)
			}
		}
		line := buildWideLine(t, 100, &deltas, nbit)

		want := make([]int32, 17)
		want[0] = 100
		for i := 0; i < 16; i++ {
			want[i+1] = want[i] + deltas[i]
		}
		for _, k := range Kernels() {
			got := decodeRow(t, lineKernels[k], line, 17)
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("nbit=%d kernel %v: pixel %d = %d, want %d", nbit, k, i, got[i], want[i])
				}
			}
		}
	}
}

func TestDecompress(t *testing.T) {
	src := frame.New(4, 2)
	copy(src.Pix, []uint16{10, 10, 10, 10, 20, 20, 20, 20})

	linedata, offsets := EncodeImage(src)
	g, err := Decompress(linedata, offsets, 4, 2)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if g.Width != 4 || g.Height != 2 {
		t.Fatalf("unexpected dimensions %dx%d", g.Width, g.Height)
	}
	for i, v := range g.Pix {
		if v != src.Pix[i] {
			t.Fatalf("pixel %d = %d, want %d", i, v, src.Pix[i])
		}
	}
}

func TestDecompressClamps(t *testing.T) {
	// One line, two pixels: starts at 5, drops by 300 to -295, which
	// must clamp to 0. A second line jumps above 16 bits.
	low := []byte{132}                                   // first pixel 5
	low = append(low, 254, 0xd4, 0xfe)                   // delta -300
	high := []byte{255, 0x50, 0xc3, 0x00, 0x00}          // first pixel 50000
	high = append(high, 255, 0x50, 0xc3, 0x00, 0x00)     // delta +50000 -> 100000
	linedata := append(append([]byte{}, low...), high...)
	offsets := []uint32{0, uint32(len(low))}

	g, err := Decompress(linedata, offsets, 2, 2)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if g.At(0, 0) != 5 || g.At(1, 0) != 0 {
		t.Fatalf("low line = %v, want [5 0]", g.Row(0))
	}
	if g.At(0, 1) != 50000 || g.At(1, 1) != 0xffff {
		t.Fatalf("high line = %v, want [50000 65535]", g.Row(1))
	}
}

func TestDecompressTruncated(t *testing.T) {
	src := frame.New(40, 3)
	for i := range src.Pix {
		src.Pix[i] = uint16(i * 31 % 5000)
	}
	linedata, offsets := EncodeImage(src)

	for cut := 1; cut <= 6; cut++ {
		_, err := Decompress(linedata[:len(linedata)-cut], offsets, 40, 3)
		if err == nil {
			t.Fatalf("cut=%d: expected error", cut)
		}
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("cut=%d: got %v, want ErrTruncated", cut, err)
		}
	}
}

func TestDecompressSurplus(t *testing.T) {
	src := frame.New(8, 2)
	linedata, offsets := EncodeImage(src)

	// Extra byte at the end of the last line's region.
	_, err := Decompress(append(linedata, 0x00), offsets, 8, 2)
	if !errors.Is(err, ErrOverrun) {
		t.Fatalf("trailing byte: got %v, want ErrOverrun", err)
	}

	// Extra byte inside the first line's region.
	firstLen := int(offsets[1])
	padded := append([]byte{}, linedata[:firstLen]...)
	padded = append(padded, 0x00)
	padded = append(padded, linedata[firstLen:]...)
	shifted := []uint32{0, offsets[1] + 1}
	_, err = Decompress(padded, shifted, 8, 2)
	if !errors.Is(err, ErrOverrun) {
		t.Fatalf("padded line: got %v, want ErrOverrun", err)
	}
}

func TestDecompressBadOffsets(t *testing.T) {
	src := frame.New(8, 2)
	linedata, offsets := EncodeImage(src)

	_, err := Decompress(linedata, []uint32{0, uint32(len(linedata)) + 10}, 8, 2)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("out of range offset: got %v, want ErrTruncated", err)
	}

	_, err = Decompress(linedata, []uint32{offsets[1], 0}, 8, 2)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("decreasing offsets: got %v, want ErrTruncated", err)
	}

	_, err = Decompress(linedata, offsets[:1], 8, 2)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("short offset table: got %v, want ErrTruncated", err)
	}
}

func TestKernelSelection(t *testing.T) {
	orig := Active()
	defer func() {
		if err := Select(orig); err != nil {
			t.Fatalf("restore kernel: %v", err)
		}
	}()

	for _, k := range Kernels() {
		if err := Select(k); err != nil {
			t.Fatalf("Select(%v): %v", k, err)
		}
		if Active() != k {
			t.Fatalf("Active() = %v after Select(%v)", Active(), k)
		}
	}
	if err := Select(Kernel(99)); err == nil {
		t.Fatal("Select(99) should fail")
	}
	if KernelBase.String() != "base" || KernelFast.String() != "fast" {
		t.Fatalf("unexpected kernel names: %v %v", KernelBase, KernelFast)
	}
}

func benchmarkDecompress(b *testing.B, k Kernel) {
	orig := Active()
	defer func() { _ = Select(orig) }()
	if err := Select(k); err != nil {
		b.Fatal(err)
	}

	rng := rand.New(rand.NewSource(7))
	src := frame.New(1024, 1024)
	v := 800
	for i := range src.Pix {
		v += rng.Intn(9) - 4
		if rng.Intn(500) == 0 {
			v += rng.Intn(20000)
		}
		if v < 0 {
			v = 0
		}
		if v > 0xffff {
			v = 0xffff
		}
		src.Pix[i] = uint16(v)
	}
	linedata, offsets := EncodeImage(src)

	b.SetBytes(int64(len(src.Pix) * 2))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decompress(linedata, offsets, src.Width, src.Height); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecompressBase(b *testing.B) { benchmarkDecompress(b, KernelBase) }
func BenchmarkDecompressFast(b *testing.B) { benchmarkDecompress(b, KernelFast) }
