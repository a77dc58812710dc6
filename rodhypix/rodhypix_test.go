package rodhypix_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielnrainer/rodhypix-go/internal/synth"
	"github.com/danielnrainer/rodhypix-go/rodhypix"
	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
	"github.com/danielnrainer/rodhypix-go/rodhypix/ty6"
)

func twoRowGrid(t *testing.T) *frame.Grid {
	t.Helper()
	g := frame.New(4, 2)
	for x := 0; x < 4; x++ {
		g.Set(x, 0, 10)
		g.Set(x, 1, 20)
	}
	return g
}

func TestDecodeTwoRowImage(t *testing.T) {
	raw := synth.File(twoRowGrid(t), synth.Options{})
	res, err := rodhypix.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []uint16{10, 10, 10, 10, 20, 20, 20, 20}
	if len(res.Grid.Pix) != len(want) {
		t.Fatalf("pixel count = %d, want %d", len(res.Grid.Pix), len(want))
	}
	for i, v := range want {
		if res.Grid.Pix[i] != v {
			t.Fatalf("pixel %d = %d, want %d", i, res.Grid.Pix[i], v)
		}
	}
	if got := res.PixelSizeNM(); got != 100000 {
		t.Fatalf("pixel size = %v nm, want 100000", got)
	}
}

func TestDecodeDeterministic(t *testing.T) {
	raw := synth.File(synth.Beam(128, 96, 20000, 11), synth.Options{})
	a, err := rodhypix.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b, err := rodhypix.Decode(raw)
	if err != nil {
		t.Fatalf("decode again: %v", err)
	}
	if !bytes.Equal(pixBytes(a.Grid), pixBytes(b.Grid)) {
		t.Fatal("two decodes of the same bytes differ")
	}
}

func pixBytes(g *frame.Grid) []byte {
	out := make([]byte, 0, 2*len(g.Pix))
	for _, v := range g.Pix {
		out = append(out, byte(v), byte(v>>8))
	}
	return out
}

func TestDecodeRoundTripBeam(t *testing.T) {
	src := synth.Beam(256, 256, 45000, 5)
	synth.HotPixels(src, 20, 65535, 6)
	res, err := rodhypix.Decode(synth.File(src, synth.Options{}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Grid.Width != 256 || res.Grid.Height != 256 {
		t.Fatalf("dims = %dx%d", res.Grid.Width, res.Grid.Height)
	}
	for i, v := range res.Grid.Pix {
		if v != src.Pix[i] {
			t.Fatalf("pixel %d = %d, want %d", i, v, src.Pix[i])
		}
	}
}

func TestDecodeTruncatedFile(t *testing.T) {
	raw := synth.File(synth.Gradient(64, 32, 3000), synth.Options{})
	// Cut points inside the offset table, the line data, and the
	// payload size field. NY=32 puts the offset table in the last
	// 128 bytes.
	for _, cut := range []int{1, 3, 64, 150, len(raw) - 2562} {
		trimmed := raw[:len(raw)-cut]
		_, err := rodhypix.Decode(trimmed)
		if !errors.Is(err, rodhypix.ErrTruncatedPayload) {
			t.Fatalf("cut %d: err = %v, want %v", cut, err, rodhypix.ErrTruncatedPayload)
		}
	}
}

func TestDecodeNegativePayloadSize(t *testing.T) {
	raw := synth.File(synth.Flat(8, 4, 9), synth.Options{})
	raw[synth.FullHeader+3] |= 0x80
	_, err := rodhypix.Decode(raw)
	if !errors.Is(err, rodhypix.ErrTruncatedPayload) {
		t.Fatalf("err = %v, want %v", err, rodhypix.ErrTruncatedPayload)
	}
}

func TestDecodeTruncatedLineData(t *testing.T) {
	g := synth.Gradient(40, 4, 900)
	linedata, offsets := ty6.EncodeImage(g)
	raw := synth.Container(g.Width, g.Height, synth.Options{}, linedata[:len(linedata)-3], offsets)
	_, err := rodhypix.Decode(raw)
	if !errors.Is(err, rodhypix.ErrTruncatedPayload) {
		t.Fatalf("err = %v, want %v", err, rodhypix.ErrTruncatedPayload)
	}
}

func TestDecodePayloadOverrun(t *testing.T) {
	row0 := ty6.EncodeLine([]uint16{10, 10, 10, 10})
	row1 := ty6.EncodeLine([]uint16{20, 20, 20, 20})
	linedata := append(append(append([]byte{}, row0...), 0x00), row1...)
	offsets := []uint32{0, uint32(len(row0) + 1)}
	raw := synth.Container(4, 2, synth.Options{}, linedata, offsets)
	_, err := rodhypix.Decode(raw)
	if !errors.Is(err, rodhypix.ErrPayloadOverrun) {
		t.Fatalf("err = %v, want %v", err, rodhypix.ErrPayloadOverrun)
	}
	var de *rodhypix.DecodeError
	if !errors.As(err, &de) || de.Kind != rodhypix.KindPayloadOverrun {
		t.Fatalf("err = %#v", err)
	}
}

func TestDecodeRejectsForeignBytes(t *testing.T) {
	raw := synth.File(synth.Flat(8, 8, 1), synth.Options{})
	copy(raw, "P6")
	_, err := rodhypix.Decode(raw)
	if !errors.Is(err, rodhypix.ErrUnrecognizedFormat) {
		t.Fatalf("err = %v, want %v", err, rodhypix.ErrUnrecognizedFormat)
	}
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame_0001.rodhypix")
	src := synth.Gradient(32, 32, 500)
	if err := os.WriteFile(path, synth.File(src, synth.Options{}), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	res, err := rodhypix.DecodeFile(path)
	if err != nil {
		t.Fatalf("decode file: %v", err)
	}
	if res.Grid.Width != 32 || res.Grid.Height != 32 {
		t.Fatalf("dims = %dx%d", res.Grid.Width, res.Grid.Height)
	}

	_, err = rodhypix.DecodeFile(filepath.Join(dir, "missing.rodhypix"))
	if err == nil {
		t.Fatal("decoding a missing file succeeded")
	}
	var de *rodhypix.DecodeError
	if errors.As(err, &de) {
		t.Fatalf("read failure reported as decode error: %v", err)
	}
}

func TestDecodeLegacyCalibration(t *testing.T) {
	raw := synth.File(synth.Flat(6, 6, 77), synth.Options{HeaderSize: synth.ShortHeader})
	res, err := rodhypix.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.PixelSizeNM() != 0 {
		t.Fatalf("PixelSizeNM = %v, want 0", res.PixelSizeNM())
	}
	if res.Grid.At(3, 3) != 77 {
		t.Fatalf("pixel = %d, want 77", res.Grid.At(3, 3))
	}
}

func TestDecodeToleratesTrailingBytes(t *testing.T) {
	raw := synth.File(synth.Flat(8, 4, 9), synth.Options{})
	raw = append(raw, 0xde, 0xad)
	res, err := rodhypix.Decode(raw)
	if err != nil {
		t.Fatalf("decode with trailing bytes: %v", err)
	}
	if res.Grid.At(0, 0) != 9 {
		t.Fatalf("pixel = %d, want 9", res.Grid.At(0, 0))
	}
}
