package render

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
)

func TestEncodePNGWindowing(t *testing.T) {
	g := frame.New(3, 1)
	g.Set(0, 0, 100)
	g.Set(1, 0, 150)
	g.Set(2, 0, 200)

	data, err := EncodePNG(g)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("decoded image type %T", img)
	}
	if gray.Bounds().Dx() != 3 || gray.Bounds().Dy() != 1 {
		t.Fatalf("bounds = %v", gray.Bounds())
	}
	if gray.Pix[0] != 0 || gray.Pix[2] != 255 {
		t.Fatalf("stretch endpoints = %d, %d, want 0, 255", gray.Pix[0], gray.Pix[2])
	}
	if gray.Pix[1] != 127 {
		t.Fatalf("midpoint = %d, want 127", gray.Pix[1])
	}
}

func TestEncodePNGFlatFrame(t *testing.T) {
	g := frame.New(4, 4)
	for i := range g.Pix {
		g.Pix[i] = 7777
	}
	data, err := EncodePNG(g)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	gray := img.(*image.Gray)
	for i, v := range gray.Pix {
		if v != 128 {
			t.Fatalf("flat pixel %d = %d, want 128", i, v)
		}
	}
}

func TestWriteRaw(t *testing.T) {
	g := frame.New(2, 2)
	g.Pix = []uint16{1, 2, 515, 65535}
	path := filepath.Join(t.TempDir(), "frame.raw")
	if err := WriteRaw(path, g); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(data) != 8 {
		t.Fatalf("len = %d, want 8", len(data))
	}
	for i, want := range g.Pix {
		if got := binary.LittleEndian.Uint16(data[2*i:]); got != want {
			t.Fatalf("value %d = %d, want %d", i, got, want)
		}
	}
}
