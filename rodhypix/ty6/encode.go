package ty6

import (
	"encoding/binary"

	"github.com/danielnrainer/rodhypix-go/rodhypix/frame"
)

// EncodeLine compresses one row of pixels. The encoder picks the
// smallest bit width (0-8) per half block and escapes deltas outside
// [-127, 126] to int16 or int32 literals; widths 9-15 are accepted by
// the decoder but never emitted here.
func EncodeLine(row []uint16) []byte {
	return appendLine(nil, row)
}

// EncodeImage compresses a grid row by row, returning the concatenated
// line data and the per-line start offsets Decompress expects.
func EncodeImage(g *frame.Grid) ([]byte, []uint32) {
	offsets := make([]uint32, g.Height)
	var linedata []byte
	for y := 0; y < g.Height; y++ {
		offsets[y] = uint32(len(linedata))
		linedata = appendLine(linedata, g.Row(y))
	}
	return linedata, offsets
}

func appendLine(buf []byte, row []uint16) []byte {
	w := len(row)
	if w == 0 {
		return buf
	}
	buf = appendEscaped(buf, int32(row[0]))

	nblock := (w - 1) / (2 * blockSize)
	nrest := (w - 1) % (2 * blockSize)
	pos := 1

	var deltas [2 * blockSize]int32
	for k := 0; k < nblock; k++ {
		for i := range deltas {
			deltas[i] = int32(row[pos]) - int32(row[pos-1])
			pos++
		}
		buf = appendBlock(buf, &deltas)
	}

	for r := 0; r < nrest; r++ {
		buf = appendEscaped(buf, int32(row[pos])-int32(row[pos-1]))
		pos++
	}
	return buf
}

// appendEscaped writes a single value in the control-byte scheme used
// by the first pixel and trailing pixels: one byte biased by 127, or a
// marker byte followed by an int16 or int32 literal.
func appendEscaped(buf []byte, v int32) []byte {
	switch {
	case v >= -127 && v <= 126:
		return append(buf, byte(v+127))
	case v >= -32768 && v <= 32767:
		buf = append(buf, shortOverflow)
		return binary.LittleEndian.AppendUint16(buf, uint16(int16(v)))
	default:
		buf = append(buf, longOverflow)
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	}
}

func appendBlock(buf []byte, deltas *[2 * blockSize]int32) []byte {
	n1 := nbitFor(deltas[:blockSize])
	n2 := nbitFor(deltas[blockSize:])
	buf = append(buf, byte(n1)|byte(n2)<<4)
	buf = appendField(buf, deltas[:blockSize], n1)
	buf = appendField(buf, deltas[blockSize:], n2)

	// Escape literals follow the two bit fields, in sample order.
	for _, d := range deltas {
		if d >= -127 && d <= 126 {
			continue
		}
		if d >= -32768 && d <= 32767 {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(d)))
		} else {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(d))
		}
	}
	return buf
}

// nbitFor returns the smallest bit width whose biased range covers all
// 8 deltas, or 8 when only the escape-capable width fits.
func nbitFor(deltas []int32) int {
	lo, hi := deltas[0], deltas[0]
	for _, d := range deltas[1:] {
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	for nbit := 0; nbit <= 7; nbit++ {
		var zeroAt int32
		if nbit > 1 {
			zeroAt = int32(1)<<(nbit-1) - 1
		}
		if lo >= -zeroAt && hi <= int32(1)<<nbit-1-zeroAt {
			return nbit
		}
	}
	return 8
}

func appendField(buf []byte, deltas []int32, nbit int) []byte {
	if nbit == 0 {
		return buf
	}
	if nbit == 8 {
		for _, d := range deltas {
			switch {
			case d > 32767 || d < -32768:
				buf = append(buf, longOverflow)
			case d > 126 || d < -127:
				buf = append(buf, shortOverflow)
			default:
				buf = append(buf, byte(d+127))
			}
		}
		return buf
	}

	var zeroAt int32
	if nbit > 1 {
		zeroAt = int32(1)<<(nbit-1) - 1
	}
	var v uint64
	for j, d := range deltas {
		v |= uint64(uint32(d+zeroAt)) << (nbit * j)
	}
	for b := 0; b < nbit; b++ {
		buf = append(buf, byte(v>>(8*b)))
	}
	return buf
}
