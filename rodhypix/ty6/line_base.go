package ty6

import "encoding/binary"

// decodeLineBase is the portable line decoder. It reads bit fields one
// sample at a time and handles every bit width the format allows
// (0 through 15 bits per sample).
func decodeLineBase(line []byte, out []int32) (int, error) {
	w := len(out)
	if w == 0 {
		return 0, nil
	}

	nblock := (w - 1) / (2 * blockSize)
	nrest := (w - 1) % (2 * blockSize)

	ipos, err := decodeFirstPixel(line, out)
	if err != nil {
		return ipos, err
	}
	opos := 1

	for k := 0; k < nblock; k++ {
		if ipos >= len(line) {
			return ipos, ErrTruncated
		}
		bittype := line[ipos]
		ipos++

		for _, nbit := range [2]int{int(bittype & 15), int(bittype >> 4)} {
			if ipos+nbit > len(line) {
				return ipos, ErrTruncated
			}
			field := line[ipos : ipos+nbit]
			ipos += nbit

			var zeroAt int32
			if nbit > 1 {
				zeroAt = int32(1)<<(nbit-1) - 1
			}
			mask := uint32(1)<<nbit - 1

			for j := 0; j < blockSize; j++ {
				bitpos := nbit * j
				byteIdx := bitpos >> 3
				shift := uint(bitpos & 7)

				// Gather the up to 3 bytes the sample spans.
				var v uint32
				for b := 0; b < 4 && byteIdx+b < nbit; b++ {
					v |= uint32(field[byteIdx+b]) << (8 * b)
				}
				out[opos] = int32((v>>shift)&mask) - zeroAt
				opos++
			}
		}

		var err error
		ipos, err = resolveBlock(line, ipos, out, opos)
		if err != nil {
			return ipos, err
		}
	}

	return decodeRest(line, ipos, out, opos, nrest)
}

// decodeFirstPixel reads the line's absolute first pixel into out[0]
// and returns the bytes consumed.
func decodeFirstPixel(line []byte, out []int32) (int, error) {
	if len(line) < 1 {
		return 0, ErrTruncated
	}
	first := line[0]
	switch {
	case first < shortOverflow:
		out[0] = int32(first) - 127
		return 1, nil
	case first == longOverflow:
		if len(line) < 5 {
			return 1, ErrTruncated
		}
		out[0] = int32(binary.LittleEndian.Uint32(line[1:]))
		return 5, nil
	default:
		if len(line) < 3 {
			return 1, ErrTruncated
		}
		out[0] = int32(int16(binary.LittleEndian.Uint16(line[1:])))
		return 3, nil
	}
}

// resolveBlock turns the 16 raw samples ending at opos into pixel
// values: escape markers are replaced by int16/int32 literals from the
// stream, then each sample is added to its predecessor.
func resolveBlock(line []byte, ipos int, out []int32, opos int) (int, error) {
	for i := opos - 2*blockSize; i < opos; i++ {
		off := out[i]
		if off >= shortOverflowSigned {
			if off >= longOverflowSigned {
				if ipos+4 > len(line) {
					return ipos, ErrTruncated
				}
				off = int32(binary.LittleEndian.Uint32(line[ipos:]))
				ipos += 4
			} else {
				if ipos+2 > len(line) {
					return ipos, ErrTruncated
				}
				off = int32(int16(binary.LittleEndian.Uint16(line[ipos:])))
				ipos += 2
			}
		}
		out[i] = out[i-1] + off
	}
	return ipos, nil
}

// decodeRest handles the up to 15 trailing pixels after the last full
// block. Each is delta-coded with the same escapes as the first pixel.
func decodeRest(line []byte, ipos int, out []int32, opos, nrest int) (int, error) {
	for r := 0; r < nrest; r++ {
		if ipos >= len(line) {
			return ipos, ErrTruncated
		}
		px := line[ipos]
		ipos++

		var delta int32
		switch {
		case px < shortOverflow:
			delta = int32(px) - 127
		case px == longOverflow:
			if ipos+4 > len(line) {
				return ipos, ErrTruncated
			}
			delta = int32(binary.LittleEndian.Uint32(line[ipos:]))
			ipos += 4
		default:
			if ipos+2 > len(line) {
				return ipos, ErrTruncated
			}
			delta = int32(int16(binary.LittleEndian.Uint16(line[ipos:])))
			ipos += 2
		}
		out[opos] = out[opos-1] + delta
		opos++
	}
	return ipos, nil
}
