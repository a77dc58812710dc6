package rodhypix

import (
	"encoding/binary"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// The header is a 256-byte ASCII region followed by a little-endian
// binary region in three sections (general, special, goniometer). The
// ASCII region names the total header size, so older files can end the
// binary region early; every binary field is therefore optional and
// its presence is tracked in Header.Present.
const (
	asciiHeaderSize = 256

	generalStart = asciiHeaderSize
	specialStart = generalStart + 512
	gonioStart   = specialStart + 768
	gonioEnd     = gonioStart + 1024
)

// Absolute byte offsets of the binary fields read by this package.
const (
	offBinning           = generalStart      // int16 x2
	offChipPixels        = generalStart + 22 // int16 x4: chip w/h, image w/h
	offNumPoints         = generalStart + 36 // uint32
	offGain              = specialStart + 56 // float64
	offOverflowFlags     = specialStart + 464 // int16 x2
	offOverflowThreshold = specialStart + 472 // int32
	offExposure          = specialStart + 480 // float64 x2
	offDetectorType      = specialStart + 548 // int32
	offPixelSize         = specialStart + 568 // float64 x2, millimetres
	offWavelength        = gonioStart + 568  // float64, K-alpha1
	offDistance          = gonioStart + 712  // float64, millimetres
)

// Plausibility guards against pathological allocations.
const (
	maxDimension = 32768
	maxPixels    = 1 << 28
)

// FieldSet records which optional binary header fields were present.
type FieldSet uint16

const (
	FieldDimensions FieldSet = 1 << iota
	FieldGain
	FieldOverflow
	FieldExposure
	FieldDetectorType
	FieldPixelSize
	FieldWavelength
	FieldDistance
)

// Has reports whether all given fields are present.
func (f FieldSet) Has(bits FieldSet) bool {
	return f&bits == bits
}

// Header is the parsed file header. Width and Height come from the
// ASCII region and drive the decode; the binary fields are calibration
// and acquisition metadata.
type Header struct {
	Version        float64
	CompressionTag string
	Width          int
	Height         int
	HeaderSize     int
	SupplementSize int
	Timestamp      string

	BinningX     int
	BinningY     int
	ChipWidth    int
	ChipHeight   int
	BinaryWidth  int
	BinaryHeight int

	Gain                    float64
	OverflowFlag            int
	OverflowRemeasureFlag   int
	OverflowThreshold       int32
	ExposureSeconds         float64
	OverflowExposureSeconds float64
	DetectorType            int32

	PixelSizeX float64 // mm
	PixelSizeY float64 // mm
	Wavelength float64
	Distance   float64 // mm

	Present FieldSet
}

// PixelSizeNM returns the physical pixel size in nanometres, or 0 when
// the file predates the calibration fields.
func (h *Header) PixelSizeNM() float64 {
	if !h.Present.Has(FieldPixelSize) {
		return 0
	}
	return h.PixelSizeX * 1e6
}

var headerKeyRe = regexp.MustCompile(`([A-Z]+=[ 0-9]+)`)

// Sniff reports whether raw starts like a RODHyPix file: an ASCII
// header whose first line carries the OD SAPPHIRE signature and whose
// second line is a COMPRESSION tag. Cheap enough for directory walks.
func Sniff(raw []byte) bool {
	if len(raw) < asciiHeaderSize {
		return false
	}
	text := raw[:asciiHeaderSize]
	for _, b := range text {
		if b > 0x7f {
			return false
		}
	}
	lines := splitHeaderLines(text)
	if len(lines) < 2 {
		return false
	}
	tokens := strings.Fields(lines[0])
	if len(tokens) < 2 || tokens[0] != "OD" || tokens[1] != "SAPPHIRE" {
		return false
	}
	name, _, ok := strings.Cut(lines[1], "=")
	return ok && name == "COMPRESSION"
}

// ParseHeader reads and validates the file header. raw must hold at
// least the full header region; the payload may be absent. raw is
// never modified.
func ParseHeader(raw []byte) (*Header, error) {
	if len(raw) < asciiHeaderSize {
		return nil, decodeErr(KindTruncatedHeader, int64(len(raw)),
			"file is %d bytes, text header needs %d", len(raw), asciiHeaderSize)
	}
	text := raw[:asciiHeaderSize]
	for i, b := range text {
		if b > 0x7f {
			return nil, decodeErr(KindUnrecognizedFormat, int64(i), "text header is not ASCII")
		}
	}

	lines := splitHeaderLines(text)
	if len(lines) < 6 {
		return nil, decodeErr(KindUnrecognizedFormat, -1, "text header has %d lines, need 6", len(lines))
	}

	tokens := strings.Fields(lines[0])
	if len(tokens) < 2 || tokens[0] != "OD" || tokens[1] != "SAPPHIRE" {
		return nil, decodeErr(KindUnrecognizedFormat, -1, "signature line %q", lines[0])
	}
	version, err := strconv.ParseFloat(tokens[len(tokens)-1], 64)
	if err != nil {
		return nil, decodeErr(KindUnrecognizedFormat, -1, "version token %q", tokens[len(tokens)-1])
	}

	name, tag, ok := strings.Cut(lines[1], "=")
	if !ok || name != "COMPRESSION" {
		return nil, decodeErr(KindUnrecognizedFormat, -1, "compression line %q", lines[1])
	}
	tag = strings.TrimSpace(tag)

	keys := map[string]int{}
	for _, line := range lines[2:5] {
		for _, pair := range headerKeyRe.FindAllString(line, -1) {
			k, v, _ := strings.Cut(pair, "=")
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				continue
			}
			keys[k] = n
		}
	}
	width, ok := keys["NX"]
	if !ok {
		return nil, decodeErr(KindUnrecognizedFormat, -1, "missing NX")
	}
	height, ok := keys["NY"]
	if !ok {
		return nil, decodeErr(KindUnrecognizedFormat, -1, "missing NY")
	}
	headerSize, ok := keys["NHEADER"]
	if !ok {
		return nil, decodeErr(KindUnrecognizedFormat, -1, "missing NHEADER")
	}

	if width <= 0 || height <= 0 {
		return nil, decodeErr(KindInvalidDimensions, -1, "%dx%d", width, height)
	}
	if width > maxDimension || height > maxDimension || width*height > maxPixels {
		return nil, decodeErr(KindInvalidDimensions, -1, "%dx%d exceeds plausible size", width, height)
	}

	if !strings.HasPrefix(tag, "TY6") {
		e := decodeErr(KindUnsupportedCompression, -1, "")
		e.Tag = tag
		return nil, e
	}

	if headerSize < asciiHeaderSize || headerSize > gonioEnd*4 {
		return nil, decodeErr(KindUnrecognizedFormat, -1, "NHEADER=%d", headerSize)
	}
	if len(raw) < headerSize {
		return nil, decodeErr(KindTruncatedHeader, int64(len(raw)),
			"file is %d bytes, header needs %d", len(raw), headerSize)
	}

	h := &Header{
		Version:        version,
		CompressionTag: tag,
		Width:          width,
		Height:         height,
		HeaderSize:     headerSize,
		SupplementSize: keys["NSUPPLEMENT"],
		Timestamp:      parseTimeLine(lines[5]),
	}

	has := func(end int) bool { return end <= headerSize }

	if has(offNumPoints + 4) {
		h.Present |= FieldDimensions
		h.BinningX = int(int16(binary.LittleEndian.Uint16(raw[offBinning:])))
		h.BinningY = int(int16(binary.LittleEndian.Uint16(raw[offBinning+2:])))
		h.ChipWidth = int(int16(binary.LittleEndian.Uint16(raw[offChipPixels:])))
		h.ChipHeight = int(int16(binary.LittleEndian.Uint16(raw[offChipPixels+2:])))
		h.BinaryWidth = int(int16(binary.LittleEndian.Uint16(raw[offChipPixels+4:])))
		h.BinaryHeight = int(int16(binary.LittleEndian.Uint16(raw[offChipPixels+6:])))

		numPoints := binary.LittleEndian.Uint32(raw[offNumPoints:])
		if int64(numPoints) != int64(h.BinaryWidth)*int64(h.BinaryHeight) {
			return nil, decodeErr(KindInvalidDimensions, offNumPoints,
				"binary header declares %d points for %dx%d pixels",
				numPoints, h.BinaryWidth, h.BinaryHeight)
		}
	}
	if has(offGain + 8) {
		h.Present |= FieldGain
		h.Gain = math.Float64frombits(binary.LittleEndian.Uint64(raw[offGain:]))
	}
	if has(offOverflowThreshold + 4) {
		h.Present |= FieldOverflow
		h.OverflowFlag = int(int16(binary.LittleEndian.Uint16(raw[offOverflowFlags:])))
		h.OverflowRemeasureFlag = int(int16(binary.LittleEndian.Uint16(raw[offOverflowFlags+2:])))
		h.OverflowThreshold = int32(binary.LittleEndian.Uint32(raw[offOverflowThreshold:]))
	}
	if has(offExposure + 16) {
		h.Present |= FieldExposure
		h.ExposureSeconds = math.Float64frombits(binary.LittleEndian.Uint64(raw[offExposure:]))
		h.OverflowExposureSeconds = math.Float64frombits(binary.LittleEndian.Uint64(raw[offExposure+8:]))
	}
	if has(offDetectorType + 4) {
		h.Present |= FieldDetectorType
		h.DetectorType = int32(binary.LittleEndian.Uint32(raw[offDetectorType:]))
	}
	if has(offPixelSize + 16) {
		h.Present |= FieldPixelSize
		h.PixelSizeX = math.Float64frombits(binary.LittleEndian.Uint64(raw[offPixelSize:]))
		h.PixelSizeY = math.Float64frombits(binary.LittleEndian.Uint64(raw[offPixelSize+8:]))
	}
	if has(offWavelength + 8) {
		h.Present |= FieldWavelength
		h.Wavelength = math.Float64frombits(binary.LittleEndian.Uint64(raw[offWavelength:]))
	}
	if has(offDistance + 8) {
		h.Present |= FieldDistance
		h.Distance = math.Float64frombits(binary.LittleEndian.Uint64(raw[offDistance:]))
	}

	return h, nil
}

func splitHeaderLines(text []byte) []string {
	lines := strings.Split(string(text), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func parseTimeLine(line string) string {
	if i := strings.LastIndex(line, "TIME="); i >= 0 {
		line = line[i+len("TIME="):]
	}
	line = strings.Trim(line, "\x1a")
	return strings.TrimRight(line, " \t")
}
