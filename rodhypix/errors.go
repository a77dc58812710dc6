package rodhypix

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrKind classifies decode failures.
type ErrKind uint8

const (
	// KindTruncatedHeader: the file is shorter than its header region.
	KindTruncatedHeader ErrKind = iota + 1
	// KindUnrecognizedFormat: the magic signature or the mandatory
	// header structure does not match; this is not a RODHyPix file.
	KindUnrecognizedFormat
	// KindInvalidDimensions: frame dimensions are non-positive,
	// implausibly large, or contradict the binary header.
	KindInvalidDimensions
	// KindUnsupportedCompression: the header declares a compression
	// scheme other than TY6.
	KindUnsupportedCompression
	// KindTruncatedPayload: the compressed payload ended before the
	// full pixel count was decoded.
	KindTruncatedPayload
	// KindPayloadOverrun: the payload encodes more pixels than the
	// header declares.
	KindPayloadOverrun
)

func (k ErrKind) String() string {
	switch k {
	case KindTruncatedHeader:
		return "truncated header"
	case KindUnrecognizedFormat:
		return "unrecognized format"
	case KindInvalidDimensions:
		return "invalid dimensions"
	case KindUnsupportedCompression:
		return "unsupported compression"
	case KindTruncatedPayload:
		return "truncated payload"
	case KindPayloadOverrun:
		return "payload overrun"
	default:
		return fmt.Sprintf("error kind %d", uint8(k))
	}
}

// Sentinels for errors.Is tests against any *DecodeError.
var (
	ErrTruncatedHeader        = errors.New("rodhypix: truncated header")
	ErrUnrecognizedFormat     = errors.New("rodhypix: unrecognized format")
	ErrInvalidDimensions      = errors.New("rodhypix: invalid dimensions")
	ErrUnsupportedCompression = errors.New("rodhypix: unsupported compression")
	ErrTruncatedPayload       = errors.New("rodhypix: truncated payload")
	ErrPayloadOverrun         = errors.New("rodhypix: payload overrun")
)

var kindSentinels = map[ErrKind]error{
	KindTruncatedHeader:        ErrTruncatedHeader,
	KindUnrecognizedFormat:     ErrUnrecognizedFormat,
	KindInvalidDimensions:      ErrInvalidDimensions,
	KindUnsupportedCompression: ErrUnsupportedCompression,
	KindTruncatedPayload:       ErrTruncatedPayload,
	KindPayloadOverrun:         ErrPayloadOverrun,
}

// DecodeError is the failure type returned by every decode entry
// point. Offset is the byte position the failure was detected at, or
// -1 when no single position applies. Tag carries the offending
// compression tag for KindUnsupportedCompression.
type DecodeError struct {
	Kind   ErrKind
	Offset int64
	Tag    string
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "rodhypix: " + e.Kind.String()
	if e.Tag != "" {
		msg += " " + strconv.Quote(e.Tag)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" (offset %d)", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind, so callers can write
// errors.Is(err, rodhypix.ErrTruncatedPayload).
func (e *DecodeError) Is(target error) bool {
	return target == kindSentinels[e.Kind]
}

func decodeErr(kind ErrKind, offset int64, format string, args ...any) *DecodeError {
	return &DecodeError{
		Kind:   kind,
		Offset: offset,
		Detail: fmt.Sprintf(format, args...),
	}
}
