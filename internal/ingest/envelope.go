package ingest

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Messages on the wire are CBOR maps shaped like
// { "type": "rodhypix_file", "seq": <uint>, "name": <string>, "data": <bytes> }
// where data is a complete RODHyPix file image.
const envelopeType = "rodhypix_file"

type envelope struct {
	Type string `cbor:"type"`
	Seq  uint64 `cbor:"seq"`
	Name string `cbor:"name"`
	Data []byte `cbor:"data"`
}

// File is one received detector file, not yet decoded.
type File struct {
	Seq  uint64
	Name string
	Data []byte
}

// EncodeEnvelope wraps a file image for the wire.
func EncodeEnvelope(seq uint64, name string, data []byte) ([]byte, error) {
	return cbor.Marshal(envelope{
		Type: envelopeType,
		Seq:  seq,
		Name: name,
		Data: data,
	})
}

// DecodeEnvelope unwraps a wire message.
func DecodeEnvelope(msg []byte) (File, error) {
	var env envelope
	if err := cbor.Unmarshal(msg, &env); err != nil {
		return File{}, fmt.Errorf("envelope decode: %w", err)
	}
	if env.Type != envelopeType {
		return File{}, fmt.Errorf("unexpected message type %q", env.Type)
	}
	if len(env.Data) == 0 {
		return File{}, fmt.Errorf("envelope has no file data")
	}
	return File{Seq: env.Seq, Name: env.Name, Data: env.Data}, nil
}
