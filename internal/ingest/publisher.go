package ingest

import (
	"time"

	"github.com/pebbe/zmq4"
)

// Publisher is the acquisition side of the wire: a PUSH socket bound
// to an endpoint that pullers connect to. Used by rod gen to feed a
// running preview server.
type Publisher struct {
	socket *zmq4.Socket
}

func NewPublisher(endpoint string) (*Publisher, error) {
	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		return nil, err
	}
	// Bounded linger so Close cannot hang on queued frames when no
	// puller ever connected.
	if err := socket.SetLinger(time.Second); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Bind(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}
	return &Publisher{socket: socket}, nil
}

// Publish wraps data in an envelope and sends it.
func (p *Publisher) Publish(seq uint64, name string, data []byte) error {
	msg, err := EncodeEnvelope(seq, name, data)
	if err != nil {
		return err
	}
	_, err = p.socket.SendBytes(msg, 0)
	return err
}

func (p *Publisher) Close() error {
	return p.socket.Close()
}
