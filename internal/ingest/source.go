// Package ingest receives RODHyPix files pushed over ZeroMQ. The
// acquisition side wraps each finished file in a small CBOR envelope
// and PUSHes it; we PULL, unwrap, and hand the raw bytes downstream.
package ingest

import (
	"context"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"
	"go.uber.org/zap"
)

// recvPoll bounds how long a blocked receive can delay the context
// check between messages.
const recvPoll = 500 * time.Millisecond

// puller owns one PULL socket and its skip accounting.
type puller struct {
	socket   *zmq4.Socket
	log      *zap.SugaredLogger
	logEvery int
	skipped  int
}

// Stream connects a PULL socket to endpoint and returns a channel of
// received files. The channel closes when ctx is cancelled. A message
// that cannot be received or unwrapped is skipped; every logEvery-th
// skip is logged, so a stream of junk cannot flood the log.
func Stream(ctx context.Context, endpoint string, logEvery int, log *zap.SugaredLogger) (<-chan File, error) {
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.SetRcvtimeo(recvPoll); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if logEvery < 1 {
		logEvery = 1
	}
	p := &puller{socket: socket, log: log, logEvery: logEvery}

	out := make(chan File, 128)
	go p.run(ctx, out)
	return out, nil
}

func (p *puller) run(ctx context.Context, out chan<- File) {
	defer close(out)
	defer p.socket.Close()

	for ctx.Err() == nil {
		msg, err := p.socket.RecvBytes(0)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue // receive timeout
			}
			p.skip("recv failed: %v", err)
			continue
		}
		file, err := DecodeEnvelope(msg)
		if err != nil {
			p.skip("dropping message: %v", err)
			continue
		}
		select {
		case out <- file:
		case <-ctx.Done():
			return
		}
	}
}

func (p *puller) skip(format string, args ...any) {
	p.skipped++
	if p.skipped%p.logEvery == 0 {
		p.log.Warnf("ingest: "+format, args...)
	}
}
