// Package framelog persists decoded frames in an append-only archive:
// an 8-byte magic, then a sequence of records, each led by a 12-byte
// header of nanosecond timestamp and payload length, both
// little-endian. Payloads are CBOR-encoded Records.
package framelog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const Magic = "RODFLOG1"

// Writer appends records to a new archive file. Safe for concurrent
// use.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
}

// Create opens a timestamped archive file under dir.
func Create(dir, prefix string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.flog", timestamp, prefix))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1024*1024)
	if _, err := w.WriteString(Magic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: w, path: path}, nil
}

// Path returns the archive file path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one record and flushes it to disk.
func (w *Writer) Append(rec *Record) error {
	payload, err := cbor.Marshal(rec)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return fmt.Errorf("frame log writer is closed")
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := w.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		_ = w.f.Close()
		w.w = nil
		return err
	}
	err := w.f.Close()
	w.w = nil
	return err
}

// Reader iterates over an archive file.
type Reader struct {
	f *os.File
	r *bufio.Reader
}

// Open validates the magic and positions the reader on the first
// record.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := bufio.NewReaderSize(f, 1024*1024)
	header := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(header) != Magic {
		_ = f.Close()
		return nil, fmt.Errorf("unexpected frame log magic %q", string(header))
	}
	return &Reader{f: f, r: r}, nil
}

// Next returns the next record and its write timestamp. io.EOF marks a
// clean end of the archive.
func (r *Reader) Next() (*Record, time.Time, error) {
	var meta [12]byte
	if _, err := io.ReadFull(r.r, meta[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, time.Time{}, io.EOF
		}
		return nil, time.Time{}, err
	}
	ts := time.Unix(0, int64(binary.LittleEndian.Uint64(meta[:8])))
	size := binary.LittleEndian.Uint32(meta[8:12])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("truncated record: %w", err)
	}
	var rec Record
	if err := cbor.Unmarshal(payload, &rec); err != nil {
		return nil, time.Time{}, fmt.Errorf("record decode: %w", err)
	}
	return &rec, ts, nil
}

func (r *Reader) Close() error {
	return r.f.Close()
}
