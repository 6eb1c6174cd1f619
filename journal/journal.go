package journal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Record is one step lifecycle entry in the journal.
type Record struct {
	ConversionID string    `msgpack:"conversion_id"`
	Family       string    `msgpack:"family"`
	Kind         string    `msgpack:"kind"`
	Step         string    `msgpack:"step"`
	Ordinal      int       `msgpack:"ordinal"`
	Total        int       `msgpack:"total"`
	ExitCode     int       `msgpack:"exit_code"`
	Timestamp    time.Time `msgpack:"timestamp"`
}

// Writer appends records to a journal stream. Safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewWriter wraps an existing stream.
func NewWriter(w io.WriteCloser) *Writer {
	return &Writer{w: w}
}

// Open opens (or creates) a journal file for appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	return NewWriter(f), nil
}

// Append writes one record as a single frame.
func (jw *Writer) Append(rec *Record) error {
	frame, err := encodeFrame(rec)
	if err != nil {
		return err
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()
	if _, err := jw.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write journal frame: %w", err)
	}
	return nil
}

// Close closes the underlying stream.
func (jw *Writer) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.w.Close()
}

// Reader iterates the records of a journal stream.
type Reader struct {
	dec frameDecoder
}

// NewReader wraps an existing stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: frameDecoder{reader: r}}
}

// Next returns the next record, or io.EOF at end of stream.
func (jr *Reader) Next() (*Record, error) {
	payload, err := jr.dec.readFrame()
	if err != nil {
		return nil, err
	}
	return decodeRecord(payload)
}

// ReadAll reads every record from r until EOF.
func ReadAll(r io.Reader) ([]Record, error) {
	jr := NewReader(r)
	var records []Record
	for {
		rec, err := jr.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, *rec)
	}
}
