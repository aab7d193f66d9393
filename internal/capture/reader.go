// Package capture reads file-channel captures back into records and checks
// synthetic captures for lost or duplicated records.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/jittakal/tiwriter/internal/encoder"
	"github.com/jittakal/tiwriter/pkg/record"
)

// ErrTruncated is returned when a capture ends inside a record.
var ErrTruncated = errors.New("capture ends inside a record")

// Options describes the layout of a capture.
type Options struct {
	// RecordSize is the fixed size of every record in bytes.
	RecordSize int
	// RecordsPerBuffer groups raw captures into segments. Zero treats a raw
	// capture as one segment.
	RecordsPerBuffer int
	// Compression selects framed reading. CompressionNone reads raw bytes.
	Compression encoder.Compression
}

// Reader yields the records of a capture in write order.
type Reader struct {
	src  *bufio.Reader
	opts Options

	segment []byte
	segIdx  int
	slot    int
	seq     int64
}

// NewReader creates a reader over r.
func NewReader(r io.Reader, opts Options) (*Reader, error) {
	if opts.RecordSize < 1 {
		return nil, fmt.Errorf("record size must be positive, got %d", opts.RecordSize)
	}
	if opts.RecordsPerBuffer < 0 {
		return nil, fmt.Errorf("records per buffer must not be negative, got %d", opts.RecordsPerBuffer)
	}
	if opts.Compression == "" {
		opts.Compression = encoder.CompressionNone
	}
	return &Reader{src: bufio.NewReaderSize(r, 1<<16), opts: opts, segIdx: -1}, nil
}

// Next returns the next record. It returns io.EOF after the last one.
// The payload is owned by the caller.
func (r *Reader) Next() (record.Entry, error) {
	if r.opts.Compression == encoder.CompressionNone {
		return r.nextRaw()
	}
	return r.nextFramed()
}

func (r *Reader) nextRaw() (record.Entry, error) {
	payload := make([]byte, r.opts.RecordSize)
	n, err := io.ReadFull(r.src, payload)
	switch {
	case err == io.EOF:
		return record.Entry{}, io.EOF
	case err == io.ErrUnexpectedEOF:
		return record.Entry{}, fmt.Errorf("%w: %d trailing bytes", ErrTruncated, n)
	case err != nil:
		return record.Entry{}, err
	}

	entry := record.Entry{Sequence: r.seq, Segment: 0, Slot: int(r.seq) + 1, Payload: payload}
	if m := r.opts.RecordsPerBuffer; m > 0 {
		entry.Segment = int(r.seq / int64(m))
		entry.Slot = int(r.seq%int64(m)) + 1
	}
	r.seq++
	return entry, nil
}

func (r *Reader) nextFramed() (record.Entry, error) {
	for len(r.segment) == 0 {
		frame, err := encoder.ReadFrame(r.src, r.opts.Compression)
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				return record.Entry{}, fmt.Errorf("%w: partial frame", ErrTruncated)
			}
			if errors.Is(err, encoder.ErrCorruptFrame) {
				return record.Entry{}, fmt.Errorf("%w: %w", ErrTruncated, err)
			}
			return record.Entry{}, err
		}
		if len(frame)%r.opts.RecordSize != 0 {
			return record.Entry{}, fmt.Errorf("%w: frame of %d bytes is not a multiple of %d",
				ErrTruncated, len(frame), r.opts.RecordSize)
		}
		r.segment = frame
		r.segIdx++
		r.slot = 0
	}

	r.slot++
	entry := record.Entry{
		Sequence: r.seq,
		Segment:  r.segIdx,
		Slot:     r.slot,
		Payload:  r.segment[:r.opts.RecordSize:r.opts.RecordSize],
	}
	r.segment = r.segment[r.opts.RecordSize:]
	r.seq++
	return entry, nil
}

// ReadAll reads every record of a capture.
func ReadAll(r io.Reader, opts Options) ([]record.Entry, error) {
	reader, err := NewReader(r, opts)
	if err != nil {
		return nil, err
	}

	var entries []record.Entry
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
}

// FromSegments splits in-memory writes into records, one segment per write.
func FromSegments(segments [][]byte, recordSize int) ([]record.Entry, error) {
	if recordSize < 1 {
		return nil, fmt.Errorf("record size must be positive, got %d", recordSize)
	}

	var (
		entries []record.Entry
		seq     int64
	)
	for i, segment := range segments {
		if len(segment)%recordSize != 0 {
			return nil, fmt.Errorf("%w: segment %d has %d bytes", ErrTruncated, i, len(segment))
		}
		for slot := 0; slot*recordSize < len(segment); slot++ {
			off := slot * recordSize
			entries = append(entries, record.Entry{
				Sequence: seq,
				Segment:  i,
				Slot:     slot + 1,
				Payload:  segment[off : off+recordSize : off+recordSize],
			})
			seq++
		}
	}
	return entries, nil
}
