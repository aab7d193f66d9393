// Package record defines the core types shared by the capture writer,
// storage channels and exporters.
//
// Records are opaque fixed-size blobs. The writer never inspects their
// contents; only exporters and the capture verifier look inside them.
package record

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Entry is a single record read back from a capture.
type Entry struct {
	// Sequence is the position of the record in the capture, starting at 0.
	Sequence int64
	// Segment is the index of the Write call that carried the record.
	Segment int
	// Slot is the record's 1-based position inside its segment.
	Slot int
	// Payload holds exactly RecordSize bytes.
	Payload []byte
}

// ID returns the little-endian uint64 stored in the first 8 bytes of the payload.
// Synthetic captures put a globally unique record ID there.
func (e Entry) ID() (uint64, bool) {
	if len(e.Payload) < 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(e.Payload[:8]), true
}

// String returns a short description of the entry position.
func (e Entry) String() string {
	return fmt.Sprintf("seq=%d segment=%d slot=%d", e.Sequence, e.Segment, e.Slot)
}

// FileStats contains statistics about an exported file.
type FileStats struct {
	RecordCount    int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// FileFormat represents an export file format.
type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatAvro    FileFormat = "avro"
)

// DropReason labels why a record was not stored.
type DropReason string

const (
	DropSessionClosed DropReason = "session_closed"
	DropRecordSize    DropReason = "record_size"
	DropOverrun       DropReason = "overrun"
)

// Stats is a snapshot of a writer's aggregate counters.
type Stats struct {
	RecordsWritten int64
	RecordsDropped map[DropReason]int64
	Flushes        int64
	FlushFailures  int64
	BytesFlushed   int64
	WrapOverruns   int64
	FlushTimeouts  int64
}

// Dropped returns the total number of dropped records across all reasons.
func (s Stats) Dropped() int64 {
	var total int64
	for _, n := range s.RecordsDropped {
		total += n
	}
	return total
}
