// Package writer defines the public contract of the lock-free capture writer.
//
// Implementations accept fixed-size records from any number of concurrent
// producers without blocking them, and persist completed buffers through a
// storage.Channel.
package writer

import (
	"context"

	"github.com/jittakal/tiwriter/pkg/record"
)

// RecordWriter captures fixed-size records.
// All implementations must be safe for concurrent use by producers.
type RecordWriter interface {
	// Open binds the storage channel and allocates the buffer pool.
	Open(ctx context.Context, path string) error

	// WriteRecord copies record into the next free slot.
	// It returns false if the record was dropped or if the flush it
	// triggered failed. It never blocks on I/O other than that flush.
	WriteRecord(record []byte) bool

	// Close flushes pending data exactly once and releases resources.
	// Calling Close more than once is safe.
	Close(ctx context.Context) error

	// IsOpened reports whether the writer is accepting records.
	IsOpened() bool

	// Stats returns a snapshot of the aggregate counters.
	Stats() record.Stats
}
