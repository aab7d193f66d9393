// Package storage defines the Storage Channel used to persist flushed buffers.
//
// A channel receives opaque byte ranges. The capture writer calls Write once
// per completed buffer and at most once more on close for the partially
// filled active buffer.
package storage

import (
	"context"
)

// Channel persists flushed capture buffers.
type Channel interface {
	// Open binds the channel to a destination (file path, object prefix or topic).
	Open(ctx context.Context, path string) error

	// Write persists p in a single operation. p must not be retained after
	// Write returns: the writer reuses the backing buffer on its next lap.
	Write(ctx context.Context, p []byte) error

	// Close flushes and releases the channel.
	Close() error
}

// Router builds destination names for channels that store one object per write.
type Router interface {
	// Route returns the object key for the given segment sequence number.
	Route(prefix string, sequence int64) string
}
