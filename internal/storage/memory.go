package storage

import (
	"bytes"
	"context"
	"sync"

	"github.com/jittakal/tiwriter/internal/errors"
	"github.com/jittakal/tiwriter/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Channel = (*MemoryChannel)(nil)

// MemoryChannel keeps every write in memory. It backs tests and the
// in-process verification of synthetic runs.
type MemoryChannel struct {
	mu       sync.Mutex
	path     string
	opened   bool
	closed   bool
	segments [][]byte
	failWith error
}

// NewMemoryChannel creates an empty memory channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{}
}

// Open starts a new session and discards earlier segments.
func (c *MemoryChannel) Open(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.path = path
	c.opened = true
	c.closed = false
	c.segments = nil
	return nil
}

// Write stores a copy of p.
func (c *MemoryChannel) Write(_ context.Context, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return notOpenError(c.closed)
	}
	if c.failWith != nil {
		return &errors.StorageError{Backend: "memory", Operation: "write", Path: c.path, Err: c.failWith}
	}

	c.segments = append(c.segments, bytes.Clone(p))
	return nil
}

// Close ends the session. Stored segments stay readable.
func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		c.closed = true
	}
	c.opened = false
	return nil
}

// FailWrites makes subsequent writes fail with err. A nil err clears it.
func (c *MemoryChannel) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWith = err
}

// Segments returns copies of the stored writes in order.
func (c *MemoryChannel) Segments() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]byte, len(c.segments))
	for i, s := range c.segments {
		out[i] = bytes.Clone(s)
	}
	return out
}

// Bytes returns the concatenation of all stored writes.
func (c *MemoryChannel) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Join(c.segments, nil)
}

// Path returns the path of the current or last session.
func (c *MemoryChannel) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}
