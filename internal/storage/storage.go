// Package storage implements storage channels for flushed capture buffers.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jittakal/tiwriter/internal/encoder"
	"github.com/jittakal/tiwriter/internal/errors"
	"github.com/jittakal/tiwriter/pkg/storage"
)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncSegmentsWritten(backend string, status string)
	ObserveStorageWriteDuration(backend string, duration float64)
	IncStorageErrors(backend string, operation string)
}

// encodeSegment frames p when compression is enabled. Uncompressed
// segments are returned as is and must not outlive the Write call.
func encodeSegment(c encoder.Compression, p []byte) ([]byte, error) {
	if c == encoder.CompressionNone {
		return p, nil
	}
	return encoder.EncodeFrame(c, p)
}

// notOpenError tells a channel that was never opened apart from one whose
// session has ended.
func notOpenError(closed bool) error {
	if closed {
		return errors.ErrChannelClosed
	}
	return errors.ErrChannelNotOpen
}

// putFunc uploads one object.
type putFunc func(ctx context.Context, key string, body []byte) error

// objectChannel stores one object per Write under a per-session prefix.
// Backends supply the upload and the scheme their paths may carry.
type objectChannel struct {
	backend     string
	scheme      string
	compression encoder.Compression
	router      storage.Router
	put         putFunc
	logger      *slog.Logger
	metrics     MetricsCollector

	mu        sync.Mutex
	opened    bool
	closed    bool
	sessionID string
	prefix    string
	sequence  int64
}

func newObjectChannel(
	backend string,
	scheme string,
	compression string,
	put putFunc,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*objectChannel, error) {
	c, err := encoder.ParseCompression(compression)
	if err != nil {
		return nil, err
	}

	return &objectChannel{
		backend:     backend,
		scheme:      scheme,
		compression: c,
		router:      NewSegmentRouter(c),
		put:         put,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Open starts a new capture session under path.
func (c *objectChannel) Open(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessionID = uuid.NewString()
	c.prefix = SessionPrefix(ObjectKey(path, c.scheme), c.sessionID)
	c.sequence = 0
	c.opened = true
	c.closed = false

	c.logger.Info("storage channel opened",
		"backend", c.backend,
		"prefix", c.prefix,
		"session_id", c.sessionID,
		"compression", c.compression,
	)
	return nil
}

// Write uploads p as the next segment object.
func (c *objectChannel) Write(ctx context.Context, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return notOpenError(c.closed)
	}

	startTime := time.Now()

	body, err := encodeSegment(c.compression, p)
	if err != nil {
		c.fail("compress")
		c.failSegment()
		return &errors.StorageError{Backend: c.backend, Operation: "compress", Path: c.prefix, Err: err}
	}

	key := c.router.Route(c.prefix, c.sequence)
	if err := c.put(ctx, key, body); err != nil {
		c.fail("upload")
		c.failSegment()
		return &errors.StorageError{Backend: c.backend, Operation: "upload", Path: key, Err: err}
	}
	c.sequence++

	duration := time.Since(startTime)

	c.logger.Debug("wrote segment",
		"backend", c.backend,
		"key", key,
		"raw_size", len(p),
		"stored_size", len(body),
		"duration_ms", duration.Milliseconds(),
	)

	if c.metrics != nil {
		c.metrics.IncSegmentsWritten(c.backend, "success")
		c.metrics.ObserveStorageWriteDuration(c.backend, duration.Seconds())
	}

	return nil
}

// Close ends the session. Later writes fail until the next Open.
func (c *objectChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return nil
	}
	c.opened = false
	c.closed = true

	c.logger.Info("storage channel closed",
		"backend", c.backend,
		"prefix", c.prefix,
		"segments", c.sequence,
	)
	return nil
}

// SessionID returns the identifier of the current or last session.
func (c *objectChannel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Segments returns the number of segments written in the current session.
func (c *objectChannel) Segments() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sequence
}

func (c *objectChannel) fail(operation string) {
	if c.metrics != nil {
		c.metrics.IncStorageErrors(c.backend, operation)
	}
}

func (c *objectChannel) failSegment() {
	if c.metrics != nil {
		c.metrics.IncSegmentsWritten(c.backend, "failure")
	}
}

// contentType returns the MIME type of stored segments.
func contentType(c encoder.Compression) string {
	switch c {
	case encoder.CompressionZstd:
		return "application/zstd"
	case encoder.CompressionGzip:
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}

func requireField(backend, field, value string) error {
	if value == "" {
		return &errors.ValidationError{
			Field:  fmt.Sprintf("storage.%s.%s", backend, field),
			Reason: "is required",
		}
	}
	return nil
}
