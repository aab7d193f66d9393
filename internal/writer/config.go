package writer

import (
	"fmt"
	"strings"
	"time"

	"github.com/jittakal/tiwriter/internal/validator"
)

// WrapPolicy decides what happens when the allocator is about to wrap onto a
// buffer whose previous flush has not completed.
type WrapPolicy string

const (
	// WrapLossy proceeds with the wrap and counts an overrun.
	WrapLossy WrapPolicy = "lossy"
	// WrapBackpressure holds the wrapping producer until the flush
	// completes or WrapTimeout expires.
	WrapBackpressure WrapPolicy = "backpressure"
)

// Config holds the immutable geometry and timing of a writer.
type Config struct {
	// BufferCount is the number of buffers in the ring (N).
	BufferCount int
	// RecordsPerBuffer is the number of records per buffer (M).
	RecordsPerBuffer int
	// RecordSize is the fixed size of one record in bytes (R).
	RecordSize int

	WrapPolicy WrapPolicy
	// WrapTimeout bounds the backpressure wait.
	WrapTimeout time.Duration
	// FlushTimeout bounds the wait for in-flight copies before a flush.
	// Zero waits forever.
	FlushTimeout time.Duration
	// DrainTimeout bounds the wait for in-flight writers on Close.
	// Zero waits forever.
	DrainTimeout time.Duration
}

// DefaultConfig returns a small ring suitable for tests and local runs.
func DefaultConfig() Config {
	return Config{
		BufferCount:      4,
		RecordsPerBuffer: 4096,
		RecordSize:       64,
		WrapPolicy:       WrapLossy,
		FlushTimeout:     time.Second,
		DrainTimeout:     5 * time.Second,
	}
}

// BufferBytes returns the size of one buffer (M*R).
func (c Config) BufferBytes() int {
	return c.RecordsPerBuffer * c.RecordSize
}

// Validate checks geometry and wrap policy.
func (c Config) Validate() error {
	v := validator.NewGeometryValidator()

	if err := v.Validate(validator.Geometry{
		BufferCount:      c.BufferCount,
		RecordsPerBuffer: c.RecordsPerBuffer,
		RecordSize:       c.RecordSize,
	}); err != nil {
		return fmt.Errorf("invalid writer geometry: %w", err)
	}

	if err := v.ValidateWrapPolicy(string(c.WrapPolicy), c.WrapTimeout); err != nil {
		return fmt.Errorf("invalid wrap policy: %w", err)
	}

	return nil
}

func (c Config) backpressure() bool {
	return WrapPolicy(strings.ToLower(string(c.WrapPolicy))) == WrapBackpressure
}
