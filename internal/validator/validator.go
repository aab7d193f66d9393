// Package validator provides validation of capture writer geometry and policies.
package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/jittakal/tiwriter/internal/errors"
)

// MaxBufferBytes caps the size of a single buffer. The cursor packs the
// filled count into 32 bits and storage channels frame writes with 32-bit
// lengths.
const MaxBufferBytes = 1 << 30

// MaxBufferCount caps the number of buffers in the ring.
const MaxBufferCount = 1 << 16

// MaxPoolBytes caps the whole pool, which is allocated as one arena.
const MaxPoolBytes = 4 << 30

// Geometry describes the buffer pool layout of a capture writer.
type Geometry struct {
	BufferCount      int
	RecordsPerBuffer int
	RecordSize       int
}

// GeometryValidator validates writer geometry and wrap policy settings.
type GeometryValidator struct{}

// NewGeometryValidator creates a new geometry validator.
func NewGeometryValidator() *GeometryValidator {
	return &GeometryValidator{}
}

// Validate validates a buffer pool geometry.
func (v *GeometryValidator) Validate(g Geometry) error {
	// A single buffer would wrap onto itself on every retirement.
	if g.BufferCount < 2 {
		return &errors.ValidationError{
			Field:  "buffer_count",
			Reason: fmt.Sprintf("must be at least 2, got %d", g.BufferCount),
		}
	}

	if g.BufferCount > MaxBufferCount {
		return &errors.ValidationError{
			Field:  "buffer_count",
			Reason: fmt.Sprintf("must be at most %d, got %d", MaxBufferCount, g.BufferCount),
		}
	}

	if g.RecordsPerBuffer < 1 {
		return &errors.ValidationError{
			Field:  "records_per_buffer",
			Reason: fmt.Sprintf("must be positive, got %d", g.RecordsPerBuffer),
		}
	}

	if g.RecordSize < 1 {
		return &errors.ValidationError{
			Field:  "record_size",
			Reason: fmt.Sprintf("must be positive, got %d", g.RecordSize),
		}
	}

	if int64(g.RecordsPerBuffer)*int64(g.RecordSize) > MaxBufferBytes {
		return &errors.ValidationError{
			Field:  "records_per_buffer",
			Reason: fmt.Sprintf("buffer of %d x %d bytes exceeds %d bytes", g.RecordsPerBuffer, g.RecordSize, MaxBufferBytes),
		}
	}

	if pool := int64(g.BufferCount) * int64(g.RecordsPerBuffer) * int64(g.RecordSize); pool > MaxPoolBytes {
		return &errors.ValidationError{
			Field:  "buffer_count",
			Reason: fmt.Sprintf("pool of %d bytes exceeds %d bytes", pool, int64(MaxPoolBytes)),
		}
	}

	return nil
}

// ValidateWrapPolicy validates the wraparound policy and its timeout.
// Backpressure without a timeout could stall producers forever behind a
// stuck storage channel, so it is rejected.
func (v *GeometryValidator) ValidateWrapPolicy(policy string, timeout time.Duration) error {
	switch strings.ToLower(policy) {
	case "lossy", "":
		return nil
	case "backpressure":
		if timeout <= 0 {
			return &errors.ValidationError{
				Field:  "wrap_timeout",
				Reason: "backpressure requires a positive wrap timeout",
			}
		}
		return nil
	default:
		return &errors.ValidationError{
			Field:  "wrap_policy",
			Reason: fmt.Sprintf("unsupported policy: %s (supported: lossy, backpressure)", policy),
		}
	}
}
