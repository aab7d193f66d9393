package server

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/jittakal/tiwriter/pkg/record"
)

// CaptureSource is the view of a capture writer the health checks need.
type CaptureSource interface {
	IsOpened() bool
	Stats() record.Stats
}

// CaptureHealth reports liveness and readiness of a capture session.
// The process is live until MarkFailed is called and ready while the
// writer is open.
type CaptureHealth struct {
	source CaptureSource
	failed atomic.Bool
}

// NewCaptureHealth creates a health checker for source.
func NewCaptureHealth(source CaptureSource) *CaptureHealth {
	return &CaptureHealth{source: source}
}

// MarkFailed flips liveness after an unrecoverable error.
func (h *CaptureHealth) MarkFailed() {
	h.failed.Store(true)
}

// Liveness reports whether the process should keep running.
func (h *CaptureHealth) Liveness() bool {
	return !h.failed.Load()
}

// Readiness reports whether the writer is accepting records.
func (h *CaptureHealth) Readiness(_ context.Context) bool {
	return h.source.IsOpened()
}

// IsHealthy reports liveness and readiness together.
func (h *CaptureHealth) IsHealthy() bool {
	return h.Liveness() && h.Readiness(context.Background())
}

// GetStatus returns the writer state and its aggregate counters.
func (h *CaptureHealth) GetStatus() map[string]string {
	stats := h.source.Stats()
	writer := "closed"
	if h.source.IsOpened() {
		writer = "open"
	}

	return map[string]string{
		"writer":          writer,
		"records_written": strconv.FormatInt(stats.RecordsWritten, 10),
		"records_dropped": strconv.FormatInt(stats.Dropped(), 10),
		"flushes":         strconv.FormatInt(stats.Flushes, 10),
		"flush_failures":  strconv.FormatInt(stats.FlushFailures, 10),
		"wrap_overruns":   strconv.FormatInt(stats.WrapOverruns, 10),
	}
}
