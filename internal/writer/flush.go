package writer

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jittakal/tiwriter/internal/errors"
	"github.com/jittakal/tiwriter/pkg/storage"
)

// flushCoordinator hands retired buffers to the storage channel. It runs on
// the producer whose reservation retired the buffer.
type flushCoordinator struct {
	pool     *bufferPool
	guards   *bufferGuards
	alloc    *positionAllocator
	channel  storage.Channel
	timeout  time.Duration
	logger   *slog.Logger
	metrics  MetricsCollector
	counters *counters
}

// onBufferRetired waits for in-flight copies into buffer to finish, then
// writes the whole buffer once. The write error is returned without retry.
func (f *flushCoordinator) onBufferRetired(ctx context.Context, buffer int) error {
	f.guards.addRef(buffer)

	start := time.Now()
	drained := f.guards.awaitDrained(buffer, f.timeout)
	if !drained {
		f.counters.flushTimeouts.Add(1)
		if f.metrics != nil {
			f.metrics.IncFlushTimeouts()
		}
		f.logger.Warn("Flushing buffer with writers still in flight",
			"buffer", buffer,
			"in_flight", f.guards.count(buffer)-1,
			"timeout", f.timeout,
		)
	}
	if f.metrics != nil {
		f.metrics.ObserveFlushWait(time.Since(start).Seconds())
	}

	err := f.write(ctx, buffer, f.pool.full(buffer))

	// A failed write of a buffer that may hold torn records reports both.
	var flushErr *errors.FlushError
	if !drained && stderrors.As(err, &flushErr) {
		flushErr.Err = fmt.Errorf("%w: %w", errors.ErrFlushTimeout, flushErr.Err)
	}

	f.guards.release(buffer)
	f.alloc.markFlushed(buffer)

	return err
}

// write issues exactly one channel write and records its outcome.
func (f *flushCoordinator) write(ctx context.Context, buffer int, p []byte) error {
	start := time.Now()
	err := f.channel.Write(ctx, p)
	duration := time.Since(start).Seconds()

	if f.metrics != nil {
		f.metrics.ObserveFlushDuration(duration)
	}

	if err != nil {
		f.counters.flushFailures.Add(1)
		if f.metrics != nil {
			f.metrics.IncBufferFlushes("failure")
		}
		f.logger.Error("Buffer flush failed",
			"buffer", buffer,
			"bytes", len(p),
			"retryable", errors.IsRetryable(err),
			"error", err,
		)
		return &errors.FlushError{Buffer: buffer, Bytes: len(p), Err: err}
	}

	f.counters.flushes.Add(1)
	f.counters.bytesFlushed.Add(int64(len(p)))
	if f.metrics != nil {
		f.metrics.IncBufferFlushes("success")
		f.metrics.ObserveFlushBytes(float64(len(p)))
	}

	return nil
}
