package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jittakal/tiwriter/internal/errors"
	"github.com/jittakal/tiwriter/pkg/record"
	"github.com/jittakal/tiwriter/pkg/storage"
	"github.com/jittakal/tiwriter/pkg/writer"
)

// Ensure implementation satisfies interface at compile time.
var _ writer.RecordWriter = (*Writer)(nil)

const (
	stateClosed int32 = iota
	stateOpen
	stateClosing
)

// Writer is a lock-free multi-buffer record writer.
//
// Producers call WriteRecord concurrently. Each call reserves a unique slot
// with a single CAS on the packed cursor and copies the record into it. The
// producer whose reservation rolls the cursor over to the next buffer flushes
// the retired buffer itself, once every in-flight copy into it is done.
type Writer struct {
	cfg     Config
	channel storage.Channel
	logger  *slog.Logger
	metrics MetricsCollector

	// lifecycle serialises Open and Close. WriteRecord never takes it.
	lifecycle sync.Mutex
	state     atomic.Int32
	session   sessionGuard

	pool    *bufferPool
	alloc   *positionAllocator
	guards  *bufferGuards
	flusher *flushCoordinator
	path    string

	counters counters
}

// New creates a closed writer. Call Open before writing.
func New(cfg Config, ch storage.Channel, logger *slog.Logger, metrics MetricsCollector) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, fmt.Errorf("storage channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		cfg:     cfg,
		channel: ch,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Open binds the storage channel to path and allocates the buffer pool.
func (w *Writer) Open(ctx context.Context, path string) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.state.Load() != stateClosed {
		return errors.ErrAlreadyOpen
	}
	// Stragglers from a timed-out drain still hold session references.
	if n := w.session.count(); n != 0 {
		return fmt.Errorf("%w: %d writers still in flight", errors.ErrDrainTimeout, n)
	}

	if err := w.channel.Open(ctx, path); err != nil {
		return fmt.Errorf("failed to open storage channel: %w", err)
	}

	w.pool = newBufferPool(w.cfg.BufferCount, w.cfg.RecordsPerBuffer, w.cfg.RecordSize)
	w.alloc = newPositionAllocator(w.cfg.BufferCount, w.cfg.RecordsPerBuffer, w.cfg.backpressure())
	w.guards = newBufferGuards(w.cfg.BufferCount)
	w.flusher = &flushCoordinator{
		pool:     w.pool,
		guards:   w.guards,
		alloc:    w.alloc,
		channel:  w.channel,
		timeout:  w.cfg.FlushTimeout,
		logger:   w.logger,
		metrics:  w.metrics,
		counters: &w.counters,
	}
	w.path = path

	w.state.Store(stateOpen)
	// Publishing the session token makes the fields above visible to producers.
	w.session.open()

	if w.metrics != nil {
		w.metrics.SetWriterOpen(true)
	}

	w.logger.Info("Capture writer opened",
		"path", path,
		"buffer_count", w.cfg.BufferCount,
		"records_per_buffer", w.cfg.RecordsPerBuffer,
		"record_size", w.cfg.RecordSize,
		"buffer_bytes", w.cfg.BufferBytes(),
		"wrap_policy", w.cfg.WrapPolicy,
	)

	return nil
}

// WriteRecord copies record into the next free slot. It returns false when
// the record is dropped or when the flush this call triggered failed.
func (w *Writer) WriteRecord(rec []byte) bool {
	if w.session.addRef() == 0 {
		w.drop(record.DropSessionClosed)
		return false
	}
	defer w.session.release()

	if len(rec) != w.cfg.RecordSize {
		w.drop(record.DropRecordSize)
		return false
	}

	var r reservation
	for {
		hinted := w.alloc.active()
		w.guards.addRef(hinted)

		var blocked bool
		r, blocked = w.alloc.reserve()
		if !blocked {
			w.guards.addRef(r.buffer)
			w.guards.release(hinted)
			break
		}

		// Drop the hint so the flush we wait for can drain.
		w.guards.release(hinted)
		target := r.buffer
		if !spinUntil(func() bool { return !w.alloc.flushing(target) }, w.cfg.WrapTimeout) {
			w.drop(record.DropOverrun)
			return false
		}
	}

	copy(w.pool.slot(r.buffer, r.slot), rec)

	ok := true
	if r.hasRetired {
		if r.overrun {
			w.counters.wrapOverruns.Add(1)
			if w.metrics != nil {
				w.metrics.IncWrapOverruns()
			}
		}
		if err := w.flusher.onBufferRetired(context.Background(), r.retired); err != nil {
			ok = false
		}
	}

	w.guards.release(r.buffer)

	w.counters.written.Add(1)
	if w.metrics != nil {
		w.metrics.IncRecordsWritten()
	}

	return ok
}

// Close stops admitting writers, drains in-flight writers, flushes the
// partially filled active buffer and closes the storage channel. Only the
// first call after Open does any work.
func (w *Writer) Close(ctx context.Context) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.state.Load() != stateOpen {
		return nil
	}
	w.state.Store(stateClosing)

	var firstErr error
	drained := true
	if err := w.session.close(w.cfg.DrainTimeout); err != nil {
		drained = false
		firstErr = err
		w.logger.Warn("Closing capture writer with writers still in flight",
			"in_flight", w.session.count(),
			"timeout", w.cfg.DrainTimeout,
		)
	}

	buffer, filled := w.alloc.snapshot()
	if filled > 0 {
		if err := w.flusher.write(ctx, buffer, w.pool.filled(buffer, filled)); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := w.channel.Close(); err != nil {
		w.logger.Error("Failed to close storage channel", "path", w.path, "error", err)
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to close storage channel: %w", err)
		}
	}

	// Stragglers may still touch the pool after a timed-out drain.
	if drained {
		w.pool = nil
		w.alloc = nil
		w.guards = nil
		w.flusher = nil
	}

	w.state.Store(stateClosed)
	if w.metrics != nil {
		w.metrics.SetWriterOpen(false)
	}

	stats := w.counters.snapshot()
	w.logger.Info("Capture writer closed",
		"path", w.path,
		"records_written", stats.RecordsWritten,
		"records_dropped", stats.Dropped(),
		"flushes", stats.Flushes,
		"flush_failures", stats.FlushFailures,
		"wrap_overruns", stats.WrapOverruns,
	)

	return firstErr
}

// IsOpened reports whether the writer is accepting records.
func (w *Writer) IsOpened() bool {
	return w.state.Load() == stateOpen
}

// Path returns the path the writer was last opened with.
func (w *Writer) Path() string {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	return w.path
}

// Stats returns a snapshot of the aggregate counters.
func (w *Writer) Stats() record.Stats {
	return w.counters.snapshot()
}

func (w *Writer) drop(reason record.DropReason) {
	w.counters.dropped(reason)
	if w.metrics != nil {
		w.metrics.IncRecordsDropped(string(reason))
	}
}
