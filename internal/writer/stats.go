package writer

import (
	"sync/atomic"

	"github.com/jittakal/tiwriter/pkg/record"
)

// MetricsCollector defines metrics operations for the writer.
type MetricsCollector interface {
	IncRecordsWritten()
	IncRecordsDropped(reason string)
	IncBufferFlushes(status string)
	ObserveFlushBytes(size float64)
	ObserveFlushDuration(duration float64)
	ObserveFlushWait(duration float64)
	IncWrapOverruns()
	IncFlushTimeouts()
	SetWriterOpen(open bool)
}

// counters aggregates hot-path outcomes without allocation.
type counters struct {
	written        atomic.Int64
	droppedClosed  atomic.Int64
	droppedSize    atomic.Int64
	droppedOverrun atomic.Int64
	flushes        atomic.Int64
	flushFailures  atomic.Int64
	bytesFlushed   atomic.Int64
	wrapOverruns   atomic.Int64
	flushTimeouts  atomic.Int64
}

func (c *counters) dropped(reason record.DropReason) {
	switch reason {
	case record.DropSessionClosed:
		c.droppedClosed.Add(1)
	case record.DropRecordSize:
		c.droppedSize.Add(1)
	case record.DropOverrun:
		c.droppedOverrun.Add(1)
	}
}

func (c *counters) snapshot() record.Stats {
	return record.Stats{
		RecordsWritten: c.written.Load(),
		RecordsDropped: map[record.DropReason]int64{
			record.DropSessionClosed: c.droppedClosed.Load(),
			record.DropRecordSize:    c.droppedSize.Load(),
			record.DropOverrun:       c.droppedOverrun.Load(),
		},
		Flushes:       c.flushes.Load(),
		FlushFailures: c.flushFailures.Load(),
		BytesFlushed:  c.bytesFlushed.Load(),
		WrapOverruns:  c.wrapOverruns.Load(),
		FlushTimeouts: c.flushTimeouts.Load(),
	}
}
