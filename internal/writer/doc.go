// Package writer implements a lock-free multi-buffer record writer.
//
// Many producers append fixed-size records concurrently. The writer keeps N
// pre-allocated buffers of M records each and a cursor packing the active
// buffer index and its fill count into one uint64. Producers reserve slots
// with a CAS on that cursor, so no producer ever takes a lock.
//
// # Writing
//
//	w, err := writer.New(cfg, channel, logger, metrics)
//	if err != nil {
//	    return err
//	}
//	if err := w.Open(ctx, "capture.ti"); err != nil {
//	    return err
//	}
//	defer w.Close(ctx)
//
//	if !w.WriteRecord(rec) {
//	    // dropped or the flush it triggered failed; see w.Stats()
//	}
//
// # Retirement and flushing
//
// The reservation that finds the active buffer full moves the cursor to the
// next buffer and retires the old one. That producer then flushes the
// retired buffer itself: it waits until no other producer is still copying
// into it, writes it to the storage channel in one call, and returns.
// Other producers are unaffected.
//
// # Wraparound
//
// When the ring wraps onto a buffer whose flush has not finished, the
// WrapPolicy applies. WrapLossy proceeds and counts a wrap overrun.
// WrapBackpressure makes the wrapping producer yield until the flush
// completes or WrapTimeout expires, in which case the record is dropped.
//
// # Closing
//
// Close refuses new writers, waits for in-flight ones to finish, writes the
// partially filled active buffer once and closes the channel. Only the
// first Close after Open does any work.
package writer
