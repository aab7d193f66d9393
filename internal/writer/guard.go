package writer

import (
	"sync/atomic"
	"time"

	"github.com/jittakal/tiwriter/internal/errors"
)

// sessionGuard counts in-flight writers plus one token held by the open
// session. Zero or below means closed.
type sessionGuard struct {
	refs atomic.Int32
}

func (g *sessionGuard) open() {
	g.refs.Store(1)
}

// addRef returns the pre-increment count, or 0 when the session is closed.
func (g *sessionGuard) addRef() int32 {
	var spins uint32
	for {
		v := g.refs.Load()
		if v <= 0 {
			return 0
		}
		if g.refs.CompareAndSwap(v, v+1) {
			return v
		}
		backoff(&spins)
	}
}

func (g *sessionGuard) release() {
	g.refs.Add(-1)
}

func (g *sessionGuard) count() int32 {
	return g.refs.Load()
}

// close consumes the session token and waits for in-flight writers to
// release. Not re-entrant: the caller must invoke it once per open.
func (g *sessionGuard) close(timeout time.Duration) error {
	g.refs.Add(-1)
	if !spinUntil(func() bool { return g.refs.Load() == 0 }, timeout) {
		return errors.ErrDrainTimeout
	}
	return nil
}

// bufferGuards holds one reference count per buffer. A count brackets the
// window in which a producer may be copying into that buffer.
type bufferGuards struct {
	refs []atomic.Int32
}

func newBufferGuards(n int) *bufferGuards {
	return &bufferGuards{refs: make([]atomic.Int32, n)}
}

func (g *bufferGuards) addRef(buffer int) {
	g.refs[buffer].Add(1)
}

func (g *bufferGuards) release(buffer int) {
	g.refs[buffer].Add(-1)
}

func (g *bufferGuards) count(buffer int) int32 {
	return g.refs[buffer].Load()
}

// awaitDrained waits until only the caller's own reference remains.
func (g *bufferGuards) awaitDrained(buffer int, timeout time.Duration) bool {
	return spinUntil(func() bool { return g.refs[buffer].Load() <= 1 }, timeout)
}
