package writer

import (
	"runtime"
	"time"
)

// goschedEvery bounds how often contended CAS loops yield the processor.
const goschedEvery = 64

// backoff yields every goschedEvery spins.
func backoff(spins *uint32) {
	*spins++
	if *spins%goschedEvery == 0 {
		runtime.Gosched()
	}
}

// spinUntil yields until cond holds or timeout elapses. A zero timeout spins
// forever. It never sleeps. It reports whether cond held.
func spinUntil(cond func() bool, timeout time.Duration) bool {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for spins := uint32(1); ; spins++ {
		if cond() {
			return true
		}
		if !deadline.IsZero() && spins%goschedEvery == 0 && time.Now().After(deadline) {
			return cond()
		}
		runtime.Gosched()
	}
}
