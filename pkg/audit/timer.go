package audit

import (
	"sync"
	"time"
)

// auditTimer is a re-armable logical timer. Re-arming bumps a generation
// counter before scheduling a new underlying time.Timer, so a fired
// callback can tell whether a later re-arm or cancel superseded it, without
// relying on time.Timer.Stop's return value, which races against an
// already-fired timer.
type auditTimer struct {
	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
}

// arm (re-)schedules the timer for d, cancelling any pending wait. fn runs
// on its own goroutine, but only if this particular arming is the one that
// expires; a fire superseded by a later arm or cancel is silently dropped,
// which is how the "cancelled wait must skip its error-reporting path"
// requirement is satisfied.
func (t *auditTimer) arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
	gen := t.generation

	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		fire := t.generation == gen
		t.mu.Unlock()
		if fire {
			fn()
		}
	})
}

// cancel stops the timer. Any wait already in flight will observe a
// generation mismatch and suppress its callback.
func (t *auditTimer) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
}
