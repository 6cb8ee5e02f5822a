package registry

import (
	"strings"
	"sync"
	"time"
)

// guard is the runaway-recursion circuit breaker. It counts placeholder
// dispatches per (moduleId, key, args) tuple within the current epoch; a
// tuple crossing the threshold enters a suppressed set for a cooldown, during
// which matching placeholders resolve to a sentinel instead of dispatching.
//
// Counting and suppression both use the full tuple. Suppressing on the key
// alone would let one noisy argument set silence unrelated uses of the same
// key.
type guard struct {
	mu         sync.Mutex
	calls      map[string]int
	suppressed map[string]time.Time // tuple -> suppression expiry

	threshold int
	cooldown  time.Duration
}

func newGuard(threshold int, cooldown time.Duration) *guard {
	return &guard{
		calls:      make(map[string]int),
		suppressed: make(map[string]time.Time),
		threshold:  threshold,
		cooldown:   cooldown,
	}
}

// tupleKey builds the guard key for one placeholder dispatch.
func tupleKey(moduleID, key string, args []string) string {
	return moduleID + ";" + key + ";" + strings.Join(args, ";")
}

// isSuppressed reports whether the tuple is inside its cooldown window.
func (g *guard) isSuppressed(tuple string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isSuppressedLocked(tuple)
}

func (g *guard) isSuppressedLocked(tuple string) bool {
	until, found := g.suppressed[tuple]
	if !found {
		return false
	}
	if time.Now().After(until) {
		delete(g.suppressed, tuple)
		return false
	}
	return true
}

// record counts one dispatch. It reports whether the threshold has been
// reached this epoch, and whether this call is the first to trip it (the
// caller emits the diagnostic exactly once per suppression).
func (g *guard) record(tuple string) (overThreshold, first bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls[tuple]++
	if g.calls[tuple] < g.threshold {
		return false, false
	}

	first = !g.isSuppressedLocked(tuple)
	g.suppressed[tuple] = time.Now().Add(g.cooldown)
	return true, first
}

// resetEpoch clears the per-epoch call counters.
func (g *guard) resetEpoch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = make(map[string]int)
}

// clear drops all counters and suppressions.
func (g *guard) clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = make(map[string]int)
	g.suppressed = make(map[string]time.Time)
}
