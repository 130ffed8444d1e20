package endpoint

import (
	"log/slog"

	"golang.org/x/exp/constraints"
)

// Monotonic coerces next to prev when the server reports an
// out-of-order value — spec.md §4.6.1: "out-of-order fractions are
// coerced to the previous maximum." Generic over the ordered types
// progress fractions and byte counters both use, one clamp for every
// endpoint instead of a copy per state machine.
func Monotonic[T constraints.Ordered](prev, next T) T {
	if next < prev {
		return prev
	}
	return next
}

// safeCall invokes fn and recovers any panic, logging it rather than
// letting it unwind through the goroutine driving the state machine —
// spec.md §7: "Callback exceptions are logged but MUST NOT terminate
// the endpoint." A nil log falls back to slog.Default().
func safeCall(log *slog.Logger, name string, fn func()) {
	if fn == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("callback panicked, continuing", "callback", name, "panic", r)
		}
	}()
	fn()
}
