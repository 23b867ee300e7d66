package queue

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/signalforge/engine/signal"
)

// SignalQueue carries signal.Update records from one worker to the
// UI-thread drain.
type SignalQueue = Ring[signal.Update]

// NewSignalQueue creates a SignalQueue of the given capacity (spec.md
// default: 65536).
func NewSignalQueue(capacity int) *SignalQueue {
	return NewRing[signal.Update](capacity)
}

// retryRate bounds how often a PushRetryPolicy re-attempts a full
// queue: fast enough that a momentary backlog drains within a frame,
// slow enough that a stuck consumer doesn't spin a producer goroutine
// at full CPU waiting for it.
const retryRate = rate.Limit(2000)

// PushRetryPolicy is a per-queue backpressure policy (spec.md §9): on a
// full push, wait for the retry limiter and try again, up to budget
// times, before giving up and counting the record as dropped. budget<=0
// means drop immediately on the first full push, matching the default
// policy ("dropping is the default on queue full").
type PushRetryPolicy struct {
	Budget  int
	limiter *rate.Limiter
}

// NewPushRetryPolicy builds a retry policy paced by its own rate
// limiter rather than a bare busy-spin.
func NewPushRetryPolicy(budget int) PushRetryPolicy {
	return PushRetryPolicy{Budget: budget, limiter: rate.NewLimiter(retryRate, 1)}
}

// PushSignalUpdate applies p to push u onto q, returning true if it was
// ultimately accepted.
func (p PushRetryPolicy) PushSignalUpdate(q *SignalQueue, u signal.Update) bool {
	if q.TryPush(u) {
		return true
	}
	limiter := p.limiter
	if limiter == nil {
		limiter = rate.NewLimiter(retryRate, 1)
	}
	for i := 0; i < p.Budget; i++ {
		_ = limiter.Wait(context.Background())
		if q.TryPush(u) {
			return true
		}
	}
	return false
}
