package amqp

import (
	"log/slog"
	"sync"
	"time"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

// breaker stops publishing after repeated broker failures so request
// handlers do not wait on a dead connection. After openTimeout one trial
// publish is let through.
type breaker struct {
	mu          sync.Mutex
	state       int32
	failures    int
	lastFailure time.Time
	now         func() time.Time
}

func newBreaker() *breaker {
	return &breaker{now: time.Now}
}

// allow reports whether a publish may be attempted.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return true
	}
	if b.now().Sub(b.lastFailure) > openTimeout {
		b.state = StateHalfOpen
		return true
	}
	return false
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = StateClosed
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	b.failures++
	if b.state == StateOpen {
		return
	}
	if b.failures >= maxFailures || b.state == StateHalfOpen {
		b.state = StateOpen
		slog.Warn("AMQP circuit breaker opened", "failures", b.failures)
	}
}

func (b *breaker) State() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
