package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker is open.
var ErrCircuitOpen = eris.New("resilience: circuit breaker is open")

// Breaker is a minimal circuit breaker: after FailureThreshold consecutive
// failures it rejects calls for ResetTimeout, then allows a probe. It keeps
// a dead upstream from stalling every remaining series in a sync run.
type Breaker struct {
	failureThreshold int
	resetTimeout     time.Duration

	mu           sync.Mutex
	failures     int
	openedAt     time.Time
	open         bool
	now          func() time.Time
}

// NewBreaker creates a breaker. Threshold <= 0 defaults to 5 consecutive
// failures; resetTimeout <= 0 defaults to 30s.
func NewBreaker(failureThreshold int, resetTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. When the reset timeout has
// elapsed the breaker lets a single probe through in half-open fashion.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.resetTimeout {
		// Half-open: permit a probe; Record decides what happens next.
		return true
	}
	return false
}

// Record feeds a call outcome into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.open = false
		return
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.open = true
		b.openedAt = b.now()
	}
}
