package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	errBoom := errors.New("boom")

	for i := 0; i < 2; i++ {
		assert.True(t, b.Allow())
		b.Record(errBoom)
	}
	assert.True(t, b.Allow(), "still closed below threshold")

	b.Record(errBoom)
	assert.False(t, b.Allow(), "open at threshold")
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	errBoom := errors.New("boom")

	b.Record(errBoom)
	b.Record(nil)
	b.Record(errBoom)
	assert.True(t, b.Allow(), "success in between kept the breaker closed")
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.Record(errors.New("boom"))
	assert.False(t, b.Allow())

	// After the reset timeout a probe is allowed.
	now = now.Add(2 * time.Minute)
	assert.True(t, b.Allow())

	// A successful probe closes the breaker.
	b.Record(nil)
	assert.True(t, b.Allow())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.Record(errors.New("boom"))
	now = now.Add(2 * time.Minute)
	assert.True(t, b.Allow())

	b.Record(errors.New("still down"))
	assert.False(t, b.Allow())
}
