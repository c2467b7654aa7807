package fred

import (
	"errors"
	"fmt"
)

// UpstreamError reports a failure talking to the FRED API: network errors,
// timeouts, invalid API keys, unknown series, or 5xx responses. It is
// non-fatal to a sync run; callers record it and move to the next series.
type UpstreamError struct {
	SeriesID   string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fred: series %s: upstream status %d: %v", e.SeriesID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fred: series %s: %v", e.SeriesID, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RateLimitError is an UpstreamError for HTTP 429 responses, surfaced as a
// distinct type so callers can back off before the next series.
type RateLimitError struct {
	UpstreamError
}

// Unwrap exposes the embedded UpstreamError so errors.As matches both types.
func (e *RateLimitError) Unwrap() error { return &e.UpstreamError }

// IsUpstream reports whether err is (or wraps) an upstream FRED failure.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// IsRateLimit reports whether err is (or wraps) a FRED rate-limit response.
func IsRateLimit(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

// IsRetryable reports whether the error is worth retrying: rate limits and
// server-side or transport-level failures. Client errors (bad key, unknown
// series) are permanent.
func IsRetryable(err error) bool {
	if IsRateLimit(err) {
		return true
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode == 0 || ue.StatusCode >= 500
	}
	return false
}
