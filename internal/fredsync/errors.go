package fredsync

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationError reports a database failure while writing fetched
// observations for a single series. The series' transaction has been rolled
// back; no partial batch is visible.
type ReconciliationError struct {
	SeriesID string
	Err      error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.SeriesID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// ValidationError reports fetched data that violates a domain constraint,
// such as a recession indicator value that is neither 0 nor 1.
type ValidationError struct {
	SeriesID string
	Date     time.Time
	Value    decimal.Decimal
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s observation on %s: %s (value %s)",
		e.SeriesID, e.Date.Format("2006-01-02"), e.Reason, e.Value.String())
}

// IsReconciliation reports whether err is or wraps a ReconciliationError.
func IsReconciliation(err error) bool {
	var re *ReconciliationError
	return errors.As(err, &re)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
