// Package market is the read path over persisted market data: observation
// ranges, recession intervals, and aggregate snapshots for the dashboard.
package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Observation is one persisted (series, date, value) sample. At most one
// exists per (SeriesID, Date).
type Observation struct {
	SeriesID string
	Date     time.Time
	Value    decimal.Decimal
}

// RecessionPeriod is a derived contiguous date range where the NBER binary
// indicator is asserted. EndDate is nil while the recession is ongoing.
type RecessionPeriod struct {
	ID        int64
	StartDate time.Time
	EndDate   *time.Time
	Name      string
}

// MetricValue is the latest observation of one overview series.
type MetricValue struct {
	Key      string
	SeriesID string
	Name     string
	Unit     string
	Date     time.Time
	Value    decimal.Decimal
}

// Snapshot is the current-market overview: the most recent observation per
// overview series plus the recession flag. Date is the newest metric date.
type Snapshot struct {
	Date        time.Time
	InRecession bool
	Metrics     []MetricValue
}

// SeriesHistory is one series' observations over a range, for multi-series
// charting. Different series may have different date sets; no alignment is
// performed server-side.
type SeriesHistory struct {
	SeriesID     string
	Name         string
	Unit         string
	Observations []Observation
}

// SeriesStats summarizes the stored data for one series.
type SeriesStats struct {
	SeriesID string
	Name     string
	Count    int64
	Earliest *time.Time
	Latest   *time.Time
}

// Stats aggregates storage-level statistics for the stats endpoint.
type Stats struct {
	TotalObservations int64
	RecessionPeriods  int64
	Series            []SeriesStats
}
