package catalog

import "time"

// Cadence describes how often a series is updated upstream.
type Cadence string

const (
	Daily     Cadence = "daily"
	Weekly    Cadence = "weekly"
	Monthly   Cadence = "monthly"
	Quarterly Cadence = "quarterly"
)

// quarterlyLagDays is how long after quarter end FRED publishes quarterly
// bank-condition series.
const quarterlyLagDays = 45

// ShouldRun decides whether a series is due for a sync given the current
// time and the time of its last successful sync (nil if never synced).
func (s Series) ShouldRun(now time.Time, lastSync *time.Time) bool {
	if lastSync == nil {
		return true
	}
	switch s.Cadence {
	case Daily:
		return dailySchedule(now, lastSync)
	case Weekly:
		return weeklySchedule(now, lastSync)
	case Monthly:
		return monthlySchedule(now, lastSync)
	case Quarterly:
		return quarterlyAfterDelay(now, lastSync, quarterlyLagDays)
	default:
		return true
	}
}

// dailySchedule returns true if the last sync was before the start of today.
func dailySchedule(now time.Time, lastSync *time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return lastSync.Before(today)
}

// weeklySchedule returns true if the last sync was before the start of the
// current ISO week (Monday).
func weeklySchedule(now time.Time, lastSync *time.Time) bool {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	weekStart := time.Date(now.Year(), now.Month(), now.Day()-(weekday-1), 0, 0, 0, 0, time.UTC)
	return lastSync.Before(weekStart)
}

// monthlySchedule returns true if the last sync was before the start of the
// current month.
func monthlySchedule(now time.Time, lastSync *time.Time) bool {
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return lastSync.Before(thisMonth)
}

// quarterlyAfterDelay returns true if data for a completed quarter became
// available (quarter end + delay) and the last sync predates that.
func quarterlyAfterDelay(now time.Time, lastSync *time.Time, delayDays int) bool {
	qEnd := mostRecentQuarterEnd(now)
	available := qEnd.AddDate(0, 0, delayDays)
	if now.Before(available) {
		// This quarter's data isn't out yet; check the previous quarter.
		qEnd = mostRecentQuarterEnd(qEnd.AddDate(0, 0, -1))
		available = qEnd.AddDate(0, 0, delayDays)
		if now.Before(available) {
			return false
		}
	}
	return lastSync.Before(available)
}

// mostRecentQuarterEnd returns the last day of the most recent completed quarter.
func mostRecentQuarterEnd(t time.Time) time.Time {
	year := t.Year()
	month := t.Month()

	var qEndMonth time.Month
	var qEndYear int

	switch {
	case month >= time.January && month <= time.March:
		qEndMonth = time.December
		qEndYear = year - 1
	case month >= time.April && month <= time.June:
		qEndMonth = time.March
		qEndYear = year
	case month >= time.July && month <= time.September:
		qEndMonth = time.June
		qEndYear = year
	default: // Oct-Dec
		qEndMonth = time.September
		qEndYear = year
	}

	return time.Date(qEndYear, qEndMonth+1, 0, 23, 59, 59, 0, time.UTC)
}
