package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestShouldRun_NeverSynced(t *testing.T) {
	for _, s := range New().All() {
		assert.True(t, s.ShouldRun(ts(2026, time.August, 26), nil), s.ID)
	}
}

func TestShouldRun_Daily(t *testing.T) {
	s := Series{ID: "BAMLH0A0HYM2", Cadence: Daily}
	now := time.Date(2026, time.August, 26, 9, 0, 0, 0, time.UTC)

	yesterday := ts(2026, time.August, 25)
	assert.True(t, s.ShouldRun(now, &yesterday))

	earlierToday := time.Date(2026, time.August, 26, 6, 0, 0, 0, time.UTC)
	assert.False(t, s.ShouldRun(now, &earlierToday))
}

func TestShouldRun_Weekly(t *testing.T) {
	s := Series{ID: "X", Cadence: Weekly}
	// Wednesday 2026-08-26; week starts Monday 2026-08-24.
	now := ts(2026, time.August, 26)

	lastWeek := ts(2026, time.August, 21)
	assert.True(t, s.ShouldRun(now, &lastWeek))

	thisWeek := ts(2026, time.August, 25)
	assert.False(t, s.ShouldRun(now, &thisWeek))
}

func TestShouldRun_Monthly(t *testing.T) {
	s := Series{ID: "UNRATE", Cadence: Monthly}
	now := ts(2026, time.August, 15)

	lastMonth := ts(2026, time.July, 20)
	assert.True(t, s.ShouldRun(now, &lastMonth))

	thisMonth := ts(2026, time.August, 3)
	assert.False(t, s.ShouldRun(now, &thisMonth))
}

func TestShouldRun_Quarterly(t *testing.T) {
	s := Series{ID: "DRBLACBS", Cadence: Quarterly}

	// Q2 ends June 30; data available ~Aug 14 (45 day lag).
	now := ts(2026, time.August, 20)
	syncedInMay := ts(2026, time.May, 20)
	assert.True(t, s.ShouldRun(now, &syncedInMay))

	syncedAfterRelease := ts(2026, time.August, 16)
	assert.False(t, s.ShouldRun(now, &syncedAfterRelease))

	// Before the Q2 release, a sync covering the Q1 release suffices.
	beforeRelease := ts(2026, time.July, 20)
	syncedAfterQ1Release := ts(2026, time.June, 1)
	assert.False(t, s.ShouldRun(beforeRelease, &syncedAfterQ1Release))

	syncedBeforeQ1Release := ts(2026, time.April, 1)
	assert.True(t, s.ShouldRun(beforeRelease, &syncedBeforeQ1Release))
}

func TestMostRecentQuarterEnd(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{ts(2026, time.February, 10), time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC)},
		{ts(2026, time.May, 1), time.Date(2026, time.March, 31, 23, 59, 59, 0, time.UTC)},
		{ts(2026, time.August, 26), time.Date(2026, time.June, 30, 23, 59, 59, 0, time.UTC)},
		{ts(2026, time.November, 2), time.Date(2026, time.September, 30, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mostRecentQuarterEnd(tt.now))
	}
}
