package fredsync

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/creditlens/loanmarket-api/internal/catalog"
	"github.com/creditlens/loanmarket-api/internal/db"
	"github.com/creditlens/loanmarket-api/internal/fred"
)

var one = decimal.NewFromInt(1)

// Interval is a labeled recession period derived from the NBER indicator
// series. EndDate is nil while the recession is ongoing.
type Interval struct {
	StartDate time.Time
	EndDate   *time.Time
	Name      string
}

// DeriveIntervals converts a 0/1 recession indicator sequence, ordered by
// date ascending, into labeled intervals. An interval opens at the date of
// the first 1 and closes at the date of the last consecutive 1, so a single
// 1 surrounded by 0s yields a one-observation interval. A trailing run of 1s
// produces an open interval. Any value other than 0 or 1 is rejected.
func DeriveIntervals(obs []fred.Observation) ([]Interval, error) {
	var (
		intervals []Interval
		open      bool
		start     time.Time
		lastOne   time.Time
	)
	for _, o := range obs {
		switch {
		case o.Value.IsZero():
			if open {
				end := lastOne
				intervals = append(intervals, Interval{
					StartDate: start,
					EndDate:   &end,
					Name:      recessionName(start),
				})
				open = false
			}
		case o.Value.Equal(one):
			if !open {
				open = true
				start = o.Date
			}
			lastOne = o.Date
		default:
			return nil, &ValidationError{
				SeriesID: catalog.RecessionIndicatorID,
				Date:     o.Date,
				Value:    o.Value,
				Reason:   "indicator must be 0 or 1",
			}
		}
	}
	if open {
		intervals = append(intervals, Interval{
			StartDate: start,
			Name:      recessionName(start),
		})
	}
	return intervals, nil
}

// ApplyIntervals reconciles derived intervals into market.recession_periods.
// Historical intervals are insert-only; only the most recent interval may be
// updated, which is how an ongoing recession gets its end date once the
// indicator returns to 0. The whole reconciliation runs in one transaction.
func ApplyIntervals(ctx context.Context, pool db.Pool, intervals []Interval) error {
	if len(intervals) == 0 {
		return nil
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "recessions: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i, iv := range intervals {
		var sql string
		if i == len(intervals)-1 {
			sql = `INSERT INTO market.recession_periods AS rp (start_date, end_date, name)
			       VALUES ($1, $2, $3)
			       ON CONFLICT (start_date) DO UPDATE
			       SET end_date = EXCLUDED.end_date, name = EXCLUDED.name
			       WHERE rp.end_date IS DISTINCT FROM EXCLUDED.end_date`
		} else {
			sql = `INSERT INTO market.recession_periods (start_date, end_date, name)
			       VALUES ($1, $2, $3)
			       ON CONFLICT (start_date) DO NOTHING`
		}
		if _, err := tx.Exec(ctx, sql, iv.StartDate, iv.EndDate, iv.Name); err != nil {
			return eris.Wrapf(err, "recessions: upsert interval starting %s", iv.StartDate.Format("2006-01-02"))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "recessions: commit tx")
	}
	return nil
}

var knownRecessions = map[int]string{
	1980: "Early 1980s Recession",
	1981: "1981-1982 Recession",
	1990: "Early 1990s Recession",
	2001: "Early 2000s Recession",
	2007: "Great Recession",
	2020: "COVID-19 Recession",
}

// recessionName labels an interval from its start year, tolerating a
// one-year offset so fiscal-boundary starts still pick up the common name.
func recessionName(start time.Time) string {
	year := start.Year()
	for y, name := range knownRecessions {
		if year == y {
			return name
		}
	}
	for y, name := range knownRecessions {
		if year == y-1 || year == y+1 {
			return name
		}
	}
	return fmt.Sprintf("%d Recession", year)
}
