package market

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/creditlens/loanmarket-api/internal/catalog"
	"github.com/creditlens/loanmarket-api/internal/db"
)

// Store serves read queries over persisted observations and recession
// periods. Reads may run concurrently with sync writes; the per-series
// transaction boundary on the write side guarantees a reader sees either
// the pre- or post-sync state of a row.
type Store struct {
	pool db.Pool
	cat  *catalog.Catalog
}

// NewStore creates a read store over the given pool.
func NewStore(pool db.Pool, cat *catalog.Catalog) *Store {
	return &Store{pool: pool, cat: cat}
}

// ObservationsRange returns a series' observations within the inclusive
// [start, end] range, ascending by date. An empty range yields an empty
// slice, not an error.
func (s *Store) ObservationsRange(ctx context.Context, seriesID string, start, end time.Time) ([]Observation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT series_id, obs_date, value FROM market.observations
		 WHERE series_id = $1 AND obs_date >= $2 AND obs_date <= $3
		 ORDER BY obs_date`,
		seriesID, start, end,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "market: observations range for %s", seriesID)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// FullSeries returns every stored observation for a series, ascending by date.
func (s *Store) FullSeries(ctx context.Context, seriesID string) ([]Observation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT series_id, obs_date, value FROM market.observations
		 WHERE series_id = $1 ORDER BY obs_date`,
		seriesID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "market: full series for %s", seriesID)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// LatestObservation returns the most recent observation for a series, or
// nil when the series has no stored rows.
func (s *Store) LatestObservation(ctx context.Context, seriesID string) (*Observation, error) {
	var (
		id    string
		date  time.Time
		value float64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT series_id, obs_date, value FROM market.observations
		 WHERE series_id = $1 ORDER BY obs_date DESC LIMIT 1`,
		seriesID,
	).Scan(&id, &date, &value)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "market: latest observation for %s", seriesID)
	}
	return &Observation{SeriesID: id, Date: date, Value: decimal.NewFromFloat(value)}, nil
}

// RecessionsRange returns recession periods overlapping the inclusive
// [start, end] range, ascending by start date. Open periods overlap any
// range that begins before "now".
func (s *Store) RecessionsRange(ctx context.Context, start, end time.Time) ([]RecessionPeriod, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, start_date, end_date, name FROM market.recession_periods
		 WHERE (end_date >= $1 OR end_date IS NULL) AND start_date <= $2
		 ORDER BY start_date`,
		start, end,
	)
	if err != nil {
		return nil, eris.Wrap(err, "market: recessions range")
	}
	defer rows.Close()

	var periods []RecessionPeriod
	for rows.Next() {
		var p RecessionPeriod
		if err := rows.Scan(&p.ID, &p.StartDate, &p.EndDate, &p.Name); err != nil {
			return nil, eris.Wrap(err, "market: scan recession period")
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// Snapshot assembles the current-market overview: the latest observation of
// each overview series plus the recession flag from the latest indicator
// observation.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	for _, series := range s.cat.OverviewSeries() {
		obs, err := s.LatestObservation(ctx, series.ID)
		if err != nil {
			return nil, err
		}
		if obs == nil {
			continue
		}
		snap.Metrics = append(snap.Metrics, MetricValue{
			Key:      series.Key,
			SeriesID: series.ID,
			Name:     series.Name,
			Unit:     series.Unit,
			Date:     obs.Date,
			Value:    obs.Value,
		})
		if obs.Date.After(snap.Date) {
			snap.Date = obs.Date
		}
	}

	indicator, err := s.LatestObservation(ctx, catalog.RecessionIndicatorID)
	if err != nil {
		return nil, err
	}
	if indicator != nil && indicator.Value.Equal(decimal.NewFromInt(1)) {
		snap.InRecession = true
	}

	return snap, nil
}

// HistoricalOverview returns per-series observation lists for the given
// series IDs over [start, end], keyed by series ID. Series with no rows in
// the range are omitted.
func (s *Store) HistoricalOverview(ctx context.Context, seriesIDs []string, start, end time.Time) (map[string]SeriesHistory, error) {
	out := make(map[string]SeriesHistory, len(seriesIDs))
	for _, id := range seriesIDs {
		series, err := s.cat.Get(id)
		if err != nil {
			return nil, err
		}
		obs, err := s.ObservationsRange(ctx, id, start, end)
		if err != nil {
			return nil, err
		}
		if len(obs) == 0 {
			continue
		}
		out[id] = SeriesHistory{
			SeriesID:     id,
			Name:         series.Name,
			Unit:         series.Unit,
			Observations: obs,
		}
	}
	return out, nil
}

// TotalObservations returns the total stored observation count.
func (s *Store) TotalObservations(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM market.observations`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "market: count observations")
	}
	return n, nil
}

// Stats aggregates per-series counts and date coverage.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	var err error
	if stats.TotalObservations, err = s.TotalObservations(ctx); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT series_id, count(*), min(obs_date), max(obs_date)
		 FROM market.observations GROUP BY series_id ORDER BY series_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "market: series stats")
	}
	defer rows.Close()

	for rows.Next() {
		var st SeriesStats
		if err := rows.Scan(&st.SeriesID, &st.Count, &st.Earliest, &st.Latest); err != nil {
			return nil, eris.Wrap(err, "market: scan series stats")
		}
		if series, err := s.cat.Get(st.SeriesID); err == nil {
			st.Name = series.Name
		}
		stats.Series = append(stats.Series, st)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "market: series stats rows")
	}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM market.recession_periods`).Scan(&stats.RecessionPeriods); err != nil {
		return nil, eris.Wrap(err, "market: count recession periods")
	}

	return stats, nil
}

func scanObservations(rows pgx.Rows) ([]Observation, error) {
	obs := []Observation{}
	for rows.Next() {
		var (
			o     Observation
			value float64
		)
		if err := rows.Scan(&o.SeriesID, &o.Date, &value); err != nil {
			return nil, eris.Wrap(err, "market: scan observation")
		}
		o.Value = decimal.NewFromFloat(value)
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || strings.Contains(err.Error(), "no rows in result set")
}
