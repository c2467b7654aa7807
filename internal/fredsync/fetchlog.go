package fredsync

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/creditlens/loanmarket-api/internal/db"
)

// Fetch attempt statuses recorded in market.fetch_log.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"

	// StatusSkipped appears only in run summaries; skipped series are not
	// logged to market.fetch_log.
	StatusSkipped = "skipped"
)

// FetchEntry is one row of the append-only fetch audit trail. Every series
// attempted in a sync run gets exactly one entry, success or failure.
type FetchEntry struct {
	ID          int64      `json:"id"`
	RunID       uuid.UUID  `json:"run_id"`
	SeriesID    string     `json:"series_id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RowsFetched int        `json:"rows_fetched"`
	RowsWritten int64      `json:"rows_written"`
	Error       string     `json:"error,omitempty"`
	RangeStart  *time.Time `json:"range_start,omitempty"`
	RangeEnd    *time.Time `json:"range_end,omitempty"`
}

// FetchLog provides read/write access to market.fetch_log.
type FetchLog struct {
	pool db.Pool
}

// NewFetchLog creates a FetchLog backed by the given pool.
func NewFetchLog(pool db.Pool) *FetchLog {
	return &FetchLog{pool: pool}
}

// LastSuccess returns the started_at time of the most recent successful
// fetch for a series, or nil if it has never been fetched successfully.
func (l *FetchLog) LastSuccess(ctx context.Context, seriesID string) (*time.Time, error) {
	var t time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT started_at FROM market.fetch_log
		 WHERE series_id = $1 AND status = 'complete'
		 ORDER BY started_at DESC LIMIT 1`,
		seriesID,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || strings.Contains(err.Error(), "no rows in result set") {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "fetchlog: last success for %s", seriesID)
	}
	return &t, nil
}

// Start records the beginning of a fetch attempt and returns its ID.
func (l *FetchLog) Start(ctx context.Context, runID uuid.UUID, seriesID string, rangeStart, rangeEnd time.Time) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO market.fetch_log (run_id, series_id, status, started_at, range_start, range_end)
		 VALUES ($1, $2, 'running', now(), $3, $4) RETURNING id`,
		runID, seriesID, rangeStart, rangeEnd,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "fetchlog: start fetch for %s", seriesID)
	}
	return id, nil
}

// Complete marks a fetch attempt as successful.
func (l *FetchLog) Complete(ctx context.Context, fetchID int64, rowsFetched int, rowsWritten int64) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE market.fetch_log
		 SET status = 'complete', completed_at = now(), rows_fetched = $1, rows_written = $2
		 WHERE id = $3`,
		rowsFetched, rowsWritten, fetchID,
	)
	if err != nil {
		return eris.Wrapf(err, "fetchlog: complete fetch %d", fetchID)
	}
	return nil
}

// Fail marks a fetch attempt as failed with an error message.
func (l *FetchLog) Fail(ctx context.Context, fetchID int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE market.fetch_log
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		errMsg, fetchID,
	)
	if err != nil {
		return eris.Wrapf(err, "fetchlog: fail fetch %d", fetchID)
	}
	return nil
}

// Recent returns the most recent fetch entries, newest first.
func (l *FetchLog) Recent(ctx context.Context, limit int) ([]FetchEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, run_id, series_id, status, started_at, completed_at, rows_fetched, rows_written, error, range_start, range_end
		 FROM market.fetch_log ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "fetchlog: list recent")
	}
	defer rows.Close()

	var entries []FetchEntry
	for rows.Next() {
		var (
			e      FetchEntry
			errStr *string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.SeriesID, &e.Status, &e.StartedAt, &e.CompletedAt, &e.RowsFetched, &e.RowsWritten, &errStr, &e.RangeStart, &e.RangeEnd); err != nil {
			return nil, eris.Wrap(err, "fetchlog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
