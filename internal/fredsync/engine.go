package fredsync

import (
	"context"
	"hash/fnv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/creditlens/loanmarket-api/internal/catalog"
	"github.com/creditlens/loanmarket-api/internal/db"
	"github.com/creditlens/loanmarket-api/internal/fred"
	"github.com/creditlens/loanmarket-api/internal/resilience"
)

// ErrSyncInFlight is returned by Run when a sync is already executing on
// this engine. Callers surface it rather than queueing a second run.
var ErrSyncInFlight = eris.New("fredsync: a sync run is already in progress")

// DefaultStartDate is the beginning of the fetch window when a run does not
// override it. FRED coverage for the tracked series is thin before 1980.
var DefaultStartDate = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// observationFetcher is the slice of the FRED client the engine needs.
type observationFetcher interface {
	Observations(ctx context.Context, seriesID string, start, end time.Time) ([]fred.Observation, error)
}

// Options tunes engine behavior. Zero values fall back to defaults.
type Options struct {
	Workers          int           // concurrent series fetches, default 1
	FetchTimeout     time.Duration // per-series upstream call budget, default 60s
	Retry            resilience.RetryConfig
	BreakerThreshold int
	BreakerReset     time.Duration
}

// Engine orchestrates sync runs: fetch each selected series from FRED,
// reconcile it into Postgres, and record the attempt in the fetch log.
// Series are isolated from one another; one failure never aborts the run.
type Engine struct {
	pool     db.Pool
	client   observationFetcher
	fetchLog *FetchLog
	cat      *catalog.Catalog
	opts     Options
	breaker  *resilience.Breaker
	running  atomic.Bool
	now      func() time.Time
}

// RunOpts configures which series to sync and how.
type RunOpts struct {
	Series    []string  // restrict to specific series IDs
	Force     bool      // ignore cadence scheduling
	StartDate time.Time // override the fetch window start
}

// SeriesResult is the per-series outcome of a run.
type SeriesResult struct {
	SeriesID    string `json:"series_id"`
	Status      string `json:"status"` // complete, failed, or skipped
	RowsFetched int    `json:"rows_fetched"`
	RowsWritten int64  `json:"rows_written"`
	Error       string `json:"error,omitempty"`
}

// RunSummary aggregates the outcome of a sync run.
type RunSummary struct {
	RunID     uuid.UUID      `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Elapsed   time.Duration  `json:"elapsed"`
	Synced    int            `json:"synced"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Results   []SeriesResult `json:"results"`
}

// NewEngine creates a sync engine over the given pool, FRED client,
// fetch log, and series catalog.
func NewEngine(pool db.Pool, client observationFetcher, fetchLog *FetchLog, cat *catalog.Catalog, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 60 * time.Second
	}
	if opts.Retry.ShouldRetry == nil {
		opts.Retry = resilience.DefaultRetryConfig()
		opts.Retry.ShouldRetry = fred.IsRetryable
	}
	return &Engine{
		pool:     pool,
		client:   client,
		fetchLog: fetchLog,
		cat:      cat,
		opts:     opts,
		breaker:  resilience.NewBreaker(opts.BreakerThreshold, opts.BreakerReset),
		now:      time.Now,
	}
}

// Run syncs the selected series and returns a per-series summary. Only one
// run may execute at a time; a concurrent call gets ErrSyncInFlight. After
// the recession indicator syncs successfully, recession intervals are
// re-derived from the stored sequence.
func (e *Engine) Run(ctx context.Context, opts RunOpts) (*RunSummary, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInFlight
	}
	defer e.running.Store(false)

	log := zap.L().With(zap.String("component", "fredsync.engine"))

	series, err := e.cat.Select(opts.Series)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		RunID:     uuid.New(),
		StartedAt: e.now().UTC(),
		Results:   make([]SeriesResult, len(series)),
	}
	log = log.With(zap.String("run_id", summary.RunID.String()))
	log.Info("starting sync run", zap.Int("series", len(series)), zap.Bool("force", opts.Force))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, s := range series {
		g.Go(func() error {
			summary.Results[i] = e.syncSeries(gctx, log, summary.RunID, s, opts)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers report through Results, never an error

	for _, r := range summary.Results {
		switch r.Status {
		case StatusComplete:
			summary.Synced++
		case StatusFailed:
			summary.Failed++
		case StatusSkipped:
			summary.Skipped++
		}
		if r.SeriesID == catalog.RecessionIndicatorID && r.Status == StatusComplete {
			if err := e.refreshRecessions(ctx); err != nil {
				log.Error("recession derivation failed", zap.Error(err))
			}
		}
	}

	summary.Elapsed = e.now().UTC().Sub(summary.StartedAt)
	log.Info("sync run complete",
		zap.Int("synced", summary.Synced),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// Running reports whether a sync run is currently executing.
func (e *Engine) Running() bool {
	return e.running.Load()
}

func (e *Engine) syncSeries(ctx context.Context, log *zap.Logger, runID uuid.UUID, s catalog.Series, opts RunOpts) SeriesResult {
	sLog := log.With(zap.String("series", s.ID))
	res := SeriesResult{SeriesID: s.ID}

	if !opts.Force {
		lastSync, err := e.fetchLog.LastSuccess(ctx, s.ID)
		if err != nil {
			sLog.Error("last-success lookup failed", zap.Error(err))
			res.Status = StatusFailed
			res.Error = err.Error()
			return res
		}
		if !s.ShouldRun(e.now().UTC(), lastSync) {
			sLog.Debug("skipping (not due)")
			res.Status = StatusSkipped
			return res
		}
	}

	start := opts.StartDate
	if start.IsZero() {
		start = DefaultStartDate
	}

	fetchID, err := e.fetchLog.Start(ctx, runID, s.ID, start, e.now().UTC())
	if err != nil {
		sLog.Error("failed to open fetch log entry", zap.Error(err))
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}

	obs, err := e.fetch(ctx, s.ID, start)
	if err != nil {
		sLog.Error("fetch failed", zap.Error(err))
		e.recordFailure(ctx, sLog, fetchID, err)
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	res.RowsFetched = len(obs)

	written, err := e.reconcile(ctx, s.ID, obs)
	if err != nil {
		sLog.Error("reconcile failed", zap.Error(err))
		e.recordFailure(ctx, sLog, fetchID, err)
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	res.RowsWritten = written

	if err := e.fetchLog.Complete(ctx, fetchID, len(obs), written); err != nil {
		sLog.Error("failed to record fetch completion", zap.Error(err))
	}

	sLog.Info("series synced", zap.Int("fetched", len(obs)), zap.Int64("written", written))
	res.Status = StatusComplete
	return res
}

// fetch pulls the full observation window for one series, retrying transient
// upstream failures and tripping the shared breaker on sustained ones.
func (e *Engine) fetch(ctx context.Context, seriesID string, start time.Time) ([]fred.Observation, error) {
	return resilience.Retry(ctx, e.opts.Retry, func(ctx context.Context) ([]fred.Observation, error) {
		if !e.breaker.Allow() {
			return nil, resilience.ErrCircuitOpen
		}
		fctx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
		defer cancel()
		obs, err := e.client.Observations(fctx, seriesID, start, time.Time{})
		e.breaker.Record(err)
		return obs, err
	})
}

// reconcile writes one series' observations in a single transaction. An
// advisory lock keyed on the series ID serializes writers of the same
// series without blocking writers of other series.
func (e *Engine) reconcile(ctx context.Context, seriesID string, obs []fred.Observation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(obs))
	for i, o := range obs {
		rows[i] = []any{seriesID, o.Date, o.Value.InexactFloat64()}
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return 0, &ReconciliationError{SeriesID: seriesID, Err: eris.Wrap(err, "begin tx")}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", seriesLockKey(seriesID)); err != nil {
		return 0, &ReconciliationError{SeriesID: seriesID, Err: eris.Wrap(err, "acquire series lock")}
	}

	written, err := db.UpsertTx(ctx, tx, db.UpsertConfig{
		Table:        "market.observations",
		Columns:      []string{"series_id", "obs_date", "value"},
		ConflictKeys: []string{"series_id", "obs_date"},
	}, rows)
	if err != nil {
		return 0, &ReconciliationError{SeriesID: seriesID, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &ReconciliationError{SeriesID: seriesID, Err: eris.Wrap(err, "commit tx")}
	}
	return written, nil
}

// refreshRecessions re-derives recession intervals from the full stored
// indicator sequence and reconciles them into recession_periods.
func (e *Engine) refreshRecessions(ctx context.Context) error {
	rows, err := e.pool.Query(ctx,
		"SELECT obs_date, value FROM market.observations WHERE series_id = $1 ORDER BY obs_date",
		catalog.RecessionIndicatorID,
	)
	if err != nil {
		return eris.Wrap(err, "fredsync: load recession indicator")
	}
	defer rows.Close()

	var obs []fred.Observation
	for rows.Next() {
		var (
			date  time.Time
			value float64
		)
		if err := rows.Scan(&date, &value); err != nil {
			return eris.Wrap(err, "fredsync: scan recession indicator")
		}
		obs = append(obs, fred.Observation{Date: date, Value: decimal.NewFromFloat(value)})
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "fredsync: iterate recession indicator")
	}

	intervals, err := DeriveIntervals(obs)
	if err != nil {
		return err
	}
	return ApplyIntervals(ctx, e.pool, intervals)
}

func (e *Engine) recordFailure(ctx context.Context, log *zap.Logger, fetchID int64, cause error) {
	if err := e.fetchLog.Fail(ctx, fetchID, cause.Error()); err != nil {
		log.Error("failed to record fetch failure", zap.Error(err))
	}
}

// seriesLockKey maps a series ID onto a stable advisory lock key.
func seriesLockKey(seriesID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(seriesID)) //nolint:errcheck
	return int64(h.Sum64())
}
