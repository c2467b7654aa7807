package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/creditlens/loanmarket-api/internal/catalog"
	"github.com/creditlens/loanmarket-api/internal/fredsync"
	"github.com/creditlens/loanmarket-api/internal/market"
)

const dateLayout = "2006-01-02"

// MarketReader is the read-side store the handlers query.
type MarketReader interface {
	ObservationsRange(ctx context.Context, seriesID string, start, end time.Time) ([]market.Observation, error)
	RecessionsRange(ctx context.Context, start, end time.Time) ([]market.RecessionPeriod, error)
	Snapshot(ctx context.Context) (*market.Snapshot, error)
	HistoricalOverview(ctx context.Context, seriesIDs []string, start, end time.Time) (map[string]market.SeriesHistory, error)
	Stats(ctx context.Context) (*market.Stats, error)
	TotalObservations(ctx context.Context) (int64, error)
}

// SyncRunner triggers a sync run on demand.
type SyncRunner interface {
	Run(ctx context.Context, opts fredsync.RunOpts) (*fredsync.RunSummary, error)
}

// FetchLogReader exposes recent fetch history for the stats endpoint.
type FetchLogReader interface {
	Recent(ctx context.Context, limit int) ([]fredsync.FetchEntry, error)
}

// API bundles the HTTP handlers and their dependencies.
type API struct {
	cat            *catalog.Catalog
	store          MarketReader
	engine         SyncRunner
	fetchLog       FetchLogReader
	cache          Cache
	cacheTTL       time.Duration
	fredConfigured bool
}

// NewAPI wires the handler set.
func NewAPI(cat *catalog.Catalog, store MarketReader, engine SyncRunner, fetchLog FetchLogReader, cache Cache, cacheTTL time.Duration, fredConfigured bool) *API {
	return &API{
		cat:            cat,
		store:          store,
		engine:         engine,
		fetchLog:       fetchLog,
		cache:          cache,
		cacheTTL:       cacheTTL,
		fredConfigured: fredConfigured,
	}
}

type dataPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type seriesResponse struct {
	SeriesID    string      `json:"series_id"`
	SeriesName  string      `json:"series_name"`
	Unit        string      `json:"unit"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
	TotalPoints int         `json:"total_points"`
	Data        []dataPoint `json:"data"`
}

type recessionResponse struct {
	ID        int64   `json:"id"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date"`
	Name      string  `json:"name,omitempty"`
}

type metricResponse struct {
	SeriesID string  `json:"series_id"`
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Date     string  `json:"date"`
	Value    float64 `json:"value"`
}

type overviewResponse struct {
	Date        string                    `json:"date"`
	InRecession bool                      `json:"in_recession"`
	Metrics     map[string]metricResponse `json:"metrics"`
}

type historySeriesResponse struct {
	SeriesName string      `json:"series_name"`
	Unit       string      `json:"unit"`
	Data       []dataPoint `json:"data"`
}

type seriesStatsResponse struct {
	SeriesID string  `json:"series_id"`
	Name     string  `json:"name"`
	Count    int64   `json:"count"`
	Earliest *string `json:"earliest_date"`
	Latest   *string `json:"latest_date"`
}

type statsResponse struct {
	TotalObservations int64                 `json:"total_observations"`
	RecessionPeriods  int64                 `json:"recession_periods"`
	Series            []seriesStatsResponse `json:"series"`
	RecentFetches     []fredsync.FetchEntry `json:"recent_fetches"`
}

type healthResponse struct {
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp"`
	DatabaseConnected bool   `json:"database_connected"`
	FREDConfigured    bool   `json:"fred_api_configured"`
	TotalRecords      int64  `json:"total_records"`
}

// Health reports service liveness plus dependency state.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		FREDConfigured: a.fredConfigured,
	}
	total, err := a.store.TotalObservations(r.Context())
	if err != nil {
		zap.L().Warn("health: database check failed", zap.Error(err))
		resp.Status = "degraded"
	} else {
		resp.DatabaseConnected = true
		resp.TotalRecords = total
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSeries returns the catalog of tracked series.
func (a *API) ListSeries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.cat.All())
}

// SeriesData returns observations for one series in a date range.
func (a *API) SeriesData(w http.ResponseWriter, r *http.Request) {
	seriesID := chi.URLParam(r, "seriesID")
	s, err := a.cat.Get(seriesID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown series "+seriesID)
		return
	}

	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	obs, err := a.store.ObservationsRange(r.Context(), seriesID, start, end)
	if err != nil {
		writeInternalError(w, "series data query failed", err)
		return
	}

	writeJSON(w, http.StatusOK, seriesResponse{
		SeriesID:    s.ID,
		SeriesName:  s.Name,
		Unit:        s.Unit,
		StartDate:   start.Format(dateLayout),
		EndDate:     end.Format(dateLayout),
		TotalPoints: len(obs),
		Data:        toDataPoints(obs),
	})
}

// Recessions returns recession intervals overlapping a date range.
func (a *API) Recessions(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	periods, err := a.store.RecessionsRange(r.Context(), start, end)
	if err != nil {
		writeInternalError(w, "recession query failed", err)
		return
	}

	out := make([]recessionResponse, 0, len(periods))
	for _, p := range periods {
		rr := recessionResponse{
			ID:        p.ID,
			StartDate: p.StartDate.Format(dateLayout),
			Name:      p.Name,
		}
		if p.EndDate != nil {
			endStr := p.EndDate.Format(dateLayout)
			rr.EndDate = &endStr
		}
		out = append(out, rr)
	}
	writeJSON(w, http.StatusOK, out)
}

// OverviewCurrent returns the latest value of each overview metric plus the
// recession flag. Cached briefly.
func (a *API) OverviewCurrent(w http.ResponseWriter, r *http.Request) {
	const key = "overview:current"
	if b, ok := a.cache.Get(r.Context(), key); ok {
		writeRawJSON(w, http.StatusOK, b)
		return
	}

	snap, err := a.store.Snapshot(r.Context())
	if err != nil {
		writeInternalError(w, "overview query failed", err)
		return
	}

	resp := overviewResponse{
		Date:        snap.Date.Format(dateLayout),
		InRecession: snap.InRecession,
		Metrics:     make(map[string]metricResponse, len(snap.Metrics)),
	}
	for _, m := range snap.Metrics {
		resp.Metrics[m.Key] = metricResponse{
			SeriesID: m.SeriesID,
			Name:     m.Name,
			Unit:     m.Unit,
			Date:     m.Date.Format(dateLayout),
			Value:    m.Value.InexactFloat64(),
		}
	}

	a.writeAndCache(w, r.Context(), key, resp)
}

// OverviewHistorical returns full histories for the overview series. The
// series are returned as parallel lists keyed by series ID; clients align
// dates themselves.
func (a *API) OverviewHistorical(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	overview := a.cat.OverviewSeries()
	ids := make([]string, 0, len(overview))
	for _, s := range overview {
		ids = append(ids, s.ID)
	}

	histories, err := a.store.HistoricalOverview(r.Context(), ids, start, end)
	if err != nil {
		writeInternalError(w, "historical overview query failed", err)
		return
	}

	out := make(map[string]historySeriesResponse, len(histories))
	for id, h := range histories {
		out[id] = historySeriesResponse{
			SeriesName: h.Name,
			Unit:       h.Unit,
			Data:       toDataPoints(h.Observations),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Stats returns dataset totals and recent fetch history. Cached briefly.
func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	const key = "stats"
	if b, ok := a.cache.Get(r.Context(), key); ok {
		writeRawJSON(w, http.StatusOK, b)
		return
	}

	stats, err := a.store.Stats(r.Context())
	if err != nil {
		writeInternalError(w, "stats query failed", err)
		return
	}
	fetches, err := a.fetchLog.Recent(r.Context(), 10)
	if err != nil {
		writeInternalError(w, "fetch log query failed", err)
		return
	}
	if fetches == nil {
		fetches = []fredsync.FetchEntry{}
	}

	resp := statsResponse{
		TotalObservations: stats.TotalObservations,
		RecessionPeriods:  stats.RecessionPeriods,
		Series:            make([]seriesStatsResponse, 0, len(stats.Series)),
		RecentFetches:     fetches,
	}
	for _, s := range stats.Series {
		sr := seriesStatsResponse{SeriesID: s.SeriesID, Name: s.Name, Count: s.Count}
		if s.Earliest != nil {
			v := s.Earliest.Format(dateLayout)
			sr.Earliest = &v
		}
		if s.Latest != nil {
			v := s.Latest.Format(dateLayout)
			sr.Latest = &v
		}
		resp.Series = append(resp.Series, sr)
	}

	a.writeAndCache(w, r.Context(), key, resp)
}

// Refresh runs a sync and returns the per-series summary. A run already in
// flight yields 409 rather than queueing.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	opts := fredsync.RunOpts{Force: true}
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		start, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_date: "+raw)
			return
		}
		opts.StartDate = start
	}

	summary, err := a.engine.Run(r.Context(), opts)
	if err != nil {
		if errors.Is(err, fredsync.ErrSyncInFlight) {
			writeError(w, http.StatusConflict, "a data refresh is already in progress")
			return
		}
		writeInternalError(w, "refresh failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "complete",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"run":       summary,
	})
}

func (a *API) writeAndCache(w http.ResponseWriter, ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeInternalError(w, "encode response", err)
		return
	}
	if err := a.cache.Set(ctx, key, b, a.cacheTTL); err != nil {
		zap.L().Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	writeRawJSON(w, http.StatusOK, b)
}

func toDataPoints(obs []market.Observation) []dataPoint {
	out := make([]dataPoint, 0, len(obs))
	for _, o := range obs {
		out = append(out, dataPoint{Date: o.Date.Format(dateLayout), Value: o.Value.InexactFloat64()})
	}
	return out
}

// parseDateRange reads start_date/end_date query params, defaulting to the
// service's full window.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	start := fredsync.DefaultStartDate
	end := time.Now().UTC()

	if raw := r.URL.Query().Get("start_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid start_date: " + raw)
		}
		start = t
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid end_date: " + raw)
		}
		end = t
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end_date precedes start_date")
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeInternalError(w http.ResponseWriter, msg string, err error) {
	zap.L().Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, msg)
}
