package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/creditlens/loanmarket-api/internal/catalog"
	"github.com/creditlens/loanmarket-api/internal/config"
	"github.com/creditlens/loanmarket-api/internal/fredsync"
	"github.com/creditlens/loanmarket-api/internal/market"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubStore struct {
	obs           []market.Observation
	obsErr        error
	recessions    []market.RecessionPeriod
	snapshot      *market.Snapshot
	snapshotErr   error
	snapshotCalls int
	histories     map[string]market.SeriesHistory
	stats         *market.Stats
	total         int64
	totalErr      error
}

func (s *stubStore) ObservationsRange(_ context.Context, _ string, _, _ time.Time) ([]market.Observation, error) {
	return s.obs, s.obsErr
}

func (s *stubStore) RecessionsRange(_ context.Context, _, _ time.Time) ([]market.RecessionPeriod, error) {
	return s.recessions, nil
}

func (s *stubStore) Snapshot(_ context.Context) (*market.Snapshot, error) {
	s.snapshotCalls++
	return s.snapshot, s.snapshotErr
}

func (s *stubStore) HistoricalOverview(_ context.Context, _ []string, _, _ time.Time) (map[string]market.SeriesHistory, error) {
	return s.histories, nil
}

func (s *stubStore) Stats(_ context.Context) (*market.Stats, error) {
	return s.stats, nil
}

func (s *stubStore) TotalObservations(_ context.Context) (int64, error) {
	return s.total, s.totalErr
}

type stubRunner struct {
	summary *fredsync.RunSummary
	err     error
	gotOpts fredsync.RunOpts
}

func (r *stubRunner) Run(_ context.Context, opts fredsync.RunOpts) (*fredsync.RunSummary, error) {
	r.gotOpts = opts
	return r.summary, r.err
}

type stubFetchLog struct {
	entries []fredsync.FetchEntry
}

func (f *stubFetchLog) Recent(_ context.Context, _ int) ([]fredsync.FetchEntry, error) {
	return f.entries, nil
}

func newTestServer(t *testing.T, store *stubStore, runner *stubRunner) *httptest.Server {
	t.Helper()
	api := NewAPI(catalog.New(), store, runner, &stubFetchLog{}, NewMemoryCache(), time.Minute, true)
	srv := httptest.NewServer(Router(config.ServerConfig{AllowedOrigins: []string{"*"}}, api))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth_OK(t *testing.T) {
	store := &stubStore{total: 12345}
	srv := newTestServer(t, store, &stubRunner{})

	var body healthResponse
	resp := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.DatabaseConnected)
	assert.True(t, body.FREDConfigured)
	assert.Equal(t, int64(12345), body.TotalRecords)
}

func TestHealth_Degraded(t *testing.T) {
	store := &stubStore{totalErr: errors.New("connection refused")}
	srv := newTestServer(t, store, &stubRunner{})

	var body healthResponse
	resp := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "degraded", body.Status)
	assert.False(t, body.DatabaseConnected)
}

func TestListSeries(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, &stubRunner{})

	var body []catalog.Series
	resp := getJSON(t, srv.URL+"/api/series", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body, len(catalog.New().All()))
}

func TestSeriesData(t *testing.T) {
	store := &stubStore{obs: []market.Observation{
		{SeriesID: "GDP", Date: time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC), Value: decimal.NewFromFloat(27000.5)},
		{SeriesID: "GDP", Date: time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC), Value: decimal.NewFromFloat(27350.2)},
	}}
	srv := newTestServer(t, store, &stubRunner{})

	var body seriesResponse
	resp := getJSON(t, srv.URL+"/api/series/GDP?start_date=2025-01-01&end_date=2025-12-31", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "GDP", body.SeriesID)
	assert.Equal(t, "Gross Domestic Product", body.SeriesName)
	assert.Equal(t, 2, body.TotalPoints)
	assert.Equal(t, "2025-03-31", body.Data[0].Date)
	assert.InDelta(t, 27000.5, body.Data[0].Value, 0.001)
	assert.Equal(t, "2025-01-01", body.StartDate)
	assert.Equal(t, "2025-12-31", body.EndDate)
}

func TestSeriesData_UnknownSeries(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, &stubRunner{})

	resp := getJSON(t, srv.URL+"/api/series/BOGUS", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSeriesData_BadDates(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, &stubRunner{})

	resp := getJSON(t, srv.URL+"/api/series/GDP?start_date=not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/api/series/GDP?start_date=2025-06-01&end_date=2025-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecessions_OpenIntervalHasNullEnd(t *testing.T) {
	end := time.Date(2009, time.June, 1, 0, 0, 0, 0, time.UTC)
	store := &stubStore{recessions: []market.RecessionPeriod{
		{ID: 1, StartDate: time.Date(2007, time.December, 1, 0, 0, 0, 0, time.UTC), EndDate: &end, Name: "Great Recession"},
		{ID: 2, StartDate: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), Name: "2026 Recession"},
	}}
	srv := newTestServer(t, store, &stubRunner{})

	var body []recessionResponse
	resp := getJSON(t, srv.URL+"/api/recessions", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body, 2)
	require.NotNil(t, body[0].EndDate)
	assert.Equal(t, "2009-06-01", *body[0].EndDate)
	assert.Nil(t, body[1].EndDate)
}

func TestOverviewCurrent_CachesResponse(t *testing.T) {
	store := &stubStore{snapshot: &market.Snapshot{
		Date:        time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		InRecession: true,
		Metrics: []market.MetricValue{
			{Key: "unemployment", SeriesID: "UNRATE", Name: "Unemployment Rate", Unit: "percent",
				Date: time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), Value: decimal.NewFromFloat(4.2)},
		},
	}}
	srv := newTestServer(t, store, &stubRunner{})

	var body overviewResponse
	resp := getJSON(t, srv.URL+"/api/overview/current", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.InRecession)
	require.Contains(t, body.Metrics, "unemployment")
	assert.InDelta(t, 4.2, body.Metrics["unemployment"].Value, 0.001)

	// Second request is served from cache.
	getJSON(t, srv.URL+"/api/overview/current", &body)
	assert.Equal(t, 1, store.snapshotCalls)
	assert.True(t, body.InRecession)
}

func TestOverviewHistorical(t *testing.T) {
	store := &stubStore{histories: map[string]market.SeriesHistory{
		"UNRATE": {
			SeriesID: "UNRATE",
			Name:     "Unemployment Rate",
			Unit:     "percent",
			Observations: []market.Observation{
				{SeriesID: "UNRATE", Date: time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC), Value: decimal.NewFromFloat(4.1)},
			},
		},
	}}
	srv := newTestServer(t, store, &stubRunner{})

	var body map[string]historySeriesResponse
	resp := getJSON(t, srv.URL+"/api/overview/historical?start_date=2026-01-01", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "UNRATE")
	assert.Equal(t, "Unemployment Rate", body["UNRATE"].SeriesName)
	require.Len(t, body["UNRATE"].Data, 1)
	assert.Equal(t, "2026-07-01", body["UNRATE"].Data[0].Date)
}

func TestStats(t *testing.T) {
	earliest := time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	store := &stubStore{stats: &market.Stats{
		TotalObservations: 50000,
		RecessionPeriods:  7,
		Series: []market.SeriesStats{
			{SeriesID: "GDP", Name: "Gross Domestic Product", Count: 186, Earliest: &earliest, Latest: &latest},
		},
	}}
	srv := newTestServer(t, store, &stubRunner{})

	var body statsResponse
	resp := getJSON(t, srv.URL+"/api/stats", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(50000), body.TotalObservations)
	assert.Equal(t, int64(7), body.RecessionPeriods)
	require.Len(t, body.Series, 1)
	require.NotNil(t, body.Series[0].Earliest)
	assert.Equal(t, "1980-01-01", *body.Series[0].Earliest)
	assert.NotNil(t, body.RecentFetches)
}

func TestRefresh(t *testing.T) {
	runner := &stubRunner{summary: &fredsync.RunSummary{Synced: 11}}
	srv := newTestServer(t, &stubStore{}, runner)

	resp, err := http.Post(srv.URL+"/api/data/refresh?start_date=2020-01-01", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string               `json:"status"`
		Run    *fredsync.RunSummary `json:"run"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "complete", body.Status)
	assert.Equal(t, 11, body.Run.Synced)
	assert.True(t, runner.gotOpts.Force)
	assert.Equal(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), runner.gotOpts.StartDate)
}

func TestRefresh_Conflict(t *testing.T) {
	runner := &stubRunner{err: fredsync.ErrSyncInFlight}
	srv := newTestServer(t, &stubStore{}, runner)

	resp, err := http.Post(srv.URL+"/api/data/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRefresh_BadStartDate(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, &stubRunner{})

	resp, err := http.Post(srv.URL+"/api/data/refresh?start_date=garbage", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
