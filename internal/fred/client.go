// Package fred wraps the St. Louis Fed FRED observations API. The client
// performs no retries of its own; retry policy belongs to the caller.
package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// missingValue is FRED's sentinel for an observation with no data. These are
// filtered out, never stored as zero.
const missingValue = "."

const dateLayout = "2006-01-02"

// Observation is one (date, value) sample of a series.
type Observation struct {
	Date  time.Time
	Value decimal.Decimal
}

// SeriesInfo is upstream metadata about a series.
type SeriesInfo struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Units              string `json:"units"`
	Frequency          string `json:"frequency"`
	SeasonalAdjustment string `json:"seasonal_adjustment"`
	LastUpdated        string `json:"last_updated"`
}

// Options configures the FRED client.
type Options struct {
	APIKey     string
	BaseURL    string        // default https://api.stlouisfed.org
	Timeout    time.Duration // per-request HTTP timeout, default 30s
	RatePerSec float64       // outbound request rate, default 2 (FRED allows 120/min)
	Burst      int
	UserAgent  string
}

// Client calls the FRED API.
type Client struct {
	httpClient *http.Client
	opts       Options
	limiter    *rate.Limiter
}

// New creates a FRED client with the given options.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.stlouisfed.org"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 2
	}
	if opts.Burst == 0 {
		opts.Burst = 4
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "loanmarket-api/1.0"
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
	}
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Observations fetches the series' observations over [start, end], ascending
// by date, with missing-value sentinels filtered out. A zero end means "up
// to the latest available".
func (c *Client) Observations(ctx context.Context, seriesID string, start, end time.Time) ([]Observation, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", c.opts.APIKey)
	q.Set("file_type", "json")
	q.Set("sort_order", "asc")
	if !start.IsZero() {
		q.Set("observation_start", start.Format(dateLayout))
	}
	if !end.IsZero() {
		q.Set("observation_end", end.Format(dateLayout))
	}

	body, err := c.get(ctx, seriesID, "/fred/series/observations", q)
	if err != nil {
		return nil, err
	}

	var resp observationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{SeriesID: seriesID, Err: eris.Wrap(err, "decode observations payload")}
	}

	obs := make([]Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		if o.Value == missingValue {
			continue
		}
		date, err := time.Parse(dateLayout, o.Date)
		if err != nil {
			return nil, &UpstreamError{SeriesID: seriesID, Err: eris.Wrapf(err, "bad observation date %q", o.Date)}
		}
		value, err := decimal.NewFromString(o.Value)
		if err != nil {
			return nil, &UpstreamError{SeriesID: seriesID, Err: eris.Wrapf(err, "bad observation value %q", o.Value)}
		}
		obs = append(obs, Observation{Date: date, Value: value})
	}
	return obs, nil
}

type seriesResponse struct {
	Seriess []SeriesInfo `json:"seriess"`
}

// SeriesInfo fetches upstream metadata (title, units) for a series.
func (c *Client) SeriesInfo(ctx context.Context, seriesID string) (*SeriesInfo, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", c.opts.APIKey)
	q.Set("file_type", "json")

	body, err := c.get(ctx, seriesID, "/fred/series", q)
	if err != nil {
		return nil, err
	}

	var resp seriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{SeriesID: seriesID, Err: eris.Wrap(err, "decode series payload")}
	}
	if len(resp.Seriess) == 0 {
		return nil, &UpstreamError{SeriesID: seriesID, Err: eris.New("series not found upstream")}
	}
	return &resp.Seriess[0], nil
}

// get performs one rate-limited request and classifies failures into the
// UpstreamError / RateLimitError taxonomy.
func (c *Client) get(ctx context.Context, seriesID, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &UpstreamError{SeriesID: seriesID, Err: eris.Wrap(err, "rate limiter wait")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "fred: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{SeriesID: seriesID, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{UpstreamError{
			SeriesID:   seriesID,
			StatusCode: resp.StatusCode,
			Err:        eris.New("too many requests"),
		}}
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{
			SeriesID:   seriesID,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", string(snippet)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{SeriesID: seriesID, Err: eris.Wrap(err, "read response body")}
	}
	return body, nil
}
