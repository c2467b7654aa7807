// Package catalog holds the static registry of tracked FRED series:
// identifiers, display metadata, and sync cadence. Reference data only,
// loaded once and immutable.
package catalog

import (
	"github.com/rotisserie/eris"
)

// Series describes one tracked FRED series.
type Series struct {
	ID       string  `json:"series_id"`
	Key      string  `json:"key"` // short internal key, e.g. "commercial_delinquency"
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Unit     string  `json:"unit"`
	Cadence  Cadence `json:"cadence"`
}

// RecessionIndicatorID is the NBER binary recession indicator series.
const RecessionIndicatorID = "USREC"

// tracked is the full set of series synced from FRED, in sync order.
var tracked = []Series{
	{ID: "DRBLACBS", Key: "commercial_delinquency", Name: "Delinquency Rate on Business Loans, All Commercial Banks", Category: "delinquency", Unit: "percent", Cadence: Quarterly},
	{ID: "CORBLACBS", Key: "charge_off_rate", Name: "Charge-Off Rate on Business Loans, All Commercial Banks", Category: "delinquency", Unit: "percent", Cadence: Quarterly},
	{ID: "DRTSCILM", Key: "credit_standards", Name: "Net Percentage of Banks Tightening Standards for C&I Loans to Large and Medium Firms", Category: "lending", Unit: "percent", Cadence: Quarterly},
	{ID: "DRTSCIS", Key: "loan_demand", Name: "Net Percentage of Banks Reporting Stronger Demand for C&I Loans to Small Firms", Category: "lending", Unit: "percent", Cadence: Quarterly},
	{ID: "BAMLC0A4CBBB", Key: "bbb_yield", Name: "ICE BofA BBB US Corporate Index Option-Adjusted Spread", Category: "spreads", Unit: "percent", Cadence: Daily},
	{ID: "BAMLH0A0HYM2", Key: "high_yield_spread", Name: "ICE BofA US High Yield Index Option-Adjusted Spread", Category: "spreads", Unit: "percent", Cadence: Daily},
	{ID: "GDP", Key: "gdp", Name: "Gross Domestic Product", Category: "economy", Unit: "billions_usd", Cadence: Quarterly},
	{ID: "UNRATE", Key: "unemployment", Name: "Unemployment Rate", Category: "economy", Unit: "percent", Cadence: Monthly},
	{ID: "FEDFUNDS", Key: "fed_funds", Name: "Federal Funds Effective Rate", Category: "economy", Unit: "percent", Cadence: Monthly},
	{ID: RecessionIndicatorID, Key: "recession", Name: "NBER based Recession Indicators for the United States", Category: "economy", Unit: "binary", Cadence: Monthly},
	{ID: "TCMDO", Key: "nonfinancial_debt", Name: "Total Credit Market Debt Owed by Nonfinancial Sectors", Category: "credit", Unit: "billions_usd", Cadence: Quarterly},
}

// overviewIDs is the fixed set of series shown in the current-market snapshot.
var overviewIDs = []string{"DRBLACBS", "CORBLACBS", "BAMLH0A0HYM2", "BAMLC0A4CBBB", "UNRATE"}

// Catalog provides lookup over the tracked series.
type Catalog struct {
	byID  map[string]Series
	order []string
}

// New builds the catalog from the static series set.
func New() *Catalog {
	c := &Catalog{byID: make(map[string]Series, len(tracked))}
	for _, s := range tracked {
		c.byID[s.ID] = s
		c.order = append(c.order, s.ID)
	}
	return c
}

// All returns every tracked series in sync order.
func (c *Catalog) All() []Series {
	out := make([]Series, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Get returns the series with the given FRED ID.
func (c *Catalog) Get(id string) (Series, error) {
	s, ok := c.byID[id]
	if !ok {
		return Series{}, eris.Errorf("catalog: unknown series %q", id)
	}
	return s, nil
}

// Has reports whether the given FRED ID is tracked.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// OverviewSeries returns the fixed snapshot set for the dashboard overview.
func (c *Catalog) OverviewSeries() []Series {
	out := make([]Series, 0, len(overviewIDs))
	for _, id := range overviewIDs {
		out = append(out, c.byID[id])
	}
	return out
}

// RecessionIndicator returns the binary NBER indicator series.
func (c *Catalog) RecessionIndicator() Series {
	return c.byID[RecessionIndicatorID]
}

// Select returns the series matching the given IDs, or all series when
// ids is empty.
func (c *Catalog) Select(ids []string) ([]Series, error) {
	if len(ids) == 0 {
		return c.All(), nil
	}
	out := make([]Series, 0, len(ids))
	for _, id := range ids {
		s, err := c.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
