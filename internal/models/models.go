package models

import (
	"fmt"
	"math"
	"time"
)

// PositionState represents the position held in a pair's spread
type PositionState int

const (
	Flat        PositionState = 0
	LongSpread  PositionState = 1  // Buy symbol A, sell beta units of symbol B
	ShortSpread PositionState = -1 // Sell symbol A, buy beta units of symbol B
)

// String returns the state name
func (p PositionState) String() string {
	switch p {
	case Flat:
		return "flat"
	case LongSpread:
		return "long_spread"
	case ShortSpread:
		return "short_spread"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Float returns the signed position multiplier
func (p PositionState) Float() float64 {
	return float64(p)
}

// PairCandidate is a statistically validated pair for one period
type PairCandidate struct {
	SymbolA      string  `json:"symbol_a"`
	SymbolB      string  `json:"symbol_b"`
	Beta         float64 `json:"beta"`  // Hedge ratio from price_a = alpha + beta*price_b
	Alpha        float64 `json:"alpha"` // Regression intercept
	PValue       float64 `json:"p_value"`
	ADFStat      float64 `json:"adf_stat"`
	HalfLife     float64 `json:"half_life"`
	SpreadStd    float64 `json:"spread_std"`
	Correlation  float64 `json:"correlation"`
	Observations int     `json:"observations"`
}

// Name returns the display name of the pair
func (c PairCandidate) Name() string {
	return c.SymbolA + "-" + c.SymbolB
}

// Key returns an order-independent identifier for the pair
func (c PairCandidate) Key() string {
	return PairKey(c.SymbolA, c.SymbolB)
}

// PairKey builds the unordered key for two symbols
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// DailyRecord is one row of a pair backtest
type DailyRecord struct {
	Date          time.Time     `json:"date"`
	PriceA        float64       `json:"price_a"`
	PriceB        float64       `json:"price_b"`
	Spread        float64       `json:"spread"`
	ZScore        float64       `json:"zscore"` // NaN during warm-up
	Position      PositionState `json:"position"`
	QuantityA     float64       `json:"quantity_a"`
	QuantityB     float64       `json:"quantity_b"`
	DailyPnL      float64       `json:"daily_pnl"`
	CumulativePnL float64       `json:"cumulative_pnl"`
	BenchmarkA    float64       `json:"bh_pnl_a"`
	BenchmarkB    float64       `json:"bh_pnl_b"`
}

// PairResult is the output of one pair backtest
type PairResult struct {
	Year      int           `json:"year"`
	Candidate PairCandidate `json:"candidate"`
	Records   []DailyRecord `json:"records"`
	Trades    int           `json:"trades"`
	StopIndex int           `json:"stop_index"` // -1 when the stop-loss never fired
}

// StopTriggered reports whether the stop-loss fired during the period
func (r *PairResult) StopTriggered() bool {
	return r.StopIndex >= 0
}

// FinalPnL returns the cumulative P&L on the last day
func (r *PairResult) FinalPnL() float64 {
	if len(r.Records) == 0 {
		return 0
	}
	return r.Records[len(r.Records)-1].CumulativePnL
}

// YearlyRow is one date of a yearly portfolio
type YearlyRow struct {
	Date          time.Time `json:"date"`
	PairPnL       []float64 `json:"pair_pnl"` // Aligned with YearlyPortfolio.Pairs
	YearlyPnL     float64   `json:"yearly_pnl"`
	CumulativePnL float64   `json:"cumulative_pnl"`
}

// YearlyPortfolio merges the selected pairs of one year
type YearlyPortfolio struct {
	Year  int         `json:"year"`
	Pairs []string    `json:"pairs"`
	Rows  []YearlyRow `json:"rows"`
}

// FinalPnL returns the year's closing cumulative P&L
func (y *YearlyPortfolio) FinalPnL() float64 {
	if len(y.Rows) == 0 {
		return 0
	}
	return y.Rows[len(y.Rows)-1].CumulativePnL
}

// ContinuousRow is one date of the multi-year curve
type ContinuousRow struct {
	Date          time.Time `json:"date"`
	YearlyPnL     float64   `json:"yearly_pnl"`
	CumulativePnL float64   `json:"cumulative_pnl"`
	Year          int       `json:"year"`
}

// ContinuousPortfolio is the carry-forward concatenation of yearly portfolios
type ContinuousPortfolio struct {
	Rows []ContinuousRow `json:"rows"`
}

// FinalPnL returns the last cumulative value
func (c *ContinuousPortfolio) FinalPnL() float64 {
	if len(c.Rows) == 0 {
		return 0
	}
	return c.Rows[len(c.Rows)-1].CumulativePnL
}

// Empty reports whether no period contributed rows
func (c *ContinuousPortfolio) Empty() bool {
	return len(c.Rows) == 0
}

// Universe maps a year to its eligible symbols, in caller order
type Universe map[int][]string

// IsMissing reports whether a price slot holds no observation
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}
