package aggregate

import (
	"errors"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/TruWeaveTrader/statarb/internal/models"
)

// TradingDays annualises daily Sharpe ratios
const TradingDays = 252

// ErrNoData is returned when there is nothing to summarise
var ErrNoData = errors.New("no data to summarise")

// Performance summarises a daily P&L series
type Performance struct {
	Start               time.Time `json:"start"`
	End                 time.Time `json:"end"`
	Days                int       `json:"days"`
	Capital             float64   `json:"capital"`
	TotalPnL            float64   `json:"total_pnl"`
	TotalReturnPct      float64   `json:"total_return_pct"`
	Sharpe              float64   `json:"sharpe"`                // NaN when P&L has no variance
	AnnualizedReturnPct float64   `json:"annualized_return_pct"` // NaN for a single-day period
	MaxDrawdown         float64   `json:"max_drawdown"`
	MaxDrawdownPct      float64   `json:"max_drawdown_pct"`
}

// Summarize computes performance from aligned dates and daily P&L
func Summarize(dates []time.Time, daily []float64, capital float64) (Performance, error) {
	if len(daily) == 0 || len(dates) != len(daily) {
		return Performance{}, ErrNoData
	}

	total, err := stats.Sum(daily)
	if err != nil {
		return Performance{}, err
	}

	p := Performance{
		Start:    dates[0],
		End:      dates[len(dates)-1],
		Days:     len(daily),
		Capital:  capital,
		TotalPnL: total,
		Sharpe:   math.NaN(),
	}
	if capital > 0 {
		p.TotalReturnPct = 100 * total / capital
	}

	if len(daily) > 1 {
		mean, _ := stats.Mean(daily)
		std, err := stats.StandardDeviationSample(daily)
		if err == nil && std > 0 {
			p.Sharpe = mean / std * math.Sqrt(TradingDays)
		}
	}

	years := p.End.Sub(p.Start).Hours() / 24 / 365.25
	if years > 0 && capital > 0 {
		p.AnnualizedReturnPct = p.TotalReturnPct / years
	} else {
		p.AnnualizedReturnPct = math.NaN()
	}

	p.MaxDrawdown = maxDrawdown(daily)
	if capital > 0 {
		p.MaxDrawdownPct = 100 * p.MaxDrawdown / capital
	}
	return p, nil
}

// ContinuousPerformance summarises a multi-year curve
func ContinuousPerformance(c *models.ContinuousPortfolio, capital float64) (Performance, error) {
	dates := make([]time.Time, len(c.Rows))
	daily := make([]float64, len(c.Rows))
	for i, r := range c.Rows {
		dates[i] = r.Date
		daily[i] = r.YearlyPnL
	}
	return Summarize(dates, daily, capital)
}

// YearlyPerformance summarises one year's portfolio
func YearlyPerformance(y *models.YearlyPortfolio, capital float64) (Performance, error) {
	dates := make([]time.Time, len(y.Rows))
	daily := make([]float64, len(y.Rows))
	for i, r := range y.Rows {
		dates[i] = r.Date
		daily[i] = r.YearlyPnL
	}
	return Summarize(dates, daily, capital)
}

// maxDrawdown is the largest peak-to-trough fall of the cumulative curve,
// measured from a zero starting equity
func maxDrawdown(daily []float64) float64 {
	peak, cum, worst := 0.0, 0.0, 0.0
	for _, d := range daily {
		cum += d
		peak = math.Max(peak, cum)
		worst = math.Max(worst, peak-cum)
	}
	return worst
}
