package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TruWeaveTrader/statarb/internal/models"
)

func day(year, month, d int) time.Time {
	return time.Date(year, time.Month(month), d, 0, 0, 0, 0, time.UTC)
}

func pairResult(a, b string, dates []time.Time, daily []float64) *models.PairResult {
	res := &models.PairResult{
		Candidate: models.PairCandidate{SymbolA: a, SymbolB: b},
		Records:   make([]models.DailyRecord, len(dates)),
		StopIndex: -1,
	}
	cum := 0.0
	for i := range dates {
		cum += daily[i]
		res.Records[i] = models.DailyRecord{Date: dates[i], DailyPnL: daily[i], CumulativePnL: cum}
	}
	return res
}

func TestYearlyOuterJoin(t *testing.T) {
	p1 := pairResult("A", "B", []time.Time{day(2016, 1, 4), day(2016, 1, 5), day(2016, 1, 6)}, []float64{10, -5, 20})
	p2 := pairResult("C", "D", []time.Time{day(2016, 1, 5), day(2016, 1, 7)}, []float64{3, 7})

	y := Yearly(2016, []*models.PairResult{p1, p2})

	assert.Equal(t, []string{"A-B", "C-D"}, y.Pairs)
	require.Len(t, y.Rows, 4)

	wantYearly := []float64{10, -2, 20, 7}
	wantCum := []float64{10, 8, 28, 35}
	for i, r := range y.Rows {
		assert.InDelta(t, wantYearly[i], r.YearlyPnL, 1e-12)
		assert.InDelta(t, wantCum[i], r.CumulativePnL, 1e-12)
	}
	assert.Equal(t, []float64{0, 7}, y.Rows[3].PairPnL)
	assert.True(t, y.Rows[0].Date.Before(y.Rows[1].Date))
	assert.InDelta(t, 35.0, y.FinalPnL(), 1e-12)
}

func TestYearlyEmpty(t *testing.T) {
	y := Yearly(2017, nil)
	assert.Empty(t, y.Rows)
	assert.Zero(t, y.FinalPnL())
}

func TestContinuousCarryForward(t *testing.T) {
	y1 := Yearly(2016, []*models.PairResult{
		pairResult("A", "B", []time.Time{day(2016, 12, 29), day(2016, 12, 30)}, []float64{100, 50}),
	})
	y2 := Yearly(2017, []*models.PairResult{
		pairResult("C", "D", []time.Time{day(2017, 1, 2), day(2017, 1, 3)}, []float64{-30, 10}),
	})
	empty := Yearly(2018, nil)
	y4 := Yearly(2019, []*models.PairResult{
		pairResult("E", "F", []time.Time{day(2019, 1, 2)}, []float64{5}),
	})

	c, err := Continuous([]*models.YearlyPortfolio{y1, y2, empty, y4})
	require.NoError(t, err)
	require.Len(t, c.Rows, 5)

	// First day of each year equals previous close plus that day's P&L
	assert.InDelta(t, 150.0, c.Rows[1].CumulativePnL, 1e-12)
	assert.InDelta(t, 120.0, c.Rows[2].CumulativePnL, 1e-12)
	assert.InDelta(t, 130.0, c.Rows[3].CumulativePnL, 1e-12)
	assert.InDelta(t, 135.0, c.Rows[4].CumulativePnL, 1e-12)
	assert.Equal(t, 2017, c.Rows[2].Year)
	assert.Equal(t, 2019, c.Rows[4].Year)

	sum := 0.0
	for _, r := range c.Rows {
		sum += r.YearlyPnL
	}
	assert.InDelta(t, c.FinalPnL(), sum, 1e-9)
}

func TestFoldRejectsOutOfOrderYears(t *testing.T) {
	f := NewFold()
	require.NoError(t, f.Add(&models.YearlyPortfolio{Year: 2017}))
	assert.Error(t, f.Add(&models.YearlyPortfolio{Year: 2016}))
	assert.Error(t, f.Add(&models.YearlyPortfolio{Year: 2017}))
	assert.True(t, f.Portfolio().Empty())
}

func TestBuyAndHold(t *testing.T) {
	curve := BuyAndHold([]float64{100, 110, 90, 120}, 1_000_000)
	assert.Equal(t, []float64{0, 100_000, -100_000, 200_000}, curve)

	assert.Equal(t, []float64{0, 0}, BuyAndHold([]float64{0, 10}, 1000))
	assert.Empty(t, BuyAndHold(nil, 1000))
}

func TestAttachBenchmarks(t *testing.T) {
	res := &models.PairResult{Records: []models.DailyRecord{
		{PriceA: 50, PriceB: 200, DailyPnL: 1},
		{PriceA: 55, PriceB: 180, DailyPnL: 2},
	}}
	AttachBenchmarks(res, 1000)

	assert.InDelta(t, 100.0, res.Records[1].BenchmarkA, 1e-9)
	assert.InDelta(t, -100.0, res.Records[1].BenchmarkB, 1e-9)
	assert.Equal(t, 2.0, res.Records[1].DailyPnL)
}

func TestSummarize(t *testing.T) {
	dates := []time.Time{day(2016, 1, 1), day(2016, 7, 1), day(2017, 1, 1)}
	daily := []float64{100, -300, 500}

	p, err := Summarize(dates, daily, 10_000)
	require.NoError(t, err)

	assert.InDelta(t, 300.0, p.TotalPnL, 1e-12)
	assert.InDelta(t, 3.0, p.TotalReturnPct, 1e-12)
	assert.InDelta(t, 300.0, p.MaxDrawdown, 1e-12)
	assert.InDelta(t, 3.0, p.MaxDrawdownPct, 1e-12)
	assert.Equal(t, 3, p.Days)

	// mean 100, sample std 400
	assert.InDelta(t, 0.25*math.Sqrt(252), p.Sharpe, 1e-9)

	years := 366.0 / 365.25
	assert.InDelta(t, 3.0/years, p.AnnualizedReturnPct, 1e-9)
}

func TestSummarizeDegenerate(t *testing.T) {
	_, err := Summarize(nil, nil, 1000)
	assert.ErrorIs(t, err, ErrNoData)

	p, err := Summarize([]time.Time{day(2016, 1, 1)}, []float64{0}, 1000)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(p.Sharpe))
	assert.True(t, math.IsNaN(p.AnnualizedReturnPct))
}

func TestContinuousPerformance(t *testing.T) {
	c := &models.ContinuousPortfolio{Rows: []models.ContinuousRow{
		{Date: day(2016, 1, 1), YearlyPnL: 10, CumulativePnL: 10},
		{Date: day(2016, 1, 2), YearlyPnL: 20, CumulativePnL: 30},
	}}
	p, err := ContinuousPerformance(c, 5_000_000)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, p.TotalPnL, 1e-12)
	assert.Zero(t, p.MaxDrawdown)
}
