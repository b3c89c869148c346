package runner

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TruWeaveTrader/statarb/internal/cache"
	"github.com/TruWeaveTrader/statarb/internal/metrics"
	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/selection"
	"github.com/TruWeaveTrader/statarb/internal/strategy"
)

// twoYearMatrix holds three mutually cointegrated symbols over 2016-2017
func twoYearMatrix(t *testing.T) *models.PriceMatrix {
	t.Helper()
	r := rand.New(rand.NewSource(42))

	var dates []time.Time
	for d := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() < 2018; d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	m, err := models.NewPriceMatrix(dates, []string{"ALPHA", "BETA", "GAMMA"})
	require.NoError(t, err)

	x, e1, e2 := 100.0, 0.0, 0.0
	for i := range dates {
		if i > 0 {
			x += r.NormFloat64()
			e1 = 0.85*e1 + r.NormFloat64()
			e2 = 0.85*e2 + r.NormFloat64()
		}
		require.NoError(t, m.Set(i, "BETA", x))
		require.NoError(t, m.Set(i, "ALPHA", 5+2*x+e1))
		require.NoError(t, m.Set(i, "GAMMA", 20+3*x+e2))
	}
	return m
}

func testSelectionConfig() selection.Config {
	cfg := selection.DefaultConfig()
	cfg.MaxPValue = 0.10
	cfg.MinHalfLife = 1
	return cfg
}

func newTestManager(t *testing.T, c *cache.Cache, rec *metrics.Recorder) *Manager {
	t.Helper()
	bt, err := strategy.NewBacktester(strategy.DefaultParams(), zap.NewNop())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.MinSymbols = 2
	opts.TopN = 2
	return NewManager(selection.NewSelector(testSelectionConfig(), zap.NewNop()), bt, c, rec, opts, zap.NewNop())
}

func TestRunCarriesForwardAcrossYears(t *testing.T) {
	m := twoYearMatrix(t)
	u := models.Universe{
		2016: {"ALPHA", "BETA", "GAMMA"},
		2017: {"ALPHA", "BETA", "GAMMA"},
		2018: {"ALPHA", "BETA", "GAMMA"},
	}

	res, err := newTestManager(t, nil, nil).Run(context.Background(), m, u)
	require.NoError(t, err)
	require.Len(t, res.Years, 3)

	y16, y17, y18 := res.Years[0], res.Years[1], res.Years[2]
	require.False(t, y16.Skipped(), y16.SkipReason)
	require.False(t, y17.Skipped(), y17.SkipReason)
	assert.Equal(t, SkipNoData, y18.SkipReason)

	assert.LessOrEqual(t, len(y16.Pairs), 2)
	assert.Equal(t, 3, y16.Selection.Screened)
	assert.Equal(t, 2*1_000_000.0, res.Capital)

	rows := res.Continuous.Rows
	require.Len(t, rows, len(y16.Portfolio.Rows)+len(y17.Portfolio.Rows))

	first17 := len(y16.Portfolio.Rows)
	assert.Equal(t, 2017, rows[first17].Year)
	assert.InDelta(t, y16.Portfolio.FinalPnL()+y17.Portfolio.Rows[0].YearlyPnL, rows[first17].CumulativePnL, 1e-6)

	sum := 0.0
	for _, r := range rows {
		sum += r.YearlyPnL
	}
	assert.InDelta(t, res.Continuous.FinalPnL(), sum, 1e-6)
	assert.InDelta(t, y16.Portfolio.FinalPnL()+y17.Portfolio.FinalPnL(), res.Continuous.FinalPnL(), 1e-6)

	for _, p := range y16.Pairs {
		last := p.Records[len(p.Records)-1]
		first := p.Records[0]
		assert.InDelta(t, (last.PriceA-first.PriceA)*1_000_000/first.PriceA, last.BenchmarkA, 1e-6)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	m := twoYearMatrix(t)
	u := models.Universe{2016: {"ALPHA", "BETA", "GAMMA"}}

	first, err := newTestManager(t, nil, nil).Run(context.Background(), m, u)
	require.NoError(t, err)
	second, err := newTestManager(t, nil, nil).Run(context.Background(), m, u)
	require.NoError(t, err)

	assert.Equal(t, first.Continuous, second.Continuous)
}

func TestRunWithoutResults(t *testing.T) {
	m := twoYearMatrix(t)

	res, err := newTestManager(t, nil, nil).Run(context.Background(), m, models.Universe{
		2016: {"ALPHA"},
		2019: {"ALPHA", "BETA"},
	})
	assert.ErrorIs(t, err, ErrNoResults)
	require.NotNil(t, res)
	assert.Equal(t, SkipInsufficientSymbols, res.Years[0].SkipReason)
	assert.Equal(t, SkipNoData, res.Years[1].SkipReason)
	assert.True(t, res.Continuous.Empty())
}

func TestRunReusesCachedSelection(t *testing.T) {
	m := twoYearMatrix(t)
	u := models.Universe{2016: {"ALPHA", "BETA", "GAMMA"}, 2017: {"ALPHA", "BETA", "GAMMA"}}
	c := cache.NewCache(0)
	rec := metrics.NewRecorder()
	mgr := newTestManager(t, c, rec)

	first, err := mgr.Run(context.Background(), m, u)
	require.NoError(t, err)
	second, err := mgr.Run(context.Background(), m, u)
	require.NoError(t, err)

	assert.Equal(t, first.Continuous, second.Continuous)
	assert.Equal(t, 2, c.GetStats().SelectionCount)
	// Screening ran once per year
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.PairsScreened.WithLabelValues("2016")))
}

func TestRunHonoursCancellation(t *testing.T) {
	m := twoYearMatrix(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestManager(t, nil, nil).Run(ctx, m, models.Universe{2016: {"ALPHA", "BETA", "GAMMA"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBacktestFailureIsIsolated(t *testing.T) {
	m := twoYearMatrix(t).Year(2016)
	rec := metrics.NewRecorder()
	mgr := newTestManager(t, nil, rec)

	good := models.PairCandidate{SymbolA: "ALPHA", SymbolB: "BETA", Beta: 2}
	missing := models.PairCandidate{SymbolA: "ALPHA", SymbolB: "NOPE", Beta: 1}

	results, err := mgr.backtestPairs(context.Background(), 2016, m, []models.PairCandidate{missing, good})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ALPHA-BETA", results[0].Candidate.Name())
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.BacktestsFailed.WithLabelValues("2016")))
	assert.False(t, math.IsNaN(results[0].FinalPnL()))
}
