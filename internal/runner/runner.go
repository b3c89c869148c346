package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TruWeaveTrader/statarb/internal/aggregate"
	"github.com/TruWeaveTrader/statarb/internal/cache"
	"github.com/TruWeaveTrader/statarb/internal/metrics"
	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/selection"
	"github.com/TruWeaveTrader/statarb/internal/strategy"
	"github.com/TruWeaveTrader/statarb/internal/universe"
)

// ErrNoResults is returned when no year produced a portfolio
var ErrNoResults = errors.New("no period produced results")

// Skip reasons recorded on a YearResult
const (
	SkipInsufficientSymbols = "insufficient_symbols"
	SkipNoData              = "no_data"
	SkipNoPairs             = "no_pairs"
	SkipBacktestsFailed     = "backtests_failed"
)

// Options holds the run-level settings
type Options struct {
	TopN       int `json:"top_n"`        // Pairs traded per year
	MinSymbols int `json:"min_symbols"`  // Years with fewer clean symbols are skipped
	MaxFillGap int `json:"max_fill_gap"` // Longest forward-filled run of missing prices
	Workers    int `json:"workers"`      // Concurrent pair backtests
}

// DefaultOptions returns the canonical run settings
func DefaultOptions() Options {
	return Options{
		TopN:       5,
		MinSymbols: 20,
		MaxFillGap: 5,
		Workers:    4,
	}
}

// YearResult is the outcome of one period
type YearResult struct {
	Year       int                     `json:"year"`
	Symbols    int                     `json:"symbols"` // Symbols left after filtering
	Selection  *selection.Result       `json:"selection,omitempty"`
	Pairs      []*models.PairResult    `json:"pairs,omitempty"`
	Portfolio  *models.YearlyPortfolio `json:"portfolio,omitempty"`
	SkipReason string                  `json:"skip_reason,omitempty"`
}

// Skipped reports whether the year contributed nothing
func (y *YearResult) Skipped() bool {
	return y.SkipReason != ""
}

// RunResult is the outcome of a multi-year run
type RunResult struct {
	Years      []*YearResult               `json:"years"`
	Continuous *models.ContinuousPortfolio `json:"continuous"`
	Capital    float64                     `json:"capital"` // TopN * book size
}

// Manager runs the year loop: filter, select, backtest, aggregate
type Manager struct {
	selector   *selection.Selector
	backtester *strategy.Backtester
	cache      *cache.Cache
	metrics    *metrics.Recorder
	opts       Options
	logger     *zap.Logger
}

// NewManager creates a new runner. cache and recorder may be nil.
func NewManager(selector *selection.Selector, backtester *strategy.Backtester, c *cache.Cache, recorder *metrics.Recorder, opts Options, logger *zap.Logger) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Manager{
		selector:   selector,
		backtester: backtester,
		cache:      c,
		metrics:    recorder,
		opts:       opts,
		logger:     logger.With(zap.String("component", "runner")),
	}
}

// Options returns the run settings
func (m *Manager) Options() Options {
	return m.opts
}

// Capital is the notional the portfolio is measured against
func (m *Manager) Capital() float64 {
	return float64(m.opts.TopN) * m.backtester.Params().BookSize
}

// Run processes every year of the universe in ascending order
func (m *Manager) Run(ctx context.Context, matrix *models.PriceMatrix, u models.Universe) (*RunResult, error) {
	fold := aggregate.NewFold()
	result := &RunResult{Capital: m.Capital()}

	for _, year := range universe.Years(u) {
		yr, err := m.RunYear(ctx, year, matrix, u[year])
		if err != nil {
			return nil, err
		}
		result.Years = append(result.Years, yr)
		if yr.Skipped() {
			m.logger.Info("year skipped", zap.Int("year", year), zap.String("reason", yr.SkipReason))
			m.countSkip(yr.SkipReason)
			continue
		}

		if err := fold.Add(yr.Portfolio); err != nil {
			return nil, err
		}
		m.logger.Info("year complete",
			zap.Int("year", year),
			zap.Int("pairs", len(yr.Pairs)),
			zap.Float64("year_pnl", yr.Portfolio.FinalPnL()),
			zap.Float64("cumulative_pnl", fold.Carry()),
		)
	}

	result.Continuous = fold.Portfolio()
	if result.Continuous.Empty() {
		return result, ErrNoResults
	}
	return result, nil
}

// RunYear processes one period. Data problems are reported through
// SkipReason; the error is non-nil only when ctx is cancelled.
func (m *Manager) RunYear(ctx context.Context, year int, matrix *models.PriceMatrix, eligible []string) (*YearResult, error) {
	yr := &YearResult{Year: year}

	sel, clean, err := m.SelectYear(ctx, year, matrix, eligible)
	switch {
	case errors.Is(err, universe.ErrInsufficientSymbols):
		yr.SkipReason = SkipInsufficientSymbols
		return yr, nil
	case errors.Is(err, models.ErrInsufficientData):
		yr.SkipReason = SkipNoData
		return yr, nil
	case err != nil:
		return nil, err
	}
	yr.Symbols = len(clean.Symbols())
	yr.Selection = sel

	top := sel.Top(m.opts.TopN)
	if len(top) == 0 {
		yr.SkipReason = SkipNoPairs
		return yr, nil
	}
	m.observe(year, func(r *metrics.Recorder, label string) {
		r.PairsSelected.WithLabelValues(label).Add(float64(len(top)))
	})

	start := time.Now()
	pairs, err := m.backtestPairs(ctx, year, clean, top)
	if err != nil {
		return nil, err
	}
	m.timeStage("backtest", start)
	if len(pairs) == 0 {
		yr.SkipReason = SkipBacktestsFailed
		return yr, nil
	}

	yr.Pairs = pairs
	yr.Portfolio = aggregate.Yearly(year, pairs)
	m.observe(year, func(r *metrics.Recorder, label string) {
		r.YearPnL.WithLabelValues(label).Set(yr.Portfolio.FinalPnL())
	})
	return yr, nil
}

// SelectYear filters the year's universe and ranks its pairs. The cleaned
// matrix the candidates were drawn from is returned alongside.
func (m *Manager) SelectYear(ctx context.Context, year int, matrix *models.PriceMatrix, eligible []string) (*selection.Result, *models.PriceMatrix, error) {
	period := matrix.Year(year)
	if period.Len() == 0 {
		return nil, nil, fmt.Errorf("year %d: %w", year, models.ErrInsufficientData)
	}

	start := time.Now()
	clean, err := universe.Filter(period, eligible, universe.FilterConfig{
		MinPeriods: m.selector.Config().MinPeriods,
		MaxFillGap: m.opts.MaxFillGap,
		MinSymbols: m.opts.MinSymbols,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("year %d: %w", year, err)
	}
	m.timeStage("filter", start)

	key := cache.SelectionKey(year, clean, m.selector.Config())
	if m.cache != nil {
		if res, ok := m.cache.GetSelection(key); ok {
			m.logger.Debug("selection cache hit", zap.Int("year", year))
			return res, clean, nil
		}
	}

	start = time.Now()
	res, err := m.selector.Select(ctx, clean)
	if err != nil {
		return nil, nil, err
	}
	m.timeStage("select", start)

	m.observe(year, func(r *metrics.Recorder, label string) {
		r.PairsScreened.WithLabelValues(label).Add(float64(res.Screened))
		for reason, n := range res.Rejected {
			r.PairsRejected.WithLabelValues(label, string(reason)).Add(float64(n))
		}
	})
	m.logger.Info("pairs selected",
		zap.Int("year", year),
		zap.Int("symbols", len(clean.Symbols())),
		zap.Int("screened", res.Screened),
		zap.Int("accepted", len(res.Candidates)),
	)

	if m.cache != nil {
		m.cache.SetSelection(key, res)
	}
	return res, clean, nil
}

// backtestPairs runs the candidates concurrently. A failing pair is logged
// and dropped without affecting the others.
func (m *Manager) backtestPairs(ctx context.Context, year int, matrix *models.PriceMatrix, candidates []models.PairCandidate) ([]*models.PairResult, error) {
	slots := make([]*models.PairResult, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := m.backtestPair(year, matrix, c)
			if err != nil {
				m.logger.Warn("pair backtest failed",
					zap.Int("year", year),
					zap.String("pair", c.Name()),
					zap.Error(err))
				m.observe(year, func(r *metrics.Recorder, label string) {
					r.BacktestsFailed.WithLabelValues(label).Inc()
				})
				return nil
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]*models.PairResult, 0, len(slots))
	for _, res := range slots {
		if res != nil {
			results = append(results, res)
		}
	}
	return results, nil
}

func (m *Manager) backtestPair(year int, matrix *models.PriceMatrix, c models.PairCandidate) (res *models.PairResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backtest panicked: %v", r)
		}
	}()

	series, err := m.pairSeries(year, matrix, c)
	if err != nil {
		return nil, err
	}
	res, err = m.backtester.Run(year, c, series)
	if err != nil {
		return nil, err
	}
	aggregate.AttachBenchmarks(res, m.backtester.Params().BookSize)

	m.observe(year, func(r *metrics.Recorder, label string) {
		r.Trades.WithLabelValues(label).Add(float64(res.Trades))
		if res.StopTriggered() {
			r.StopLosses.WithLabelValues(label).Inc()
		}
	})
	return res, nil
}

func (m *Manager) pairSeries(year int, matrix *models.PriceMatrix, c models.PairCandidate) (models.PairSeries, error) {
	key := cache.SeriesKey(year, matrix, c.SymbolA, c.SymbolB)
	if m.cache != nil {
		if s, ok := m.cache.GetSeries(key); ok {
			return s, nil
		}
	}
	s, err := matrix.Pair(c.SymbolA, c.SymbolB)
	if err != nil {
		return models.PairSeries{}, err
	}
	if m.cache != nil {
		m.cache.SetSeries(key, s)
	}
	return s, nil
}

func (m *Manager) observe(year int, fn func(r *metrics.Recorder, label string)) {
	if m.metrics == nil {
		return
	}
	fn(m.metrics, strconv.Itoa(year))
}

func (m *Manager) countSkip(reason string) {
	if m.metrics == nil {
		return
	}
	m.metrics.YearsSkipped.WithLabelValues(reason).Inc()
}

func (m *Manager) timeStage(stage string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
