package selection

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TruWeaveTrader/statarb/internal/models"
	tsa "github.com/TruWeaveTrader/statarb/internal/stats"
)

// Reason explains why a pair was not selected
type Reason string

const (
	Accepted            Reason = "accepted"
	LowCorrelation      Reason = "low_correlation"
	InsufficientData    Reason = "insufficient_data"
	BetaOutOfBounds     Reason = "beta_out_of_bounds"
	DegenerateSpread    Reason = "degenerate_spread"
	NotCointegrated     Reason = "not_cointegrated"
	NumericalFailure    Reason = "numerical_failure"
	NotMeanReverting    Reason = "not_mean_reverting"
	HalfLifeOutOfBounds Reason = "half_life_out_of_bounds"
)

const (
	minSpreadStd   = 1e-6
	defaultWorkers = 4
)

// Config holds pair screening thresholds
type Config struct {
	MinCorrelation float64 `json:"min_correlation"` // Default: 0.7
	MaxPValue      float64 `json:"max_pvalue"`      // Default: 0.05
	MinPeriods     int     `json:"min_periods"`     // Default: 100
	MinBeta        float64 `json:"min_beta"`        // Default: 0.1 (absolute)
	MaxBeta        float64 `json:"max_beta"`        // Default: 10 (absolute)
	MinHalfLife    float64 `json:"min_half_life"`   // Default: 5 days
	MaxHalfLife    float64 `json:"max_half_life"`   // Default: 60 days
	Workers        int     `json:"workers"`
}

// DefaultConfig returns the canonical screening thresholds
func DefaultConfig() Config {
	return Config{
		MinCorrelation: 0.7,
		MaxPValue:      0.05,
		MinPeriods:     100,
		MinBeta:        0.1,
		MaxBeta:        10,
		MinHalfLife:    5,
		MaxHalfLife:    60,
		Workers:        defaultWorkers,
	}
}

// Result is the outcome of screening one period
type Result struct {
	Candidates []models.PairCandidate `json:"candidates"` // Ascending p-value
	Screened   int                    `json:"screened"`   // Unordered pairs considered
	Rejected   map[Reason]int         `json:"rejected"`
}

// Top returns at most n best candidates
func (r *Result) Top(n int) []models.PairCandidate {
	if n <= 0 || n >= len(r.Candidates) {
		return r.Candidates
	}
	return r.Candidates[:n]
}

// Selector finds cointegrated pairs in a price matrix
type Selector struct {
	cfg    Config
	logger *zap.Logger
}

// NewSelector creates a selector
func NewSelector(cfg Config, logger *zap.Logger) *Selector {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Selector{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "pair_selector")),
	}
}

// Config returns the selector's thresholds
func (s *Selector) Config() Config {
	return s.cfg
}

type outcome struct {
	candidate models.PairCandidate
	reason    Reason
}

// Select screens every unordered symbol pair of the matrix. Numerical
// failures drop only the affected pair; the returned error is non-nil only
// when ctx is cancelled.
func (s *Selector) Select(ctx context.Context, matrix *models.PriceMatrix) (*Result, error) {
	symbols := append([]string(nil), matrix.Symbols()...)
	sort.Strings(symbols)

	type job struct{ a, b string }
	jobs := make([]job, 0, len(symbols)*(len(symbols)-1)/2)
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			jobs = append(jobs, job{symbols[i], symbols[j]})
		}
	}

	outcomes := make([]outcome, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, jb := range jobs {
		i, jb := i, jb
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.testPair(matrix, jb.a, jb.b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Candidates: make([]models.PairCandidate, 0),
		Screened:   len(jobs),
		Rejected:   make(map[Reason]int),
	}
	for _, o := range outcomes {
		if o.reason == Accepted {
			res.Candidates = append(res.Candidates, o.candidate)
			continue
		}
		res.Rejected[o.reason]++
	}
	SortCandidates(res.Candidates)

	s.logger.Debug("pair screening complete",
		zap.Int("symbols", len(symbols)),
		zap.Int("screened", res.Screened),
		zap.Int("accepted", len(res.Candidates)),
	)
	return res, nil
}

// SortCandidates orders candidates by p-value, then symbol names
func SortCandidates(c []models.PairCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].PValue != c[j].PValue {
			return c[i].PValue < c[j].PValue
		}
		if c[i].SymbolA != c[j].SymbolA {
			return c[i].SymbolA < c[j].SymbolA
		}
		return c[i].SymbolB < c[j].SymbolB
	})
}

// testPair runs the screening pipeline for one pair
func (s *Selector) testPair(matrix *models.PriceMatrix, a, b string) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("pair test panicked",
				zap.String("pair", a+"-"+b),
				zap.Any("panic", r))
			out = outcome{reason: NumericalFailure}
		}
	}()

	colA, _ := matrix.Column(a)
	colB, _ := matrix.Column(b)
	rho, _ := tsa.Correlation(colA, colB)
	if math.IsNaN(rho) || math.Abs(rho) < s.cfg.MinCorrelation {
		return outcome{reason: LowCorrelation}
	}

	series, err := matrix.Pair(a, b)
	if err != nil || series.Len() < s.cfg.MinPeriods {
		return outcome{reason: InsufficientData}
	}

	eg, err := tsa.EngleGranger(series.A, series.B)
	if err != nil {
		return s.numerical(a, b, "engle_granger", err)
	}

	beta := eg.Beta
	if !tsa.Finite(beta) || math.Abs(beta) < s.cfg.MinBeta || math.Abs(beta) > s.cfg.MaxBeta {
		return outcome{reason: BetaOutOfBounds}
	}

	spread := make([]float64, series.Len())
	for i := range spread {
		spread[i] = series.A[i] - beta*series.B[i]
	}
	spreadStd, err := stats.StandardDeviationSample(spread)
	if err != nil || !tsa.Finite(spreadStd) || spreadStd < minSpreadStd {
		return outcome{reason: DegenerateSpread}
	}

	if !tsa.Finite(eg.PValue) {
		return s.numerical(a, b, "p_value", tsa.ErrNonFinite)
	}
	if eg.PValue >= s.cfg.MaxPValue {
		return outcome{reason: NotCointegrated}
	}

	gamma, halfLife, err := tsa.HalfLife(spread)
	if err != nil {
		if errors.Is(err, tsa.ErrTooFewObservations) {
			return outcome{reason: InsufficientData}
		}
		return s.numerical(a, b, "half_life", err)
	}
	if gamma >= 0 {
		return outcome{reason: NotMeanReverting}
	}
	if halfLife < s.cfg.MinHalfLife || halfLife > s.cfg.MaxHalfLife {
		return outcome{reason: HalfLifeOutOfBounds}
	}

	return outcome{
		reason: Accepted,
		candidate: models.PairCandidate{
			SymbolA:      a,
			SymbolB:      b,
			Beta:         beta,
			Alpha:        eg.Alpha,
			PValue:       eg.PValue,
			ADFStat:      eg.ADFStat,
			HalfLife:     halfLife,
			SpreadStd:    spreadStd,
			Correlation:  rho,
			Observations: series.Len(),
		},
	}
}

func (s *Selector) numerical(a, b, stage string, err error) outcome {
	s.logger.Debug("pair dropped on numerical failure",
		zap.String("pair", a+"-"+b),
		zap.String("stage", stage),
		zap.Error(err))
	return outcome{reason: NumericalFailure}
}
