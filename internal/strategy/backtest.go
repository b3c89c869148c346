package strategy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/risk"
)

// Params holds the trading parameters of a pair backtest
type Params struct {
	Thresholds
	Window      int        `json:"window"`
	Mode        ZScoreMode `json:"mode"`
	CostRate    float64    `json:"cost_rate"`
	BookSize    float64    `json:"book_size"`
	StopLossPct float64    `json:"stop_loss_pct"`
}

// DefaultParams returns the canonical backtest parameters
func DefaultParams() Params {
	return Params{
		Thresholds:  Thresholds{EntryZ: 1.5, ExitZ: 0.5},
		Window:      DefaultWindow,
		Mode:        RollingZScore,
		CostRate:    0.001,
		BookSize:    1_000_000,
		StopLossPct: 0.10,
	}
}

// Validate checks the parameters
func (p Params) Validate() error {
	if err := p.Thresholds.Validate(); err != nil {
		return err
	}
	if p.BookSize <= 0 {
		return fmt.Errorf("book_size must be positive, got %v", p.BookSize)
	}
	if p.CostRate < 0 {
		return fmt.Errorf("cost_rate must be non-negative, got %v", p.CostRate)
	}
	if p.StopLossPct <= 0 {
		return fmt.Errorf("stop_loss_pct must be positive, got %v", p.StopLossPct)
	}
	return nil
}

// Backtester runs the signal, position and accounting stages for one pair
type Backtester struct {
	params     Params
	signals    *SignalEngine
	machine    *PositionMachine
	accountant *Accountant
	logger     *zap.Logger
}

// NewBacktester creates a backtester
func NewBacktester(p Params, logger *zap.Logger) (*Backtester, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	signals, err := NewSignalEngine(p.Window, p.Mode)
	if err != nil {
		return nil, err
	}
	machine, err := NewPositionMachine(p.Thresholds)
	if err != nil {
		return nil, err
	}
	riskMgr := risk.NewManager(risk.Limits{
		BookSize:    p.BookSize,
		CostRate:    p.CostRate,
		StopLossPct: p.StopLossPct,
	})

	return &Backtester{
		params:     p,
		signals:    signals,
		machine:    machine,
		accountant: NewAccountant(riskMgr, logger),
		logger:     logger.With(zap.String("component", "backtester")),
	}, nil
}

// Params returns the backtest parameters
func (b *Backtester) Params() Params {
	return b.params
}

// Run backtests a selected pair over an aligned price history
func (b *Backtester) Run(year int, candidate models.PairCandidate, series models.PairSeries) (*models.PairResult, error) {
	if len(series.A) != len(series.B) {
		return nil, ErrLengthMismatch
	}

	spread := b.signals.Spread(series.A, series.B, candidate.Beta)
	z := b.signals.ZScores(spread)
	positions := b.machine.Run(z)

	ledger, err := b.accountant.Settle(series, spread, z, positions, candidate.Beta)
	if err != nil {
		return nil, fmt.Errorf("settle %s: %w", candidate.Name(), err)
	}

	result := &models.PairResult{
		Year:      year,
		Candidate: candidate,
		Records:   ledger.Records,
		Trades:    ledger.Trades,
		StopIndex: ledger.StopIndex,
	}
	b.logger.Debug("pair backtest complete",
		zap.Int("year", year),
		zap.String("pair", candidate.Name()),
		zap.Int("days", len(result.Records)),
		zap.Int("trades", result.Trades),
		zap.Bool("stopped", result.StopTriggered()),
		zap.Float64("pnl", result.FinalPnL()),
	)
	return result, nil
}
