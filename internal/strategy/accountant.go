package strategy

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/risk"
)

var (
	// ErrInvalidPrice is returned for a missing, non-finite or non-positive price
	ErrInvalidPrice = errors.New("invalid price")
	// ErrLengthMismatch is returned when input sequences are not aligned
	ErrLengthMismatch = errors.New("input length mismatch")
)

// Ledger is the settled output of one pair
type Ledger struct {
	Records   []models.DailyRecord
	Trades    int
	StopIndex int
}

// Accountant marks positions to market and applies costs and the stop-loss
type Accountant struct {
	risk   *risk.Manager
	logger *zap.Logger
}

// NewAccountant creates an accountant
func NewAccountant(riskMgr *risk.Manager, logger *zap.Logger) *Accountant {
	return &Accountant{
		risk:   riskMgr,
		logger: logger.With(zap.String("component", "pnl_accountant")),
	}
}

// book is the state carried from one day to the next
type book struct {
	position   models.PositionState
	qtyA, qtyB float64
	priceA     float64
	priceB     float64
	cumulative float64
	stopped    bool
	trades     int
}

// Settle produces the daily records for a pair. Positions from the stop-loss
// day onwards are forced flat regardless of the input sequence.
func (a *Accountant) Settle(series models.PairSeries, spread, z []float64, positions []models.PositionState, beta float64) (*Ledger, error) {
	n := series.Len()
	if len(series.B) != n || len(series.Dates) != n || len(spread) != n || len(z) != n || len(positions) != n {
		return nil, ErrLengthMismatch
	}
	for i := 0; i < n; i++ {
		if !validPrice(series.A[i]) || !validPrice(series.B[i]) {
			return nil, fmt.Errorf("%w on %s", ErrInvalidPrice, series.Dates[i].Format("2006-01-02"))
		}
	}

	ledger := &Ledger{Records: make([]models.DailyRecord, n), StopIndex: -1}
	if n == 0 {
		return ledger, nil
	}

	st := book{position: positions[0], priceA: series.A[0], priceB: series.B[0]}
	st.qtyA, st.qtyB = a.risk.Quantities(st.priceA, st.priceB, beta, st.position)
	ledger.Records[0] = a.record(series, spread, z, 0, st, 0)

	for t := 1; t < n; t++ {
		var daily float64
		st, daily = a.step(st, series.A[t], series.B[t], positions[t], beta)
		if st.stopped && ledger.StopIndex < 0 {
			ledger.StopIndex = t
			a.logger.Debug("stop-loss triggered",
				zap.Time("date", series.Dates[t]),
				zap.Float64("cumulative_pnl", st.cumulative))
		}
		ledger.Records[t] = a.record(series, spread, z, t, st, daily)
	}
	ledger.Trades = st.trades
	return ledger, nil
}

// step advances the book by one day and returns the day's P&L
func (a *Accountant) step(prev book, priceA, priceB float64, target models.PositionState, beta float64) (book, float64) {
	returnA := (priceA - prev.priceA) / prev.priceA
	returnB := (priceB - prev.priceB) / prev.priceB
	pnl := prev.qtyA*prev.priceA*returnA + prev.qtyB*prev.priceB*returnB

	next := prev
	next.priceA, next.priceB = priceA, priceB
	if prev.stopped {
		target = models.Flat
	}

	// The trigger day keeps the cost of the signalled move, so the recorded
	// cumulative is the one that breached the stop level.
	daily := pnl - a.risk.TransactionCost(prev.position, target)
	if !prev.stopped {
		check := a.risk.CheckStopLoss(prev.cumulative + daily)
		if !check.Passed {
			a.logger.Warn(check.Reason)
			next.stopped = true
			target = models.Flat
		}
		for _, w := range check.Warnings {
			a.logger.Debug(w)
		}
	}

	next.position = target
	next.cumulative = prev.cumulative + daily
	next.qtyA, next.qtyB = a.risk.Quantities(priceA, priceB, beta, target)
	if prev.position != models.Flat && target == models.Flat {
		next.trades++
	}
	return next, daily
}

func (a *Accountant) record(series models.PairSeries, spread, z []float64, t int, st book, daily float64) models.DailyRecord {
	return models.DailyRecord{
		Date:          series.Dates[t],
		PriceA:        series.A[t],
		PriceB:        series.B[t],
		Spread:        spread[t],
		ZScore:        z[t],
		Position:      st.position,
		QuantityA:     st.qtyA,
		QuantityB:     st.qtyB,
		DailyPnL:      daily,
		CumulativePnL: st.cumulative,
	}
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
