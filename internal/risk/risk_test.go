package risk

import (
	"math"
	"testing"

	"github.com/TruWeaveTrader/statarb/internal/models"
)

func newTestManager() *Manager {
	return NewManager(Limits{BookSize: 1_000_000, CostRate: 0.001, StopLossPct: 0.10})
}

func TestNotionals(t *testing.T) {
	m := newTestManager()

	a, b := m.Notionals(2.0)
	if math.Abs(a-333_333.333) > 0.001 {
		t.Errorf("Expected notional A=333333.33, got %.4f", a)
	}
	if math.Abs(b-666_666.667) > 0.001 {
		t.Errorf("Expected notional B=666666.67, got %.4f", b)
	}

	// Sign of beta does not change the split
	a2, b2 := m.Notionals(-2.0)
	if a2 != a || b2 != b {
		t.Errorf("Expected identical split for negative beta, got %v %v", a2, b2)
	}
}

func TestQuantities(t *testing.T) {
	m := newTestManager()

	qa, qb := m.Quantities(100, 50, 2.0, models.LongSpread)
	if qa != 3333 {
		t.Errorf("Expected qty A=3333, got %v", qa)
	}
	if qb != -13333 {
		t.Errorf("Expected qty B=-13333, got %v", qb)
	}

	qa, qb = m.Quantities(100, 50, 2.0, models.ShortSpread)
	if qa != -3333 || qb != 13333 {
		t.Errorf("Expected mirrored short quantities, got %v %v", qa, qb)
	}

	// Negative hedge ratio holds both legs on the same side
	qa, qb = m.Quantities(100, 50, -2.0, models.LongSpread)
	if qa <= 0 || qb <= 0 {
		t.Errorf("Expected both legs long for negative beta, got %v %v", qa, qb)
	}

	qa, qb = m.Quantities(100, 50, 2.0, models.Flat)
	if qa != 0 || qb != 0 || math.Signbit(qa) || math.Signbit(qb) {
		t.Errorf("Expected zero quantities when flat, got %v %v", qa, qb)
	}
}

func TestQuantitiesRoundHalfToEven(t *testing.T) {
	// notional A = 1000/(1+1) = 500; 500/200 = 2.5 -> 2
	m := NewManager(Limits{BookSize: 1000})
	qa, _ := m.Quantities(200, 100, 1, models.LongSpread)
	if qa != 2 {
		t.Errorf("Expected half-to-even rounding to 2, got %v", qa)
	}
}

func TestTransactionCost(t *testing.T) {
	m := newTestManager()

	if c := m.TransactionCost(models.Flat, models.LongSpread); c != 1000 {
		t.Errorf("Expected cost 1000 on entry, got %v", c)
	}
	if c := m.TransactionCost(models.LongSpread, models.LongSpread); c != 0 {
		t.Errorf("Expected no cost when holding, got %v", c)
	}
	if c := m.TransactionCost(models.ShortSpread, models.Flat); c != 1000 {
		t.Errorf("Expected cost 1000 on exit, got %v", c)
	}
}

func TestCheckStopLoss(t *testing.T) {
	m := newTestManager()

	if r := m.CheckStopLoss(-50_000); !r.Passed || len(r.Warnings) != 0 {
		t.Errorf("Expected pass without warnings, got %+v", r)
	}
	if r := m.CheckStopLoss(-80_000); !r.Passed || len(r.Warnings) != 1 {
		t.Errorf("Expected pass with warning, got %+v", r)
	}
	if r := m.CheckStopLoss(-100_000); !r.Passed {
		t.Errorf("Expected pass exactly at the stop level, got %+v", r)
	}
	if r := m.CheckStopLoss(-100_000.01); r.Passed || r.Reason == "" {
		t.Errorf("Expected failure below the stop level, got %+v", r)
	}
}
