package risk

import (
	"fmt"
	"math"

	"github.com/TruWeaveTrader/statarb/internal/models"
)

// Limits holds the per-pair capital and loss parameters
type Limits struct {
	BookSize    float64 // Fixed notional capital per pair
	CostRate    float64 // Fraction of book charged per unit position change
	StopLossPct float64 // Stop when cumulative P&L falls below -StopLossPct*BookSize
}

// Manager handles position sizing, transaction costs and the stop-loss
type Manager struct {
	limits Limits
}

// NewManager creates a new risk manager
func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits}
}

// Limits returns the configured limits
func (m *Manager) Limits() Limits {
	return m.limits
}

// CheckResult contains the result of a risk check
type CheckResult struct {
	Passed   bool
	Reason   string
	Warnings []string
}

// Notionals splits the book between the legs in proportion 1 : |beta|
func (m *Manager) Notionals(beta float64) (notionalA, notionalB float64) {
	absBeta := math.Abs(beta)
	notionalA = m.limits.BookSize / (1 + absBeta)
	notionalB = m.limits.BookSize * absBeta / (1 + absBeta)
	return notionalA, notionalB
}

// Quantities returns the share counts for both legs at the given prices.
// Leg B is held opposite to leg A for a positive hedge ratio. Counts are
// rounded half to even.
func (m *Manager) Quantities(priceA, priceB, beta float64, pos models.PositionState) (qtyA, qtyB float64) {
	if pos == models.Flat {
		return 0, 0
	}
	notionalA, notionalB := m.Notionals(beta)
	qtyA = math.RoundToEven(notionalA / priceA * pos.Float())
	qtyB = math.RoundToEven(-sign(beta) * notionalB / priceB * pos.Float())
	return qtyA + 0, qtyB + 0 // normalise -0
}

// TransactionCost returns the cost of moving between two position states
func (m *Manager) TransactionCost(prev, cur models.PositionState) float64 {
	if prev == cur {
		return 0
	}
	return m.limits.CostRate * m.limits.BookSize * math.Abs(cur.Float()-prev.Float())
}

// StopLevel returns the cumulative P&L below which the stop fires
func (m *Manager) StopLevel() float64 {
	return -m.limits.StopLossPct * m.limits.BookSize
}

// CheckStopLoss validates cumulative pair P&L against the stop level
func (m *Manager) CheckStopLoss(cumulative float64) CheckResult {
	level := m.StopLevel()
	if cumulative < level {
		return CheckResult{
			Passed: false,
			Reason: fmt.Sprintf("Cumulative P&L %.2f breached stop level %.2f", cumulative, level),
		}
	}

	// Add warning if approaching limit
	result := CheckResult{Passed: true}
	if cumulative < 0 && level < 0 {
		used := cumulative / level * 100
		if used > 75 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Approaching stop-loss: %.1f%% used", used))
		}
	}
	return result
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
