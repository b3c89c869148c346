package strategy

import (
	"fmt"
	"math"

	"github.com/TruWeaveTrader/statarb/internal/models"
)

// Thresholds holds the entry and exit z-score levels
type Thresholds struct {
	EntryZ float64 `json:"entry_z"`
	ExitZ  float64 `json:"exit_z"`
}

// Validate checks that entry_z > exit_z >= 0
func (t Thresholds) Validate() error {
	if t.ExitZ < 0 || math.IsNaN(t.ExitZ) {
		return fmt.Errorf("exit_z must be non-negative, got %v", t.ExitZ)
	}
	if !(t.EntryZ > t.ExitZ) {
		return fmt.Errorf("entry_z (%v) must exceed exit_z (%v)", t.EntryZ, t.ExitZ)
	}
	return nil
}

// PositionMachine converts z-scores into positions with hysteresis
type PositionMachine struct {
	thresholds Thresholds
}

// NewPositionMachine creates a position state machine
func NewPositionMachine(t Thresholds) (*PositionMachine, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &PositionMachine{thresholds: t}, nil
}

// Step returns the state after observing z from state cur
func (m *PositionMachine) Step(cur models.PositionState, z float64) models.PositionState {
	if math.IsNaN(z) {
		return models.Flat
	}

	entry, exit := m.thresholds.EntryZ, m.thresholds.ExitZ
	switch cur {
	case models.Flat:
		if z < -entry {
			return models.LongSpread
		}
		if z > entry {
			return models.ShortSpread
		}
	case models.LongSpread:
		if z > -exit {
			return models.Flat
		}
	case models.ShortSpread:
		if z < exit {
			return models.Flat
		}
	}
	return cur
}

// Run produces the position sequence for z. The first day is always flat.
func (m *PositionMachine) Run(z []float64) []models.PositionState {
	positions := make([]models.PositionState, len(z))
	for i := 1; i < len(z); i++ {
		positions[i] = m.Step(positions[i-1], z[i])
	}
	return positions
}
