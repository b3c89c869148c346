package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/TruWeaveTrader/statarb/internal/runner"
)

const manifestFileName = "manifest.json"

// Manifest records what a run did and where its outputs are
type Manifest struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Params     json.RawMessage `json:"params"`
	Capital    decimal.Decimal `json:"capital"`
	FinalPnL   decimal.Decimal `json:"final_pnl"`
	Years      []YearStatus    `json:"years"`
}

// YearStatus summarises one year for monitoring
type YearStatus struct {
	Year       int             `json:"year"`
	Symbols    int             `json:"symbols"`
	Pairs      []string        `json:"pairs,omitempty"`
	PnL        decimal.Decimal `json:"pnl"`
	SkipReason string          `json:"skip_reason,omitempty"`
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.New().String()
}

// NewManifest summarises a run result
func NewManifest(runID string, started time.Time, params any, res *runner.RunResult) (*Manifest, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Params:     payload,
		Capital:    money(res.Capital),
	}
	if res.Continuous != nil {
		m.FinalPnL = money(res.Continuous.FinalPnL())
	}
	for _, yr := range res.Years {
		status := YearStatus{Year: yr.Year, Symbols: yr.Symbols, SkipReason: yr.SkipReason}
		if yr.Portfolio != nil {
			status.Pairs = yr.Portfolio.Pairs
			status.PnL = money(yr.Portfolio.FinalPnL())
		}
		m.Years = append(m.Years, status)
	}
	return m, nil
}

// WriteManifest writes the manifest into dir
func WriteManifest(dir string, m *Manifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(dir, manifestFileName))
	if err != nil {
		return err
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// ReadManifest reads the manifest from dir
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// money rounds to cents for reporting
func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
