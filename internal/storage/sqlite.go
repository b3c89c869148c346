package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/runner"
)

// ErrRunNotFound is returned when no stored run matches
var ErrRunNotFound = errors.New("run not found")

// Store persists backtest runs in SQLite
type Store struct {
	db *sql.DB
}

// RunInfo describes a stored run
type RunInfo struct {
	ID        string
	CreatedAt time.Time
	Capital   float64
	FinalPnL  float64
	Params    json.RawMessage
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  created_at INTEGER NOT NULL,
  capital REAL NOT NULL,
  final_pnl REAL NOT NULL,
  params TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

CREATE TABLE IF NOT EXISTS pair_candidates (
  run_id TEXT NOT NULL,
  year INTEGER NOT NULL,
  rank INTEGER NOT NULL,
  symbol_a TEXT NOT NULL,
  symbol_b TEXT NOT NULL,
  beta REAL NOT NULL,
  alpha REAL NOT NULL,
  p_value REAL NOT NULL,
  adf_stat REAL NOT NULL,
  half_life REAL NOT NULL,
  spread_std REAL NOT NULL,
  correlation REAL NOT NULL,
  observations INTEGER NOT NULL,
  UNIQUE(run_id, year, symbol_a, symbol_b)
);

CREATE TABLE IF NOT EXISTS pair_results (
  run_id TEXT NOT NULL,
  year INTEGER NOT NULL,
  symbol_a TEXT NOT NULL,
  symbol_b TEXT NOT NULL,
  trades INTEGER NOT NULL,
  stop_index INTEGER NOT NULL,
  final_pnl REAL NOT NULL,
  UNIQUE(run_id, year, symbol_a, symbol_b)
);

CREATE TABLE IF NOT EXISTS pair_daily (
  run_id TEXT NOT NULL,
  year INTEGER NOT NULL,
  symbol_a TEXT NOT NULL,
  symbol_b TEXT NOT NULL,
  date TEXT NOT NULL,
  price_a REAL NOT NULL,
  price_b REAL NOT NULL,
  spread REAL NOT NULL,
  zscore REAL,
  position INTEGER NOT NULL,
  quantity_a REAL NOT NULL,
  quantity_b REAL NOT NULL,
  daily_pnl REAL NOT NULL,
  cumulative_pnl REAL NOT NULL,
  bh_pnl_a REAL NOT NULL,
  bh_pnl_b REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pair_daily_pair ON pair_daily(run_id, year, symbol_a, symbol_b);

CREATE TABLE IF NOT EXISTS yearly_pnl (
  run_id TEXT NOT NULL,
  year INTEGER NOT NULL,
  date TEXT NOT NULL,
  yearly_pnl REAL NOT NULL,
  cumulative_pnl REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_yearly_run ON yearly_pnl(run_id, year);

CREATE TABLE IF NOT EXISTS continuous_pnl (
  run_id TEXT NOT NULL,
  date TEXT NOT NULL,
  yearly_pnl REAL NOT NULL,
  cumulative_pnl REAL NOT NULL,
  year INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_continuous_run ON continuous_pnl(run_id, date);
`)
	return err
}

// SaveRun stores a complete run in one transaction
func (s *Store) SaveRun(ctx context.Context, id string, createdAt time.Time, params any, res *runner.RunResult) (err error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	final := 0.0
	if res.Continuous != nil {
		final = res.Continuous.FinalPnL()
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs(id, created_at, capital, final_pnl, params) VALUES(?, ?, ?, ?, ?)`,
		id, createdAt.UnixMilli(), res.Capital, final, string(payload)); err != nil {
		return err
	}

	for _, yr := range res.Years {
		if yr.Selection != nil {
			if err = insertCandidates(ctx, tx, id, yr.Year, yr.Selection.Candidates); err != nil {
				return err
			}
		}
		for _, p := range yr.Pairs {
			if err = insertPair(ctx, tx, id, p); err != nil {
				return err
			}
		}
		if yr.Portfolio != nil {
			for _, r := range yr.Portfolio.Rows {
				if _, err = tx.ExecContext(ctx,
					`INSERT INTO yearly_pnl(run_id, year, date, yearly_pnl, cumulative_pnl) VALUES(?, ?, ?, ?, ?)`,
					id, yr.Year, r.Date.Format(dateLayout), r.YearlyPnL, r.CumulativePnL); err != nil {
					return err
				}
			}
		}
	}

	if res.Continuous != nil {
		for _, r := range res.Continuous.Rows {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO continuous_pnl(run_id, date, yearly_pnl, cumulative_pnl, year) VALUES(?, ?, ?, ?, ?)`,
				id, r.Date.Format(dateLayout), r.YearlyPnL, r.CumulativePnL, r.Year); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func insertCandidates(ctx context.Context, tx *sql.Tx, runID string, year int, candidates []models.PairCandidate) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pair_candidates(run_id, year, rank, symbol_a, symbol_b, beta, alpha, p_value,
			adf_stat, half_life, spread_std, correlation, observations)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range candidates {
		if _, err := stmt.ExecContext(ctx, runID, year, i+1, c.SymbolA, c.SymbolB, c.Beta, c.Alpha,
			c.PValue, c.ADFStat, c.HalfLife, c.SpreadStd, c.Correlation, c.Observations); err != nil {
			return err
		}
	}
	return nil
}

func insertPair(ctx context.Context, tx *sql.Tx, runID string, p *models.PairResult) error {
	a, b := p.Candidate.SymbolA, p.Candidate.SymbolB
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pair_results(run_id, year, symbol_a, symbol_b, trades, stop_index, final_pnl)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		runID, p.Year, a, b, p.Trades, p.StopIndex, p.FinalPnL()); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pair_daily(run_id, year, symbol_a, symbol_b, date, price_a, price_b, spread, zscore,
			position, quantity_a, quantity_b, daily_pnl, cumulative_pnl, bh_pnl_a, bh_pnl_b)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range p.Records {
		z := sql.NullFloat64{Float64: r.ZScore, Valid: !math.IsNaN(r.ZScore)}
		if _, err := stmt.ExecContext(ctx, runID, p.Year, a, b, r.Date.Format(dateLayout),
			r.PriceA, r.PriceB, r.Spread, z, int(r.Position), r.QuantityA, r.QuantityB,
			r.DailyPnL, r.CumulativePnL, r.BenchmarkA, r.BenchmarkB); err != nil {
			return err
		}
	}
	return nil
}

// ListRuns returns stored runs, newest first
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, capital, final_pnl, params FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		var created int64
		var params string
		if err := rows.Scan(&info.ID, &created, &info.Capital, &info.FinalPnL, &params); err != nil {
			return nil, err
		}
		info.CreatedAt = time.UnixMilli(created).UTC()
		info.Params = json.RawMessage(params)
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently stored run
func (s *Store) LatestRun(ctx context.Context) (RunInfo, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return RunInfo{}, err
	}
	if len(runs) == 0 {
		return RunInfo{}, ErrRunNotFound
	}
	return runs[0], nil
}

// LoadContinuous reads back a run's continuous curve
func (s *Store) LoadContinuous(ctx context.Context, runID string) (*models.ContinuousPortfolio, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs WHERE id=?`, runID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrRunNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, yearly_pnl, cumulative_pnl, year FROM continuous_pnl WHERE run_id=? ORDER BY date`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c := &models.ContinuousPortfolio{Rows: make([]models.ContinuousRow, 0)}
	for rows.Next() {
		var r models.ContinuousRow
		var date string
		if err := rows.Scan(&date, &r.YearlyPnL, &r.CumulativePnL, &r.Year); err != nil {
			return nil, err
		}
		if r.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, err
		}
		c.Rows = append(c.Rows, r)
	}
	return c, rows.Err()
}

// LoadCandidates reads back the ranked candidates of one year
func (s *Store) LoadCandidates(ctx context.Context, runID string, year int) ([]models.PairCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol_a, symbol_b, beta, alpha, p_value, adf_stat, half_life, spread_std, correlation, observations
		FROM pair_candidates WHERE run_id=? AND year=? ORDER BY rank`, runID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PairCandidate
	for rows.Next() {
		var c models.PairCandidate
		if err := rows.Scan(&c.SymbolA, &c.SymbolB, &c.Beta, &c.Alpha, &c.PValue, &c.ADFStat,
			&c.HalfLife, &c.SpreadStd, &c.Correlation, &c.Observations); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
