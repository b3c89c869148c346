package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TruWeaveTrader/statarb/internal/aggregate"
	"github.com/TruWeaveTrader/statarb/internal/runner"
	"github.com/TruWeaveTrader/statarb/internal/selection"
	"github.com/TruWeaveTrader/statarb/internal/storage"
	"github.com/TruWeaveTrader/statarb/internal/strategy"
	"github.com/TruWeaveTrader/statarb/internal/universe"
	"github.com/TruWeaveTrader/statarb/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(btCmd) // Alias

	for _, c := range []*cobra.Command{backtestCmd, btCmd} {
		addStrategyFlags(c)
	}
}

var btCmd = &cobra.Command{
	Use:   "bt",
	Short: "Run the multi-year backtest (alias)",
	RunE:  runBacktest,
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the multi-year pairs backtest",
	Long: `Runs pair selection and backtesting for every year of the universe,
writes per-pair, per-year and continuous CSV files plus a run manifest
to the output directory, and optionally records the run in SQLite.`,
	RunE: runBacktest,
}

// runParams is the parameter snapshot stored with every run
type runParams struct {
	Selection selection.Config `json:"selection"`
	Strategy  strategy.Params  `json:"strategy"`
	Run       runner.Options   `json:"run"`
}

func addStrategyFlags(c *cobra.Command) {
	f := c.Flags()
	f.Float64("entry-z", 1.5, "enter when |z| exceeds this level")
	f.Float64("exit-z", 0.5, "exit when |z| falls below this level")
	f.String("zscore-mode", string(strategy.RollingZScore), "z-score normalisation: rolling or static")
	f.Int("window", strategy.DefaultWindow, "rolling z-score window in days")
	f.Int("top-n", 5, "pairs traded per year")
	f.Int("min-symbols", 20, "skip years with fewer clean symbols")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	matrix, u, err := loadInputs()
	if err != nil {
		return err
	}

	params := cfg.StrategyParams()
	mgr, err := newManager(params)
	if err != nil {
		return fmt.Errorf("invalid strategy parameters: %w", err)
	}

	started := time.Now().UTC()
	runID := storage.NewRunID()
	log := logger.With(zap.String("run_id", runID))
	log.Info("backtest started", zap.Ints("years", universe.Years(u)))

	res, runErr := mgr.Run(ctx, matrix, u)
	if runErr != nil && !errors.Is(runErr, runner.ErrNoResults) {
		return fmt.Errorf("backtest failed: %w", runErr)
	}
	defer writeMetrics()

	snapshot := runParams{Selection: cfg.SelectionConfig(), Strategy: params, Run: mgr.Options()}
	if err := writeOutputs(ctx, runID, started, snapshot, res); err != nil {
		return err
	}

	fmt.Println(formatters.FormatYearsTable(res.Years))
	if runErr != nil {
		// Distinct from a populated curve that happens to end at zero
		log.Warn("no year produced a portfolio")
		return runErr
	}

	perf, err := aggregate.ContinuousPerformance(res.Continuous, res.Capital)
	if err != nil {
		return err
	}
	fmt.Println(formatters.FormatPerformance("Continuous portfolio", perf))

	log.Info("backtest complete",
		zap.Float64("final_pnl", res.Continuous.FinalPnL()),
		zap.Float64("sharpe", perf.Sharpe),
		zap.String("output", cfg.OutputDir),
	)
	return nil
}

// writeOutputs persists a run to CSV, the manifest and optionally SQLite
func writeOutputs(ctx context.Context, runID string, started time.Time, params runParams, res *runner.RunResult) error {
	w, err := storage.NewCSVWriter(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, yr := range res.Years {
		if yr.Skipped() {
			continue
		}
		for _, p := range yr.Pairs {
			if err := w.WritePair(p); err != nil {
				return fmt.Errorf("failed to write pair %s: %w", p.Candidate.Name(), err)
			}
		}
		if err := w.WriteYearly(yr.Portfolio); err != nil {
			return fmt.Errorf("failed to write year %d: %w", yr.Year, err)
		}
	}
	if res.Continuous != nil && !res.Continuous.Empty() {
		if err := w.WriteContinuous(res.Continuous); err != nil {
			return fmt.Errorf("failed to write continuous portfolio: %w", err)
		}
	}

	manifest, err := storage.NewManifest(runID, started, params, res)
	if err != nil {
		return err
	}
	if err := storage.WriteManifest(cfg.OutputDir, manifest); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if cfg.DatabasePath == "" {
		return nil
	}
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	if err := store.SaveRun(ctx, runID, started, params, res); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	logger.Info("run stored", zap.String("run_id", runID), zap.String("db", cfg.DatabasePath))
	return nil
}
