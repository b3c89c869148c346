package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TruWeaveTrader/statarb/internal/aggregate"
	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/runner"
	"github.com/TruWeaveTrader/statarb/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().Float64Slice("entry", []float64{1.0, 1.5, 2.0, 2.5}, "entry z-score levels to try")
	sweepCmd.Flags().Float64Slice("exit", []float64{0.0, 0.25, 0.5}, "exit z-score levels to try")
	sweepCmd.Flags().Int("top-n", 5, "pairs traded per year")
	sweepCmd.Flags().Int("min-symbols", 20, "skip years with fewer clean symbols")
	sweepCmd.Flags().String("zscore-mode", "rolling", "z-score normalisation: rolling or static")
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Backtest a grid of entry/exit thresholds",
	Long: `Re-runs the full multi-year backtest for every entry/exit combination
with entry > exit. Pair selection does not depend on the thresholds, so
each year is screened once and reused from the cache.`,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entries, _ := cmd.Flags().GetFloat64Slice("entry")
	exits, _ := cmd.Flags().GetFloat64Slice("exit")

	matrix, u, err := loadInputs()
	if err != nil {
		return err
	}
	defer writeMetrics()

	var rows []formatters.SweepRow
	for _, entry := range entries {
		for _, exit := range exits {
			if entry <= exit {
				continue
			}
			row, err := sweepPoint(ctx, matrix, u, entry, exit)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
	}

	stats := dataCache.GetStats()
	logger.Info("sweep complete",
		zap.Int("points", len(rows)),
		zap.Int("cached_selections", stats.SelectionCount),
	)
	fmt.Println(formatters.FormatSweepTable(rows))
	return nil
}

// sweepPoint runs one threshold pair. Only cancellation is returned as an
// error; an empty run is reported on its row.
func sweepPoint(ctx context.Context, matrix *models.PriceMatrix, u models.Universe, entry, exit float64) (formatters.SweepRow, error) {
	row := formatters.SweepRow{EntryZ: entry, ExitZ: exit}

	params := cfg.StrategyParams()
	params.EntryZ, params.ExitZ = entry, exit
	mgr, err := newManager(params)
	if err != nil {
		row.Err = err
		return row, nil
	}

	res, err := mgr.Run(ctx, matrix, u)
	switch {
	case errors.Is(err, runner.ErrNoResults):
		row.Err = err
		return row, nil
	case err != nil:
		return row, err
	}

	for _, yr := range res.Years {
		for _, p := range yr.Pairs {
			row.Trades += p.Trades
		}
	}
	row.Performance, err = aggregate.ContinuousPerformance(res.Continuous, res.Capital)
	if err != nil {
		row.Err = err
	}
	logger.Debug("sweep point",
		zap.Float64("entry_z", entry),
		zap.Float64("exit_z", exit),
		zap.Float64("total_pnl", row.Performance.TotalPnL),
	)
	return row, nil
}
