package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TruWeaveTrader/statarb/internal/aggregate"
	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/storage"
	"github.com/TruWeaveTrader/statarb/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("run", "", "stored run id (default: latest run in --db)")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show performance of a finished run",
	Long: `Prints total return, Sharpe ratio, annualized return and maximum
drawdown of a continuous portfolio. Reads the run from --db when set,
otherwise from the CSV files and manifest in --output.`,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	runID, _ := cmd.Flags().GetString("run")

	var (
		curve   *models.ContinuousPortfolio
		capital float64
		label   string
		err     error
	)
	if cfg.DatabasePath != "" {
		curve, capital, label, err = reportFromStore(cmd.Context(), runID)
	} else {
		curve, capital, label, err = reportFromFiles()
	}
	if err != nil {
		return err
	}

	if curve.Empty() {
		fmt.Printf("Run %s produced no results\n", label)
		return nil
	}

	perf, err := aggregate.ContinuousPerformance(curve, capital)
	if err != nil {
		return err
	}
	fmt.Println(formatters.FormatPerformance("Run "+label, perf))

	for _, year := range curveYears(curve) {
		yearPerf, err := aggregate.Summarize(year.dates, year.daily, capital)
		if err != nil {
			continue
		}
		fmt.Println(formatters.FormatPerformance(fmt.Sprintf("%d", year.year), yearPerf))
	}
	return nil
}

func reportFromStore(ctx context.Context, runID string) (*models.ContinuousPortfolio, float64, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return nil, 0, "", err
	}
	var info *storage.RunInfo
	for i := range runs {
		if runID == "" || runs[i].ID == runID {
			info = &runs[i]
			break
		}
	}
	if info == nil {
		return nil, 0, "", storage.ErrRunNotFound
	}

	curve, err := store.LoadContinuous(ctx, info.ID)
	if err != nil {
		return nil, 0, "", err
	}
	logger.Debug("report from database", zap.String("run_id", info.ID), zap.Int("days", len(curve.Rows)))
	return curve, info.Capital, info.ID, nil
}

func reportFromFiles() (*models.ContinuousPortfolio, float64, string, error) {
	capital := float64(cfg.Run.TopN) * cfg.Strategy.BookSize
	label := cfg.OutputDir

	manifest, err := storage.ReadManifest(cfg.OutputDir)
	switch {
	case err == nil:
		capital = manifest.Capital.InexactFloat64()
		label = manifest.RunID
	case !errors.Is(err, os.ErrNotExist):
		return nil, 0, "", fmt.Errorf("failed to read manifest: %w", err)
	}

	curve, err := storage.ReadContinuous(filepath.Join(cfg.OutputDir, storage.ContinuousFile))
	if errors.Is(err, os.ErrNotExist) {
		return &models.ContinuousPortfolio{}, capital, label, nil
	}
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to read continuous portfolio: %w", err)
	}
	return curve, capital, label, nil
}

type yearSlice struct {
	year  int
	dates []time.Time
	daily []float64
}

// curveYears splits a continuous curve back into its calendar years
func curveYears(c *models.ContinuousPortfolio) []yearSlice {
	var out []yearSlice
	for _, r := range c.Rows {
		if len(out) == 0 || out[len(out)-1].year != r.Year {
			out = append(out, yearSlice{year: r.Year})
		}
		last := &out[len(out)-1]
		last.dates = append(last.dates, r.Date)
		last.daily = append(last.daily, r.YearlyPnL)
	}
	return out
}
