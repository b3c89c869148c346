package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/universe"
	"github.com/TruWeaveTrader/statarb/pkg/formatters"
)

func init() {
	rootCmd.AddCommand(selectCmd)

	selectCmd.Flags().Int("year", 0, "universe year to screen (required)")
	selectCmd.Flags().Int("limit", 0, "show at most this many candidates (0 = all)")
	selectCmd.Flags().Int("min-symbols", 20, "skip years with fewer clean symbols")
	_ = selectCmd.MarkFlagRequired("year")
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "List cointegrated pair candidates for one year",
	Long: `Filters the year's eligible symbols, runs the Engle-Granger screen on
every pair and prints the survivors ranked by p-value.`,
	RunE: runSelect,
}

func runSelect(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetInt("year")
	limit, _ := cmd.Flags().GetInt("limit")

	matrix, u, err := loadInputs()
	if err != nil {
		return err
	}
	eligible, ok := u[year]
	if !ok {
		return fmt.Errorf("year %d is not in the universe (have %v)", year, universe.Years(u))
	}

	mgr, err := newManager(cfg.StrategyParams())
	if err != nil {
		return err
	}

	res, clean, err := mgr.SelectYear(context.Background(), year, matrix, eligible)
	switch {
	case errors.Is(err, universe.ErrInsufficientSymbols), errors.Is(err, models.ErrInsufficientData):
		fmt.Printf("Year %d skipped: %v\n", year, err)
		return nil
	case err != nil:
		return fmt.Errorf("selection failed: %w", err)
	}

	logger.Info("selection complete",
		zap.Int("year", year),
		zap.Int("symbols", len(clean.Symbols())),
		zap.Int("screened", res.Screened),
		zap.Int("candidates", len(res.Candidates)),
	)

	fmt.Println(formatters.FormatCandidatesTable(year, res.Top(limit)))
	fmt.Printf("%d symbols, %d pairs screened, %d passed\n", len(clean.Symbols()), res.Screened, len(res.Candidates))
	return nil
}
