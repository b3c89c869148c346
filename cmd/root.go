package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TruWeaveTrader/statarb/internal/cache"
	"github.com/TruWeaveTrader/statarb/internal/config"
	"github.com/TruWeaveTrader/statarb/internal/logging"
	"github.com/TruWeaveTrader/statarb/internal/marketdata"
	"github.com/TruWeaveTrader/statarb/internal/metrics"
	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/runner"
	"github.com/TruWeaveTrader/statarb/internal/selection"
	"github.com/TruWeaveTrader/statarb/internal/strategy"
	"github.com/TruWeaveTrader/statarb/internal/universe"
)

var (
	// Global instances
	cfg       *config.Config
	dataCache *cache.Cache
	recorder  *metrics.Recorder
	selector  *selection.Selector
	logger    *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "statarb",
	Short: "Cointegration pairs-trading backtester",
	Long: `statarb selects cointegrated stock pairs year by year, trades their
spread on z-score thresholds with costs and a stop-loss, and stitches
the yearly portfolios into one continuous P&L curve.`,
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default is ./statarb.yaml when present)")
	pf.Bool("verbose", false, "verbose output")
	pf.String("prices", "", "price CSV file or directory of CSV files")
	pf.String("universe", "", "YAML file mapping year to eligible symbols")
	pf.String("output", "results", "directory for CSV outputs and the run manifest")
	pf.String("db", "", "SQLite database for run history (disabled when empty)")
	pf.String("metrics-file", "", "write Prometheus metrics in textfile format here")
	pf.String("log-file", "", "also write JSON logs to this rotating file")
	pf.Int("workers", 4, "concurrent pair backtests")
}

// initConfig sets up the console logger before configuration is read.
func initConfig() {
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")

	var err error
	logger, err = logging.New(logging.Options{Debug: verbose || logging.DebugFromEnv()})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
}

// initializeApp sets up all dependencies
func initializeApp(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	// Load configuration
	var err error
	cfg, err = config.Load(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.LogFile != "" {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger, err = logging.New(logging.Options{Debug: verbose || logging.DebugFromEnv(), File: cfg.LogFile})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	// Initialize components
	dataCache = cache.NewCache(cfg.CacheTTL)
	recorder = metrics.NewRecorder()
	selector = selection.NewSelector(cfg.SelectionConfig(), logger)

	logger.Debug("configuration loaded",
		zap.String("prices", cfg.PricesPath),
		zap.String("universe", cfg.UniversePath),
		zap.Float64("entry_z", cfg.Strategy.EntryZ),
		zap.Float64("exit_z", cfg.Strategy.ExitZ),
		zap.Int("top_n", cfg.Run.TopN),
	)
	return nil
}

// newManager wires a runner around the shared selector and cache
func newManager(params strategy.Params) (*runner.Manager, error) {
	backtester, err := strategy.NewBacktester(params, logger)
	if err != nil {
		return nil, err
	}
	return runner.NewManager(selector, backtester, dataCache, recorder, cfg.RunOptions(), logger), nil
}

// loadInputs reads the price matrix and the universe
func loadInputs() (*models.PriceMatrix, models.Universe, error) {
	if cfg.PricesPath == "" || cfg.UniversePath == "" {
		return nil, nil, errors.New("--prices and --universe are required")
	}

	matrix, err := marketdata.NewLoader(logger).LoadPath(cfg.PricesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load prices: %w", err)
	}
	u, err := universe.Load(cfg.UniversePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load universe: %w", err)
	}

	logger.Info("inputs loaded",
		zap.Int("days", matrix.Len()),
		zap.Int("symbols", len(matrix.Symbols())),
		zap.Int("years", len(u)),
	)
	return matrix, u, nil
}

// writeMetrics dumps the run counters when a textfile path is configured
func writeMetrics() {
	if cfg.MetricsFile == "" {
		return
	}
	if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Warn("failed to write metrics", zap.String("path", cfg.MetricsFile), zap.Error(err))
	}
}
