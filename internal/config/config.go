package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/TruWeaveTrader/statarb/internal/runner"
	"github.com/TruWeaveTrader/statarb/internal/selection"
	"github.com/TruWeaveTrader/statarb/internal/strategy"
)

// EnvPrefix prefixes every environment override, e.g. STATARB_STRATEGY_ENTRY_Z
const EnvPrefix = "STATARB"

// Config holds all application configuration
type Config struct {
	// Inputs and outputs
	PricesPath   string `mapstructure:"prices"`
	UniversePath string `mapstructure:"universe"`
	OutputDir    string `mapstructure:"output_dir" validate:"required"`
	DatabasePath string `mapstructure:"database"`     // Empty disables SQLite
	MetricsFile  string `mapstructure:"metrics_file"` // Empty disables the textfile dump
	LogFile      string `mapstructure:"log_file"`     // Empty logs to stderr only

	// Performance
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	Selection SelectionConfig `mapstructure:"selection"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Run       RunConfig       `mapstructure:"run"`
}

// SelectionConfig holds the pair screening thresholds
type SelectionConfig struct {
	MinCorrelation float64 `mapstructure:"min_correlation" validate:"gte=0,lte=1"`
	MaxPValue      float64 `mapstructure:"max_pvalue" validate:"gt=0,lte=1"`
	MinPeriods     int     `mapstructure:"min_periods" validate:"gte=30"`
	MinBeta        float64 `mapstructure:"min_beta" validate:"gt=0"`
	MaxBeta        float64 `mapstructure:"max_beta" validate:"gtfield=MinBeta"`
	MinHalfLife    float64 `mapstructure:"min_half_life" validate:"gt=0"`
	MaxHalfLife    float64 `mapstructure:"max_half_life" validate:"gtfield=MinHalfLife"`
	Workers        int     `mapstructure:"workers" validate:"gte=1"`
}

// StrategyConfig holds the trading parameters
type StrategyConfig struct {
	EntryZ      float64 `mapstructure:"entry_z" validate:"gtfield=ExitZ"`
	ExitZ       float64 `mapstructure:"exit_z" validate:"gte=0"`
	Window      int     `mapstructure:"window" validate:"gte=2"`
	Mode        string  `mapstructure:"mode" validate:"oneof=rolling static"`
	CostRate    float64 `mapstructure:"cost_rate" validate:"gte=0,lt=1"`
	BookSize    float64 `mapstructure:"book_size" validate:"gt=0"`
	StopLossPct float64 `mapstructure:"stop_loss_pct" validate:"gt=0,lte=1"`
}

// RunConfig holds the year loop settings
type RunConfig struct {
	TopN       int `mapstructure:"top_n" validate:"gte=1"`
	MinSymbols int `mapstructure:"min_symbols" validate:"gte=2"`
	MaxFillGap int `mapstructure:"max_fill_gap" validate:"gte=0"`
	Workers    int `mapstructure:"workers" validate:"gte=1"`
}

// flagKeys maps command-line flags onto configuration keys
var flagKeys = map[string]string{
	"prices":       "prices",
	"universe":     "universe",
	"output":       "output_dir",
	"db":           "database",
	"metrics-file": "metrics_file",
	"log-file":     "log_file",
	"entry-z":      "strategy.entry_z",
	"exit-z":       "strategy.exit_z",
	"zscore-mode":  "strategy.mode",
	"window":       "strategy.window",
	"top-n":        "run.top_n",
	"min-symbols":  "run.min_symbols",
	"workers":      "run.workers",
}

func setDefaults(v *viper.Viper) {
	sel := selection.DefaultConfig()
	params := strategy.DefaultParams()
	opts := runner.DefaultOptions()

	v.SetDefault("prices", "")
	v.SetDefault("universe", "")
	v.SetDefault("output_dir", "results")
	v.SetDefault("database", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("log_file", "")
	v.SetDefault("cache_ttl", "0s")

	v.SetDefault("selection.min_correlation", sel.MinCorrelation)
	v.SetDefault("selection.max_pvalue", sel.MaxPValue)
	v.SetDefault("selection.min_periods", sel.MinPeriods)
	v.SetDefault("selection.min_beta", sel.MinBeta)
	v.SetDefault("selection.max_beta", sel.MaxBeta)
	v.SetDefault("selection.min_half_life", sel.MinHalfLife)
	v.SetDefault("selection.max_half_life", sel.MaxHalfLife)
	v.SetDefault("selection.workers", sel.Workers)

	v.SetDefault("strategy.entry_z", params.EntryZ)
	v.SetDefault("strategy.exit_z", params.ExitZ)
	v.SetDefault("strategy.window", params.Window)
	v.SetDefault("strategy.mode", string(params.Mode))
	v.SetDefault("strategy.cost_rate", params.CostRate)
	v.SetDefault("strategy.book_size", params.BookSize)
	v.SetDefault("strategy.stop_loss_pct", params.StopLossPct)

	v.SetDefault("run.top_n", opts.TopN)
	v.SetDefault("run.min_symbols", opts.MinSymbols)
	v.SetDefault("run.max_fill_gap", opts.MaxFillGap)
	v.SetDefault("run.workers", opts.Workers)
}

// Load reads configuration from defaults, an optional config file, a .env
// file, STATARB_* environment variables and finally any changed flags.
// Without an explicit path, ./statarb.{yaml,toml,json} is used when present.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("statarb")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field constraint
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// SelectionConfig returns the pair screening thresholds
func (c *Config) SelectionConfig() selection.Config {
	return selection.Config{
		MinCorrelation: c.Selection.MinCorrelation,
		MaxPValue:      c.Selection.MaxPValue,
		MinPeriods:     c.Selection.MinPeriods,
		MinBeta:        c.Selection.MinBeta,
		MaxBeta:        c.Selection.MaxBeta,
		MinHalfLife:    c.Selection.MinHalfLife,
		MaxHalfLife:    c.Selection.MaxHalfLife,
		Workers:        c.Selection.Workers,
	}
}

// StrategyParams returns the backtest parameters
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{
		Thresholds:  strategy.Thresholds{EntryZ: c.Strategy.EntryZ, ExitZ: c.Strategy.ExitZ},
		Window:      c.Strategy.Window,
		Mode:        strategy.ZScoreMode(c.Strategy.Mode),
		CostRate:    c.Strategy.CostRate,
		BookSize:    c.Strategy.BookSize,
		StopLossPct: c.Strategy.StopLossPct,
	}
}

// RunOptions returns the year loop settings
func (c *Config) RunOptions() runner.Options {
	return runner.Options{
		TopN:       c.Run.TopN,
		MinSymbols: c.Run.MinSymbols,
		MaxFillGap: c.Run.MaxFillGap,
		Workers:    c.Run.Workers,
	}
}
