package universe

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/TruWeaveTrader/statarb/internal/models"
)

// ErrInsufficientSymbols is returned when too few symbols survive filtering
var ErrInsufficientSymbols = errors.New("insufficient symbols")

// FilterConfig controls which symbols are tradable in a period
type FilterConfig struct {
	MinPeriods int // Minimum non-missing observations per symbol
	MaxFillGap int // Longest gap that may be forward-filled
	MinSymbols int // Minimum surviving symbols for the period to run
}

// Filter restricts the matrix to the eligible symbols that have sufficient
// gap-bounded history
func Filter(matrix *models.PriceMatrix, eligible []string, cfg FilterConfig) (*models.PriceMatrix, error) {
	cleaned := matrix.Restrict(eligible).Clean(cfg.MaxFillGap)

	keep := make([]string, 0, len(cleaned.Symbols()))
	for _, s := range cleaned.Symbols() {
		if cleaned.Observations(s) >= cfg.MinPeriods {
			keep = append(keep, s)
		}
	}

	if len(keep) < cfg.MinSymbols || len(keep) < 2 {
		return nil, fmt.Errorf("%d of %d symbols usable, need %d: %w",
			len(keep), len(eligible), cfg.MinSymbols, ErrInsufficientSymbols)
	}
	return cleaned.Restrict(keep), nil
}

// file is the on-disk layout of a universe definition
type file struct {
	Years map[int][]string `yaml:"years"`
}

// Load reads a YAML universe file of the form
//
//	years:
//	  2015: [ACC, AMBUJACEM, ...]
func Load(path string) (models.Universe, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe: %w", err)
	}
	return Parse(b)
}

// Parse decodes a YAML universe definition
func Parse(b []byte) (models.Universe, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse universe: %w", err)
	}
	if len(f.Years) == 0 {
		return nil, fmt.Errorf("parse universe: no years defined")
	}

	u := make(models.Universe, len(f.Years))
	for year, symbols := range f.Years {
		u[year] = dedupe(symbols)
	}
	return u, nil
}

// Years returns the universe's years in ascending order
func Years(u models.Universe) []int {
	years := make([]int, 0, len(u))
	for y := range u {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
