package universe

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TruWeaveTrader/statarb/internal/models"
)

func testMatrix(t *testing.T) *models.PriceMatrix {
	t.Helper()
	dates := make([]time.Time, 20)
	for i := range dates {
		dates[i] = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	m, err := models.NewPriceMatrix(dates, []string{"A", "B", "C", "GAPPY"})
	if err != nil {
		t.Fatalf("NewPriceMatrix() failed: %v", err)
	}
	for i := range dates {
		m.Set(i, "A", 100+float64(i))
		m.Set(i, "B", 50+float64(i))
		m.Set(i, "C", 10+float64(i))
		if i < 5 || i > 12 {
			m.Set(i, "GAPPY", 1)
		} else {
			m.Set(i, "GAPPY", math.NaN())
		}
	}
	return m
}

func TestFilter(t *testing.T) {
	m := testMatrix(t)

	out, err := Filter(m, []string{"A", "B", "GAPPY", "UNLISTED"}, FilterConfig{MinPeriods: 10, MaxFillGap: 5, MinSymbols: 2})
	if err != nil {
		t.Fatalf("Filter() failed: %v", err)
	}

	syms := out.Symbols()
	if len(syms) != 2 || syms[0] != "A" || syms[1] != "B" {
		t.Errorf("Expected [A B], got %v", syms)
	}
}

func TestFilterInsufficientSymbols(t *testing.T) {
	m := testMatrix(t)

	_, err := Filter(m, []string{"A", "B", "C"}, FilterConfig{MinPeriods: 10, MaxFillGap: 5, MinSymbols: 20})
	if !errors.Is(err, ErrInsufficientSymbols) {
		t.Errorf("Expected ErrInsufficientSymbols, got %v", err)
	}

	_, err = Filter(m, []string{"A", "B"}, FilterConfig{MinPeriods: 100, MaxFillGap: 5, MinSymbols: 1})
	if !errors.Is(err, ErrInsufficientSymbols) {
		t.Errorf("Expected ErrInsufficientSymbols for short history, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.yaml")
	content := "years:\n  2016: [ACC, INFY, ACC]\n  2015:\n    - TCS\n    - WIPRO\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	u, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	years := Years(u)
	if len(years) != 2 || years[0] != 2015 || years[1] != 2016 {
		t.Errorf("Expected years [2015 2016], got %v", years)
	}
	if got := u[2016]; len(got) != 2 || got[0] != "ACC" || got[1] != "INFY" {
		t.Errorf("Expected deduplicated [ACC INFY], got %v", got)
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse([]byte("years: {}\n")); err == nil {
		t.Error("Expected error for empty universe")
	}
}
