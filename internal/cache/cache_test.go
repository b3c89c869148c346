package cache

import (
	"testing"
	"time"

	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/selection"
)

func testMatrix(t *testing.T, symbols ...string) *models.PriceMatrix {
	t.Helper()
	dates := []time.Time{
		time.Date(2016, 1, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2016, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	m, err := models.NewPriceMatrix(dates, symbols)
	if err != nil {
		t.Fatalf("NewPriceMatrix() failed: %v", err)
	}
	return m
}

func TestNewCache(t *testing.T) {
	ttl := 100 * time.Millisecond
	cache := NewCache(ttl)

	if cache == nil {
		t.Fatal("NewCache() returned nil")
	}

	if cache.ttl != ttl {
		t.Errorf("Expected TTL=%v, got %v", ttl, cache.ttl)
	}
}

func TestSelectionCaching(t *testing.T) {
	cache := NewCache(0)
	key := SelectionKey(2016, testMatrix(t, "A", "B"), selection.DefaultConfig())

	// Test cache miss
	res, found := cache.GetSelection(key)
	if found {
		t.Error("Expected cache miss, but found selection")
	}
	if res != nil {
		t.Error("Expected nil selection on cache miss")
	}

	cache.SetSelection(key, &selection.Result{
		Candidates: []models.PairCandidate{{SymbolA: "A", SymbolB: "B", PValue: 0.01}},
		Screened:   1,
	})

	// Test cache hit
	cached, found := cache.GetSelection(key)
	if !found {
		t.Fatal("Expected cache hit, but got miss")
	}
	if len(cached.Candidates) != 1 || cached.Candidates[0].Name() != "A-B" {
		t.Errorf("Expected cached candidate A-B, got %+v", cached.Candidates)
	}
}

func TestSelectionKey(t *testing.T) {
	cfg := selection.DefaultConfig()
	base := SelectionKey(2016, testMatrix(t, "A", "B"), cfg)

	if k := SelectionKey(2016, testMatrix(t, "B", "A"), cfg); k != base {
		t.Error("Expected key to ignore symbol order")
	}

	cfg.Workers = 16
	if k := SelectionKey(2016, testMatrix(t, "A", "B"), cfg); k != base {
		t.Error("Expected key to ignore worker count")
	}

	if k := SelectionKey(2017, testMatrix(t, "A", "B"), selection.DefaultConfig()); k == base {
		t.Error("Expected year to change the key")
	}

	other := selection.DefaultConfig()
	other.MaxPValue = 0.01
	if k := SelectionKey(2016, testMatrix(t, "A", "B"), other); k == base {
		t.Error("Expected thresholds to change the key")
	}

	if k := SelectionKey(2016, testMatrix(t, "A", "C"), selection.DefaultConfig()); k == base {
		t.Error("Expected universe to change the key")
	}
}

func TestSeriesCaching(t *testing.T) {
	cache := NewCache(time.Second)
	matrix := testMatrix(t, "A", "B")
	key := SeriesKey(2016, matrix, "A", "B")

	if _, found := cache.GetSeries(key); found {
		t.Error("Expected cache miss, but found series")
	}

	cache.SetSeries(key, models.PairSeries{
		Dates: matrix.Dates(),
		A:     []float64{1, 2},
		B:     []float64{3, 4},
	})

	s, found := cache.GetSeries(key)
	if !found {
		t.Fatal("Expected cache hit, but got miss")
	}
	if s.Len() != 2 {
		t.Errorf("Expected 2 observations, got %d", s.Len())
	}
	if len(s.A) != 2 || len(s.B) != 2 {
		t.Errorf("Expected 2 prices per leg, got %d/%d", len(s.A), len(s.B))
	}
}

func TestSeriesKey(t *testing.T) {
	base := SeriesKey(2016, testMatrix(t, "A", "B", "C"), "A", "B")

	if k := SeriesKey(2016, testMatrix(t, "C", "B", "A"), "A", "B"); k != base {
		t.Error("Expected column order not to change the key")
	}

	// A different fill gap can drop a column and change the cleaned matrix
	if k := SeriesKey(2016, testMatrix(t, "A", "B"), "A", "B"); k == base {
		t.Error("Expected the cleaned universe to change the key")
	}

	if k := SeriesKey(2017, testMatrix(t, "A", "B", "C"), "A", "B"); k == base {
		t.Error("Expected year to change the key")
	}

	if k := SeriesKey(2016, testMatrix(t, "A", "B", "C"), "A", "C"); k == base {
		t.Error("Expected pair to change the key")
	}
}

func TestExpiry(t *testing.T) {
	cache := NewCache(20 * time.Millisecond)
	cache.SetSeries("k", models.PairSeries{})

	time.Sleep(50 * time.Millisecond)

	if _, found := cache.GetSeries("k"); found {
		t.Error("Expected entry to expire")
	}
}

func TestClear(t *testing.T) {
	cache := NewCache(time.Second)

	cache.SetSelection("s", &selection.Result{})
	cache.SetSeries("p", models.PairSeries{})

	// Verify data is there
	_, found1 := cache.GetSelection("s")
	_, found2 := cache.GetSeries("p")
	if !found1 || !found2 {
		t.Fatal("Data should be cached before clear")
	}

	cache.Clear()

	_, found1 = cache.GetSelection("s")
	_, found2 = cache.GetSeries("p")
	if found1 || found2 {
		t.Error("Data should be cleared after Clear()")
	}
}

func TestStats(t *testing.T) {
	cache := NewCache(time.Second)

	// Initially empty
	stats := cache.GetStats()
	if stats.SelectionCount != 0 || stats.SeriesCount != 0 {
		t.Error("Expected empty cache stats")
	}

	cache.SetSelection("a", &selection.Result{})
	cache.SetSeries("x", models.PairSeries{})
	cache.SetSeries("y", models.PairSeries{})

	stats = cache.GetStats()
	if stats.SelectionCount != 1 {
		t.Errorf("Expected 1 selection, got %d", stats.SelectionCount)
	}
	if stats.SeriesCount != 2 {
		t.Errorf("Expected 2 series, got %d", stats.SeriesCount)
	}
}
