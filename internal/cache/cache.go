package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/selection"
)

// Cache keeps pair selections and aligned pair series between runs that
// share a universe, such as the points of a threshold sweep
type Cache struct {
	selections *gocache.Cache
	series     *gocache.Cache
	ttl        time.Duration
}

// NewCache creates a new cache instance. A non-positive ttl never expires.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		return &Cache{
			selections: gocache.New(gocache.NoExpiration, 0),
			series:     gocache.New(gocache.NoExpiration, 0),
			ttl:        gocache.NoExpiration,
		}
	}
	return &Cache{
		selections: gocache.New(ttl, ttl*2),
		series:     gocache.New(ttl, ttl*2),
		ttl:        ttl,
	}
}

// SelectionKey fingerprints everything a pair selection depends on
func SelectionKey(year int, matrix *models.PriceMatrix, cfg selection.Config) string {
	h := sha256.New()
	writeFingerprint(h, year, matrix)
	cfg.Workers = 0 // does not affect the result
	fmt.Fprintf(h, "%+v", cfg)
	return hex.EncodeToString(h.Sum(nil))
}

// writeFingerprint identifies a cleaned period matrix. For a given input the
// surviving symbols and the date span fix the forward-filled values.
func writeFingerprint(w io.Writer, year int, matrix *models.PriceMatrix) {
	symbols := append([]string(nil), matrix.Symbols()...)
	sort.Strings(symbols)

	fmt.Fprintf(w, "%d|%d|%s|", year, matrix.Len(), strings.Join(symbols, ","))
	if dates := matrix.Dates(); len(dates) > 0 {
		fmt.Fprintf(w, "%d|%d|", dates[0].Unix(), dates[len(dates)-1].Unix())
	}
}

// GetSelection retrieves a cached selection result
func (c *Cache) GetSelection(key string) (*selection.Result, bool) {
	if val, found := c.selections.Get(key); found {
		if res, ok := val.(*selection.Result); ok {
			return res, true
		}
	}
	return nil, false
}

// SetSelection caches a selection result
func (c *Cache) SetSelection(key string, res *selection.Result) {
	c.selections.Set(key, res, c.ttl)
}

// SeriesKey identifies a pair's aligned prices within a cleaned period matrix
func SeriesKey(year int, matrix *models.PriceMatrix, a, b string) string {
	h := sha256.New()
	writeFingerprint(h, year, matrix)
	fmt.Fprintf(h, "%s/%s", a, b)
	return hex.EncodeToString(h.Sum(nil))
}

// GetSeries retrieves cached aligned pair prices
func (c *Cache) GetSeries(key string) (models.PairSeries, bool) {
	if val, found := c.series.Get(key); found {
		if s, ok := val.(models.PairSeries); ok {
			return s, true
		}
	}
	return models.PairSeries{}, false
}

// SetSeries caches aligned pair prices
func (c *Cache) SetSeries(key string, s models.PairSeries) {
	c.series.Set(key, s, c.ttl)
}

// Clear removes all cached data
func (c *Cache) Clear() {
	c.selections.Flush()
	c.series.Flush()
}

// Stats returns cache statistics
type Stats struct {
	SelectionCount int
	SeriesCount    int
}

// GetStats returns current cache statistics
func (c *Cache) GetStats() Stats {
	return Stats{
		SelectionCount: c.selections.ItemCount(),
		SeriesCount:    c.series.ItemCount(),
	}
}
