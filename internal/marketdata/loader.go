// Package marketdata loads daily close prices from CSV files into a
// PriceMatrix. Two layouts are accepted: long (date,symbol,close) and wide
// (date followed by one column per symbol).
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TruWeaveTrader/statarb/internal/models"
)

var (
	// ErrBadHeader is returned when a file's header is not a known layout
	ErrBadHeader = errors.New("unrecognised price file header")
	// ErrNoRows is returned when no usable observation was read
	ErrNoRows = errors.New("no price observations")
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "02/01/2006"}

// Observation is one close price
type Observation struct {
	Date   time.Time
	Symbol string
	Close  float64
}

// Loader reads price files
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger.With(zap.String("component", "marketdata"))}
}

// LoadPath loads a single CSV file or every *.csv file in a directory
func (l *Loader) LoadPath(path string) (*models.PriceMatrix, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return l.LoadFiles(path)
	}

	files, err := filepath.Glob(filepath.Join(path, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoRows)
	}
	return l.LoadFiles(files...)
}

// LoadFiles concatenates the files in order. For a repeated (date, symbol)
// the first value read wins.
func (l *Loader) LoadFiles(paths ...string) (*models.PriceMatrix, error) {
	var all []Observation
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		obs, err := ReadObservations(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		l.logger.Debug("price file loaded", zap.String("path", p), zap.Int("observations", len(obs)))
		all = append(all, obs...)
	}

	m, err := BuildMatrix(all)
	if err != nil {
		return nil, err
	}
	l.logger.Info("price matrix built",
		zap.Int("files", len(paths)),
		zap.Int("dates", m.Len()),
		zap.Int("symbols", len(m.Symbols())),
	)
	return m, nil
}

// ReadObservations parses one CSV stream. Blank or non-positive closes are
// skipped and left missing.
func ReadObservations(r io.Reader) ([]Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoRows
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	if len(header) < 2 || !strings.EqualFold(header[0], "date") {
		return nil, ErrBadHeader
	}

	long := len(header) == 3 && strings.EqualFold(header[1], "symbol") && strings.EqualFold(header[2], "close")

	var obs []Observation
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(header), len(rec))
		}

		date, err := parseDate(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if long {
			px, ok, err := parseClose(rec[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if ok {
				obs = append(obs, Observation{Date: date, Symbol: strings.TrimSpace(rec[1]), Close: px})
			}
			continue
		}

		for j := 1; j < len(rec); j++ {
			px, ok, err := parseClose(rec[j])
			if err != nil {
				return nil, fmt.Errorf("line %d, %s: %w", line, header[j], err)
			}
			if ok {
				obs = append(obs, Observation{Date: date, Symbol: header[j], Close: px})
			}
		}
	}
	return obs, nil
}

// BuildMatrix pivots observations into a date x symbol matrix
func BuildMatrix(obs []Observation) (*models.PriceMatrix, error) {
	if len(obs) == 0 {
		return nil, ErrNoRows
	}

	dateSet := make(map[int64]time.Time)
	symSet := make(map[string]struct{})
	for _, o := range obs {
		dateSet[o.Date.Unix()] = o.Date
		symSet[o.Symbol] = struct{}{}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	symbols := make([]string, 0, len(symSet))
	for s := range symSet {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	m, err := models.NewPriceMatrix(dates, symbols)
	if err != nil {
		return nil, err
	}

	row := make(map[int64]int, len(dates))
	for i, d := range dates {
		row[d.Unix()] = i
	}
	type cell struct {
		date   int64
		symbol string
	}
	filled := make(map[cell]bool, len(obs))
	for _, o := range obs {
		k := cell{o.Date.Unix(), o.Symbol}
		if filled[k] {
			continue
		}
		filled[k] = true
		if err := m.Set(row[k.date], o.Symbol, o.Close); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseClose(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("bad close %q", s)
	}
	if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false, nil
	}
	return v, true, nil
}
