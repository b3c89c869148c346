package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInsufficientData is returned when a series has too few aligned observations
var ErrInsufficientData = errors.New("insufficient data")

// PriceMatrix holds closing prices indexed by date and symbol. Missing
// observations are NaN. Dates are strictly increasing.
type PriceMatrix struct {
	dates   []time.Time
	symbols []string
	index   map[string]int
	closes  [][]float64 // closes[symbol][date]
}

// NewPriceMatrix creates an all-missing matrix
func NewPriceMatrix(dates []time.Time, symbols []string) (*PriceMatrix, error) {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("dates not strictly increasing at %s", dates[i].Format(time.DateOnly))
		}
	}

	m := &PriceMatrix{
		dates:   append([]time.Time(nil), dates...),
		symbols: make([]string, 0, len(symbols)),
		index:   make(map[string]int, len(symbols)),
	}
	for _, s := range symbols {
		if _, dup := m.index[s]; dup {
			return nil, fmt.Errorf("duplicate symbol %s", s)
		}
		m.index[s] = len(m.symbols)
		m.symbols = append(m.symbols, s)
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		m.closes = append(m.closes, col)
	}
	return m, nil
}

// Set stores a close for a date index and symbol
func (m *PriceMatrix) Set(dateIdx int, symbol string, price float64) error {
	j, ok := m.index[symbol]
	if !ok {
		return fmt.Errorf("unknown symbol %s", symbol)
	}
	if dateIdx < 0 || dateIdx >= len(m.dates) {
		return fmt.Errorf("date index %d out of range", dateIdx)
	}
	m.closes[j][dateIdx] = price
	return nil
}

// Dates returns the date index
func (m *PriceMatrix) Dates() []time.Time { return m.dates }

// Symbols returns the column names in matrix order
func (m *PriceMatrix) Symbols() []string { return m.symbols }

// Len returns the number of dates
func (m *PriceMatrix) Len() int { return len(m.dates) }

// Has reports whether the symbol is a column
func (m *PriceMatrix) Has(symbol string) bool {
	_, ok := m.index[symbol]
	return ok
}

// Column returns the price column of a symbol. The slice must not be modified.
func (m *PriceMatrix) Column(symbol string) ([]float64, bool) {
	j, ok := m.index[symbol]
	if !ok {
		return nil, false
	}
	return m.closes[j], true
}

// Observations counts the non-missing values of a symbol
func (m *PriceMatrix) Observations(symbol string) int {
	col, ok := m.Column(symbol)
	if !ok {
		return 0
	}
	n := 0
	for _, v := range col {
		if !IsMissing(v) {
			n++
		}
	}
	return n
}

// Years returns the distinct calendar years covered, ascending
func (m *PriceMatrix) Years() []int {
	seen := make(map[int]bool)
	years := make([]int, 0)
	for _, d := range m.dates {
		if !seen[d.Year()] {
			seen[d.Year()] = true
			years = append(years, d.Year())
		}
	}
	sort.Ints(years)
	return years
}

// Between returns the rows with from <= date < to
func (m *PriceMatrix) Between(from, to time.Time) *PriceMatrix {
	lo := sort.Search(len(m.dates), func(i int) bool { return !m.dates[i].Before(from) })
	hi := sort.Search(len(m.dates), func(i int) bool { return !m.dates[i].Before(to) })
	if hi < lo {
		hi = lo
	}

	sub := &PriceMatrix{
		dates:   m.dates[lo:hi],
		symbols: m.symbols,
		index:   m.index,
		closes:  make([][]float64, len(m.closes)),
	}
	for j := range m.closes {
		sub.closes[j] = m.closes[j][lo:hi]
	}
	return sub
}

// Year returns the rows that fall in a calendar year
func (m *PriceMatrix) Year(year int) *PriceMatrix {
	loc := time.UTC
	if len(m.dates) > 0 {
		loc = m.dates[0].Location()
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return m.Between(from, from.AddDate(1, 0, 0))
}

// Restrict returns a view with only the given symbols that exist, in the
// given order. Unknown symbols are skipped.
func (m *PriceMatrix) Restrict(symbols []string) *PriceMatrix {
	sub := &PriceMatrix{
		dates: m.dates,
		index: make(map[string]int, len(symbols)),
	}
	for _, s := range symbols {
		j, ok := m.index[s]
		if !ok {
			continue
		}
		if _, dup := sub.index[s]; dup {
			continue
		}
		sub.index[s] = len(sub.symbols)
		sub.symbols = append(sub.symbols, s)
		sub.closes = append(sub.closes, m.closes[j])
	}
	return sub
}

// Clean forward-fills gaps of at most maxGap consecutive missing values and
// drops every column that still has a missing value afterwards. The receiver
// is not modified.
func (m *PriceMatrix) Clean(maxGap int) *PriceMatrix {
	out := &PriceMatrix{
		dates: m.dates,
		index: make(map[string]int, len(m.symbols)),
	}

	for j, s := range m.symbols {
		col, ok := forwardFill(m.closes[j], maxGap)
		if !ok {
			continue
		}
		out.index[s] = len(out.symbols)
		out.symbols = append(out.symbols, s)
		out.closes = append(out.closes, col)
	}
	return out
}

func forwardFill(col []float64, maxGap int) ([]float64, bool) {
	filled := make([]float64, len(col))
	last := math.NaN()
	gap := 0
	for i, v := range col {
		if !IsMissing(v) {
			filled[i] = v
			last = v
			gap = 0
			continue
		}
		gap++
		if IsMissing(last) || gap > maxGap {
			return nil, false
		}
		filled[i] = last
	}
	return filled, true
}

// PairSeries is two price series aligned on dates where both are present
type PairSeries struct {
	Dates []time.Time
	A     []float64
	B     []float64
}

// Len returns the number of aligned observations
func (p PairSeries) Len() int { return len(p.Dates) }

// Pair aligns two columns, dropping dates where either price is missing
func (m *PriceMatrix) Pair(a, b string) (PairSeries, error) {
	colA, ok := m.Column(a)
	if !ok {
		return PairSeries{}, fmt.Errorf("symbol %s: %w", a, ErrInsufficientData)
	}
	colB, ok := m.Column(b)
	if !ok {
		return PairSeries{}, fmt.Errorf("symbol %s: %w", b, ErrInsufficientData)
	}

	ps := PairSeries{
		Dates: make([]time.Time, 0, len(m.dates)),
		A:     make([]float64, 0, len(m.dates)),
		B:     make([]float64, 0, len(m.dates)),
	}
	for i, d := range m.dates {
		if IsMissing(colA[i]) || IsMissing(colB[i]) {
			continue
		}
		ps.Dates = append(ps.Dates, d)
		ps.A = append(ps.A, colA[i])
		ps.B = append(ps.B, colB[i])
	}
	return ps, nil
}
