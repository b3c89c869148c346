// Package aggregate folds per-pair results into yearly and multi-year
// portfolio curves and summarises their performance.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/TruWeaveTrader/statarb/internal/models"
)

// Yearly outer-joins the daily P&L of a year's pairs on date. Days on which
// a pair has no record count as zero for that pair.
func Yearly(year int, results []*models.PairResult) *models.YearlyPortfolio {
	portfolio := &models.YearlyPortfolio{
		Year:  year,
		Pairs: make([]string, len(results)),
		Rows:  make([]models.YearlyRow, 0),
	}

	byPair := make([]map[int64]float64, len(results))
	seen := make(map[int64]struct{})
	var dates []time.Time
	for i, res := range results {
		portfolio.Pairs[i] = res.Candidate.Name()
		byPair[i] = make(map[int64]float64, len(res.Records))
		for _, r := range res.Records {
			key := r.Date.UnixNano()
			byPair[i][key] += r.DailyPnL
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				dates = append(dates, r.Date)
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	cumulative := 0.0
	for _, d := range dates {
		row := models.YearlyRow{Date: d, PairPnL: make([]float64, len(results))}
		for i := range results {
			row.PairPnL[i] = byPair[i][d.UnixNano()]
			row.YearlyPnL += row.PairPnL[i]
		}
		cumulative += row.YearlyPnL
		row.CumulativePnL = cumulative
		portfolio.Rows = append(portfolio.Rows, row)
	}
	return portfolio
}

// Fold concatenates yearly portfolios into one continuous curve. Each year's
// cumulative series is offset by the previous year's closing value.
type Fold struct {
	carry    float64
	lastYear int
	started  bool
	rows     []models.ContinuousRow
}

// NewFold creates an empty fold
func NewFold() *Fold {
	return &Fold{rows: make([]models.ContinuousRow, 0)}
}

// Carry returns the closing cumulative P&L so far
func (f *Fold) Carry() float64 {
	return f.carry
}

// Add appends a year. Years must arrive in strictly increasing order.
func (f *Fold) Add(y *models.YearlyPortfolio) error {
	if f.started && y.Year <= f.lastYear {
		return fmt.Errorf("year %d added after %d", y.Year, f.lastYear)
	}
	f.started = true
	f.lastYear = y.Year

	if len(y.Rows) == 0 {
		return nil
	}
	for _, r := range y.Rows {
		f.rows = append(f.rows, models.ContinuousRow{
			Date:          r.Date,
			YearlyPnL:     r.YearlyPnL,
			CumulativePnL: r.CumulativePnL + f.carry,
			Year:          y.Year,
		})
	}
	f.carry = f.rows[len(f.rows)-1].CumulativePnL
	return nil
}

// Portfolio returns the continuous curve built so far
func (f *Fold) Portfolio() *models.ContinuousPortfolio {
	rows := make([]models.ContinuousRow, len(f.rows))
	copy(rows, f.rows)
	return &models.ContinuousPortfolio{Rows: rows}
}

// Continuous folds the given years in order
func Continuous(years []*models.YearlyPortfolio) (*models.ContinuousPortfolio, error) {
	f := NewFold()
	for _, y := range years {
		if err := f.Add(y); err != nil {
			return nil, err
		}
	}
	return f.Portfolio(), nil
}
