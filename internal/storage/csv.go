package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/TruWeaveTrader/statarb/internal/models"
)

const dateLayout = "2006-01-02"

// ContinuousFile is the name of the multi-year curve
const ContinuousFile = "final_portfolio_pnl.csv"

var pairHeader = []string{
	"date", "price_a", "price_b", "spread", "zscore", "position",
	"quantity_a", "quantity_b", "daily_pnl", "cumulative_pnl", "bh_pnl_a", "bh_pnl_b",
}

// PairFile names the per-pair table of a year
func PairFile(year int, a, b string) string {
	return fmt.Sprintf("%d_%s_%s.csv", year, a, b)
}

// YearlyFile names a year's portfolio table
func YearlyFile(year int) string {
	return fmt.Sprintf("%d_yearly_pnl.csv", year)
}

// CSVWriter writes result tables into a directory
type CSVWriter struct {
	dir string
}

// NewCSVWriter creates the output directory if needed
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CSVWriter{dir: dir}, nil
}

// Dir returns the output directory
func (w *CSVWriter) Dir() string {
	return w.dir
}

// WritePair writes one pair backtest
func (w *CSVWriter) WritePair(res *models.PairResult) error {
	rows := make([][]string, 0, len(res.Records))
	for _, r := range res.Records {
		rows = append(rows, []string{
			r.Date.Format(dateLayout),
			formatFloat(r.PriceA),
			formatFloat(r.PriceB),
			formatFloat(r.Spread),
			formatFloat(r.ZScore),
			strconv.Itoa(int(r.Position)),
			formatFloat(r.QuantityA),
			formatFloat(r.QuantityB),
			formatFloat(r.DailyPnL),
			formatFloat(r.CumulativePnL),
			formatFloat(r.BenchmarkA),
			formatFloat(r.BenchmarkB),
		})
	}
	name := PairFile(res.Year, res.Candidate.SymbolA, res.Candidate.SymbolB)
	return w.write(name, pairHeader, rows)
}

// WriteYearly writes a year's merged portfolio with one column per pair
func (w *CSVWriter) WriteYearly(y *models.YearlyPortfolio) error {
	header := []string{"date"}
	for _, p := range y.Pairs {
		header = append(header, "pnl_"+p)
	}
	header = append(header, "yearly_pnl", "cumulative_pnl", "year")

	year := strconv.Itoa(y.Year)
	rows := make([][]string, 0, len(y.Rows))
	for _, r := range y.Rows {
		row := []string{r.Date.Format(dateLayout)}
		for _, v := range r.PairPnL {
			row = append(row, formatFloat(v))
		}
		row = append(row, formatFloat(r.YearlyPnL), formatFloat(r.CumulativePnL), year)
		rows = append(rows, row)
	}
	return w.write(YearlyFile(y.Year), header, rows)
}

// WriteContinuous writes the multi-year curve
func (w *CSVWriter) WriteContinuous(c *models.ContinuousPortfolio) error {
	header := []string{"date", "yearly_pnl", "cumulative_pnl", "year"}
	rows := make([][]string, 0, len(c.Rows))
	for _, r := range c.Rows {
		rows = append(rows, []string{
			r.Date.Format(dateLayout),
			formatFloat(r.YearlyPnL),
			formatFloat(r.CumulativePnL),
			strconv.Itoa(r.Year),
		})
	}
	return w.write(ContinuousFile, header, rows)
}

func (w *CSVWriter) write(name string, header []string, rows [][]string) error {
	f, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

// ReadContinuous reads a continuous curve written by WriteContinuous
func ReadContinuous(path string) (*models.ContinuousPortfolio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	for _, need := range []string{"date", "yearly_pnl", "cumulative_pnl", "year"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, need)
		}
	}

	c := &models.ContinuousPortfolio{Rows: make([]models.ContinuousRow, 0)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		d, err := time.Parse(dateLayout, rec[col["date"]])
		if err != nil {
			return nil, err
		}
		yearly, err := parseFloat(rec[col["yearly_pnl"]])
		if err != nil {
			return nil, err
		}
		cum, err := parseFloat(rec[col["cumulative_pnl"]])
		if err != nil {
			return nil, err
		}
		year, err := strconv.Atoi(rec[col["year"]])
		if err != nil {
			return nil, err
		}
		c.Rows = append(c.Rows, models.ContinuousRow{Date: d, YearlyPnL: yearly, CumulativePnL: cum, Year: year})
	}
	return c, nil
}

// formatFloat writes NaN as an empty cell
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
