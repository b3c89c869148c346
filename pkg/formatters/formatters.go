package formatters

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/TruWeaveTrader/statarb/internal/aggregate"
	"github.com/TruWeaveTrader/statarb/internal/models"
	"github.com/TruWeaveTrader/statarb/internal/runner"
)

// Colors for different values
var (
	ColorGreen  = text.FgGreen
	ColorRed    = text.FgRed
	ColorYellow = text.FgYellow
	ColorGray   = text.FgHiBlack
)

const dateLayout = "2006-01-02"

// FormatDollarAmount formats a P&L amount, rounded to cents, with color
func FormatDollarAmount(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	amountStr := "$" + d.Abs().StringFixed(2)

	if d.IsNegative() {
		return ColorRed.Sprint("-" + amountStr)
	}
	if d.IsZero() {
		return amountStr
	}
	return ColorGreen.Sprint(amountStr)
}

// FormatPercent formats a percentage with sign and color. NaN prints as n/a.
func FormatPercent(percent float64) string {
	if math.IsNaN(percent) {
		return ColorGray.Sprint("n/a")
	}
	sign := ""
	if percent > 0 {
		sign = "+"
	}

	percentStr := fmt.Sprintf("%s%.2f%%", sign, percent)

	if percent > 0 {
		return ColorGreen.Sprint(percentStr)
	} else if percent < 0 {
		return ColorRed.Sprint(percentStr)
	}
	return percentStr
}

// FormatRatio formats a Sharpe-style ratio
func FormatRatio(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ColorGray.Sprint("n/a")
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatCandidatesTable renders ranked pair candidates
func FormatCandidatesTable(year int, candidates []models.PairCandidate) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Cointegrated pairs %d", year))

	t.AppendHeader(table.Row{
		"#", "Pair", "p-value", "ADF", "Beta", "Half-life", "Corr", "Obs"})

	for i, c := range candidates {
		t.AppendRow(table.Row{
			i + 1,
			text.Bold.Sprint(c.Name()),
			fmt.Sprintf("%.4f", c.PValue),
			fmt.Sprintf("%.3f", c.ADFStat),
			fmt.Sprintf("%.3f", c.Beta),
			fmt.Sprintf("%.1fd", c.HalfLife),
			fmt.Sprintf("%.2f", c.Correlation),
			c.Observations,
		})
	}

	if len(candidates) == 0 {
		t.AppendRow(table.Row{"", "No pairs", "", "", "", "", "", ""})
	}

	return t.Render()
}

// FormatYearsTable renders one line per processed year
func FormatYearsTable(years []*runner.YearResult) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Year", "Symbols", "Pairs", "Trades", "Stops", "P&L", "Status"})

	total := 0.0
	for _, yr := range years {
		if yr.Skipped() {
			t.AppendRow(table.Row{yr.Year, yr.Symbols, "", "", "", "", ColorYellow.Sprint("skipped: " + yr.SkipReason)})
			continue
		}

		trades, stops := 0, 0
		names := make([]string, 0, len(yr.Pairs))
		for _, p := range yr.Pairs {
			trades += p.Trades
			if p.StopTriggered() {
				stops++
			}
			names = append(names, p.Candidate.Name())
		}
		pnl := yr.Portfolio.FinalPnL()
		total += pnl

		t.AppendRow(table.Row{
			yr.Year,
			yr.Symbols,
			strings.Join(names, ", "),
			trades,
			stops,
			FormatDollarAmount(pnl),
			ColorGreen.Sprint("ok"),
		})
	}

	// Footer
	t.AppendSeparator()
	t.AppendRow(table.Row{"TOTAL", "", "", "", "", FormatDollarAmount(total), ""})

	return t.Render()
}

// FormatPerformance renders a performance summary
func FormatPerformance(title string, p aggregate.Performance) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}

	t.AppendRow(table.Row{"Period", fmt.Sprintf("%s to %s", FormatDate(p.Start), FormatDate(p.End))})
	t.AppendRow(table.Row{"Trading Days", p.Days})
	t.AppendRow(table.Row{"Capital", "$" + decimal.NewFromFloat(p.Capital).StringFixed(2)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Total P&L", FormatDollarAmount(p.TotalPnL)})
	t.AppendRow(table.Row{"Total Return", FormatPercent(p.TotalReturnPct)})
	t.AppendRow(table.Row{"Annualized Return", FormatPercent(p.AnnualizedReturnPct)})
	t.AppendRow(table.Row{"Sharpe Ratio", FormatRatio(p.Sharpe)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Max Drawdown", FormatDollarAmount(-p.MaxDrawdown)})
	t.AppendRow(table.Row{"Max Drawdown %", FormatPercent(-p.MaxDrawdownPct)})

	return t.Render()
}

// SweepRow is one threshold combination of a parameter sweep
type SweepRow struct {
	EntryZ      float64
	ExitZ       float64
	Trades      int
	Performance aggregate.Performance
	Err         error
}

// FormatSweepTable renders sweep results in the order given
func FormatSweepTable(rows []SweepRow) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Entry Z", "Exit Z", "Trades", "Total P&L", "Return", "Sharpe", "Max DD"})

	for _, r := range rows {
		if r.Err != nil {
			t.AppendRow(table.Row{
				fmt.Sprintf("%.2f", r.EntryZ), fmt.Sprintf("%.2f", r.ExitZ),
				"", ColorRed.Sprint(r.Err.Error()), "", "", "",
			})
			continue
		}
		p := r.Performance
		t.AppendRow(table.Row{
			fmt.Sprintf("%.2f", r.EntryZ),
			fmt.Sprintf("%.2f", r.ExitZ),
			r.Trades,
			FormatDollarAmount(p.TotalPnL),
			FormatPercent(p.TotalReturnPct),
			FormatRatio(p.Sharpe),
			FormatDollarAmount(-p.MaxDrawdown),
		})
	}

	if len(rows) == 0 {
		t.AppendRow(table.Row{"No results", "", "", "", "", "", ""})
	}

	return t.Render()
}

// FormatDate formats a trading date for display
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}
