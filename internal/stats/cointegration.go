package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// EngleGrangerResult holds the two-step cointegration test of y on x
type EngleGrangerResult struct {
	Alpha     float64
	Beta      float64
	ADFStat   float64
	PValue    float64
	UsedLag   int
	Residuals []float64
}

// EngleGranger regresses y on x with an intercept and runs an ADF test on the
// residuals. The p-value uses the two-variable MacKinnon surface.
func EngleGranger(y, x []float64) (*EngleGrangerResult, error) {
	if len(y) != len(x) {
		return nil, fmt.Errorf("engle-granger: length mismatch %d != %d", len(y), len(x))
	}

	fit, err := OLS(y, [][]float64{x}, true)
	if err != nil {
		return nil, fmt.Errorf("engle-granger: cointegrating regression: %w", err)
	}

	adf, err := ADF(fit.Resid, -1)
	if err != nil {
		return nil, fmt.Errorf("engle-granger: %w", err)
	}

	p, err := MacKinnonP(adf.Stat, 2)
	if err != nil {
		return nil, fmt.Errorf("engle-granger: %w", err)
	}

	return &EngleGrangerResult{
		Alpha:     fit.Params[0],
		Beta:      fit.Params[1],
		ADFStat:   adf.Stat,
		PValue:    p,
		UsedLag:   adf.UsedLag,
		Residuals: fit.Resid,
	}, nil
}

// MinHalfLifeSamples is the minimum number of spread differences required to
// estimate a half-life
const MinHalfLifeSamples = 20

// HalfLife fits ds[t] = c + gamma*s[t-1] and returns gamma and the implied
// half-life -ln(2)/gamma. The half-life is +Inf when gamma >= 0.
func HalfLife(spread []float64) (gamma, halfLife float64, err error) {
	if len(spread)-1 < MinHalfLifeSamples {
		return math.NaN(), math.NaN(), fmt.Errorf("half-life: %d samples: %w", len(spread)-1, ErrTooFewObservations)
	}
	if !Finite(spread...) {
		return math.NaN(), math.NaN(), fmt.Errorf("half-life: %w", ErrNonFinite)
	}

	lagged := spread[:len(spread)-1]
	delta := make([]float64, len(spread)-1)
	for i := 1; i < len(spread); i++ {
		delta[i-1] = spread[i] - spread[i-1]
	}

	_, gamma = stat.LinearRegression(lagged, delta, nil, false)
	if !Finite(gamma) {
		return math.NaN(), math.NaN(), fmt.Errorf("half-life: slope: %w", ErrNonFinite)
	}
	if gamma >= 0 {
		return gamma, math.Inf(1), nil
	}
	return gamma, -math.Ln2 / gamma, nil
}

// Correlation returns the Pearson correlation over the positions where both
// series are present (pairwise-complete observations).
func Correlation(x, y []float64) (float64, int) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if i >= len(y) {
			break
		}
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN(), len(xs)
	}
	return stat.Correlation(xs, ys, nil), len(xs)
}
