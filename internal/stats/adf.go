package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ADFResult holds an augmented Dickey-Fuller test without deterministic terms
type ADFResult struct {
	Stat    float64
	UsedLag int
	NObs    int
}

// MaxLag returns the Schwert rule of thumb ceil(12*(n/100)^(1/4)), capped so
// that the lag regression keeps at least half the sample.
func MaxLag(nobs int) int {
	lag := int(math.Ceil(12 * math.Pow(float64(nobs)/100, 0.25)))
	if limit := nobs/2 - 1; lag > limit {
		lag = limit
	}
	return lag
}

// ADF runs the augmented Dickey-Fuller regression
//
//	dx[t] = g*x[t-1] + sum_i c_i*dx[t-i] + e[t]
//
// with no constant, selecting the number of lagged differences in [0, maxLag]
// by AIC over a common sample and refitting with the chosen lag. A negative
// maxLag selects MaxLag(len(x)).
func ADF(x []float64, maxLag int) (*ADFResult, error) {
	nobs := len(x)
	if maxLag < 0 {
		maxLag = MaxLag(nobs)
	}
	if maxLag < 0 || nobs < maxLag+3 {
		return nil, fmt.Errorf("adf: %d observations: %w", nobs, ErrTooFewObservations)
	}
	if !Finite(x...) {
		return nil, fmt.Errorf("adf: %w", ErrNonFinite)
	}

	dx := make([]float64, nobs-1)
	for i := 1; i < nobs; i++ {
		dx[i-1] = x[i] - x[i-1]
	}

	bestLag := 0
	bestAIC := math.Inf(1)
	y, cols := adfDesign(x, dx, maxLag)
	for lag := 0; lag <= maxLag; lag++ {
		fit, err := OLS(y, cols[:lag+1], false)
		if err != nil {
			return nil, fmt.Errorf("adf: lag %d: %w", lag, err)
		}
		if fit.AIC < bestAIC {
			bestAIC = fit.AIC
			bestLag = lag
		}
	}

	y, cols = adfDesign(x, dx, bestLag)
	fit, err := OLS(y, cols, false)
	if err != nil {
		return nil, fmt.Errorf("adf: refit: %w", err)
	}
	stat := fit.TStats[0]
	if !Finite(stat) {
		return nil, fmt.Errorf("adf: statistic: %w", ErrNonFinite)
	}

	return &ADFResult{Stat: stat, UsedLag: bestLag, NObs: len(y)}, nil
}

// adfDesign builds the dependent vector and regressors for a given lag. The
// first regressor is the lagged level; the next lag columns are lagged
// differences.
func adfDesign(x, dx []float64, lag int) ([]float64, [][]float64) {
	rows := len(dx) - lag
	y := make([]float64, rows)
	cols := make([][]float64, lag+1)
	for j := range cols {
		cols[j] = make([]float64, rows)
	}

	for r := 0; r < rows; r++ {
		t := r + lag // index into dx
		y[r] = dx[t]
		cols[0][r] = x[t]
		for i := 1; i <= lag; i++ {
			cols[i][r] = dx[t-i]
		}
	}
	return y, cols
}

// MacKinnon (1994) response-surface coefficients for the constant-only case,
// indexed by the number of variables in the cointegrating regression.
var (
	tauMaxC  = []float64{2.74, 0.92}
	tauMinC  = []float64{-18.83, -18.86}
	tauStarC = []float64{-1.61, -2.62}

	tauSmallPC = [][]float64{
		{2.1659, 1.4412, 0.038269},
		{2.92, 1.5012, 0.039796},
	}
	tauLargePC = [][]float64{
		{1.7339, 0.93202, -0.12745, -0.010368},
		{2.1945, 0.64695, -0.29198, -0.042377},
	}
)

// MacKinnonP returns the approximate asymptotic p-value of a Dickey-Fuller
// statistic for a regression with a constant and nvars variables (1 for a
// plain unit-root test, 2 for a two-series Engle-Granger test).
func MacKinnonP(stat float64, nvars int) (float64, error) {
	if nvars < 1 || nvars > len(tauStarC) {
		return math.NaN(), fmt.Errorf("mackinnon: unsupported variable count %d", nvars)
	}
	if !Finite(stat) {
		return math.NaN(), fmt.Errorf("mackinnon: %w", ErrNonFinite)
	}

	i := nvars - 1
	switch {
	case stat > tauMaxC[i]:
		return 1, nil
	case stat < tauMinC[i]:
		return 0, nil
	}

	coef := tauLargePC[i]
	if stat <= tauStarC[i] {
		coef = tauSmallPC[i]
	}
	return distuv.UnitNormal.CDF(polyval(coef, stat)), nil
}

// polyval evaluates c[0] + c[1]*x + c[2]*x^2 + ...
func polyval(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}
