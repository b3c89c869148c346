// Package stats implements the regression and unit-root machinery used for
// pair selection: ordinary least squares, the augmented Dickey-Fuller test,
// MacKinnon approximate p-values and the Engle-Granger cointegration test.
package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrSingular is returned when the normal equations cannot be inverted
	ErrSingular = errors.New("singular design matrix")
	// ErrNonFinite is returned when inputs or estimates contain NaN or Inf
	ErrNonFinite = errors.New("non-finite value")
	// ErrTooFewObservations is returned when there are not enough rows to fit
	ErrTooFewObservations = errors.New("too few observations")
)

// OLSResult holds a least-squares fit
type OLSResult struct {
	Params []float64 // Coefficients, intercept first when fitted
	StdErr []float64
	TStats []float64
	Resid  []float64
	SSR    float64
	N      int
	K      int
	LogLik float64
	AIC    float64
}

// OLS regresses y on the given regressor columns. When intercept is true a
// constant column is prepended and reported as Params[0].
func OLS(y []float64, columns [][]float64, intercept bool) (*OLSResult, error) {
	n := len(y)
	k := len(columns)
	if intercept {
		k++
	}
	if k == 0 {
		return nil, fmt.Errorf("ols: no regressors")
	}
	if n <= k {
		return nil, fmt.Errorf("ols: %d rows for %d params: %w", n, k, ErrTooFewObservations)
	}
	if floats.HasNaN(y) || hasInf(y) {
		return nil, fmt.Errorf("ols: dependent: %w", ErrNonFinite)
	}

	X := mat.NewDense(n, k, nil)
	c := 0
	if intercept {
		for i := 0; i < n; i++ {
			X.Set(i, 0, 1)
		}
		c = 1
	}
	for j, col := range columns {
		if len(col) != n {
			return nil, fmt.Errorf("ols: column %d has %d rows, want %d", j, len(col), n)
		}
		if floats.HasNaN(col) || hasInf(col) {
			return nil, fmt.Errorf("ols: column %d: %w", j, ErrNonFinite)
		}
		for i, v := range col {
			X.Set(i, c+j, v)
		}
	}
	yv := mat.NewVecDense(n, y)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("ols: %w: %v", ErrSingular, err)
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), yv)
	var beta mat.VecDense
	beta.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(X, &beta)

	res := &OLSResult{
		Params: make([]float64, k),
		StdErr: make([]float64, k),
		TStats: make([]float64, k),
		Resid:  make([]float64, n),
		N:      n,
		K:      k,
	}
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		res.Resid[i] = r
		res.SSR += r * r
	}

	sigma2 := res.SSR / float64(n-k)
	for j := 0; j < k; j++ {
		res.Params[j] = beta.AtVec(j)
		res.StdErr[j] = math.Sqrt(sigma2 * inv.At(j, j))
		res.TStats[j] = res.Params[j] / res.StdErr[j]
	}
	if floats.HasNaN(res.Params) || hasInf(res.Params) {
		return nil, fmt.Errorf("ols: estimates: %w", ErrNonFinite)
	}

	nf := float64(n)
	res.LogLik = -nf / 2 * (math.Log(2*math.Pi) + math.Log(res.SSR/nf) + 1)
	res.AIC = -2*res.LogLik + 2*float64(k)
	return res, nil
}

func hasInf(xs []float64) bool {
	for _, v := range xs {
		if math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// Finite reports whether every value is a finite number
func Finite(xs ...float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
