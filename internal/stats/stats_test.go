package stats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ar1(r *rand.Rand, n int, phi, sd float64) []float64 {
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		out[i] = phi*out[i-1] + sd*r.NormFloat64()
	}
	return out
}

func randomWalk(r *rand.Rand, n int, start float64) []float64 {
	out := make([]float64, n)
	out[0] = start
	for i := 1; i < n; i++ {
		out[i] = out[i-1] + r.NormFloat64()
	}
	return out
}

func TestOLSRecoversExactLine(t *testing.T) {
	x := make([]float64, 50)
	y := make([]float64, 50)
	for i := range x {
		x[i] = float64(i) + math.Sin(float64(i))
		y[i] = 2 + 3*x[i]
	}

	fit, err := OLS(y, [][]float64{x}, true)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, fit.Params[0], 1e-9)
	assert.InDelta(t, 3.0, fit.Params[1], 1e-9)
	assert.InDelta(t, 0.0, fit.SSR, 1e-12)
}

func TestOLSSingularDesign(t *testing.T) {
	x := make([]float64, 20)
	y := make([]float64, 20)
	for i := range x {
		x[i] = 5
		y[i] = float64(i)
	}

	_, err := OLS(y, [][]float64{x}, true)
	assert.ErrorIs(t, err, ErrSingular)
}

func TestOLSRejectsNonFinite(t *testing.T) {
	x := []float64{1, 2, 3, math.Inf(1), 5}
	y := []float64{1, 2, 3, 4, 5}
	_, err := OLS(y, [][]float64{x}, true)
	assert.ErrorIs(t, err, ErrNonFinite)

	_, err = OLS(y[:2], [][]float64{x[:2]}, true)
	assert.ErrorIs(t, err, ErrTooFewObservations)
}

func TestMacKinnonP(t *testing.T) {
	// 5% critical values: -2.86 for a unit-root test with constant,
	// about -3.34 for a two-variable cointegration test
	p, err := MacKinnonP(-2.86, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, p, 0.005)

	p, err = MacKinnonP(-3.34, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, p, 0.01)

	p, err = MacKinnonP(5, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	p, err = MacKinnonP(-25, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)

	_, err = MacKinnonP(-3, 7)
	assert.Error(t, err)
	_, err = MacKinnonP(math.NaN(), 1)
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestMacKinnonPIsContinuousAtSwitchPoint(t *testing.T) {
	for n := 1; n <= 2; n++ {
		below, _ := MacKinnonP(tauStarC[n-1]-1e-9, n)
		above, _ := MacKinnonP(tauStarC[n-1]+1e-9, n)
		assert.InDelta(t, below, above, 0.01, "nvars=%d", n)
	}
}

func TestADFSeparatesStationaryFromRandomWalk(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	stationary, err := ADF(ar1(r, 500, 0.5, 1), -1)
	require.NoError(t, err)
	walk, err := ADF(randomWalk(r, 500, 0), -1)
	require.NoError(t, err)

	pStationary, _ := MacKinnonP(stationary.Stat, 1)
	pWalk, _ := MacKinnonP(walk.Stat, 1)

	assert.Less(t, stationary.Stat, -5.0)
	assert.Less(t, pStationary, 0.01)
	assert.Greater(t, pWalk, pStationary)
	assert.LessOrEqual(t, stationary.UsedLag, MaxLag(500))
}

func TestMaxLag(t *testing.T) {
	assert.Equal(t, 16, MaxLag(250))
	assert.Equal(t, 12, MaxLag(100))
	assert.Equal(t, 4, MaxLag(10))
}

func TestEngleGrangerSyntheticPair(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	n := 250
	x := randomWalk(r, n, 100)
	noise := ar1(r, n, 0.5, 1)
	y := make([]float64, n)
	for i := range y {
		y[i] = 5 + 2*x[i] + noise[i]
	}

	res, err := EngleGranger(y, x)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Beta, 0.1)
	assert.Less(t, res.PValue, 0.05)
	assert.Len(t, res.Residuals, n)
}

func TestHalfLife(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	spread := ar1(r, 1000, 0.9, 1)

	gamma, hl, err := HalfLife(spread)
	require.NoError(t, err)
	assert.InDelta(t, -0.1, gamma, 0.05)
	assert.InDelta(t, -math.Ln2/gamma, hl, 1e-12)

	_, _, err = HalfLife(spread[:10])
	assert.ErrorIs(t, err, ErrTooFewObservations)
}

func TestHalfLifeNonReverting(t *testing.T) {
	// Explosive series: every difference grows with the level
	spread := make([]float64, 40)
	spread[0] = 1
	for i := 1; i < len(spread); i++ {
		spread[i] = spread[i-1]*1.05 + 0.01
	}

	gamma, hl, err := HalfLife(spread)
	require.NoError(t, err)
	assert.Greater(t, gamma, 0.0)
	assert.True(t, math.IsInf(hl, 1))
}

func TestCorrelationPairwiseComplete(t *testing.T) {
	nan := math.NaN()
	x := []float64{1, 2, nan, 4, 5}
	y := []float64{2, 4, 6, nan, 10}

	rho, n := Correlation(x, y)
	assert.Equal(t, 3, n)
	assert.InDelta(t, 1.0, rho, 1e-12)

	rho, n = Correlation([]float64{1}, []float64{1})
	assert.Equal(t, 1, n)
	assert.True(t, math.IsNaN(rho))
}
