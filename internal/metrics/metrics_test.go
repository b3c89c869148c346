package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.PairsScreened.WithLabelValues("2016").Add(190)
	r.PairsRejected.WithLabelValues("2016", "low_correlation").Add(150)
	r.PairsRejected.WithLabelValues("2016", "not_cointegrated").Inc()
	r.StopLosses.WithLabelValues("2016").Inc()

	assert.Equal(t, 190.0, testutil.ToFloat64(r.PairsScreened.WithLabelValues("2016")))
	assert.Equal(t, 150.0, testutil.ToFloat64(r.PairsRejected.WithLabelValues("2016", "low_correlation")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.PairsRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.StopLosses.WithLabelValues("2016")))
}

func TestRecordersAreIndependent(t *testing.T) {
	a := NewRecorder()
	b := NewRecorder()

	a.Trades.WithLabelValues("2017").Add(3)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.Trades.WithLabelValues("2017")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.YearPnL.WithLabelValues("2018").Set(12345)

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `statarb_portfolio_year_pnl{year="2018"} 12345`))
}
