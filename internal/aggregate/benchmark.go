package aggregate

import "github.com/TruWeaveTrader/statarb/internal/models"

// BuyAndHold returns the P&L curve of investing capital in one symbol at the
// first price and holding. The last value is (sell-buy)*capital/buy.
func BuyAndHold(prices []float64, capital float64) []float64 {
	curve := make([]float64, len(prices))
	if len(prices) == 0 || prices[0] <= 0 {
		return curve
	}
	buy := prices[0]
	for i, p := range prices {
		curve[i] = (p - buy) * capital / buy
	}
	return curve
}

// AttachBenchmarks fills the per-leg buy-and-hold columns of a pair result
func AttachBenchmarks(res *models.PairResult, capital float64) {
	n := len(res.Records)
	pricesA := make([]float64, n)
	pricesB := make([]float64, n)
	for i, r := range res.Records {
		pricesA[i] = r.PriceA
		pricesB[i] = r.PriceB
	}
	curveA := BuyAndHold(pricesA, capital)
	curveB := BuyAndHold(pricesB, capital)
	for i := range res.Records {
		res.Records[i].BenchmarkA = curveA[i]
		res.Records[i].BenchmarkB = curveB[i]
	}
}
