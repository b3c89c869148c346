package strategy

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// ZScoreMode selects how the spread is normalised
type ZScoreMode string

const (
	// RollingZScore uses a trailing window that excludes the current day
	RollingZScore ZScoreMode = "rolling"
	// StaticZScore uses the whole period's mean and deviation
	StaticZScore ZScoreMode = "static"
)

// DefaultWindow is the rolling window length in observations
const DefaultWindow = 30

// SignalEngine computes the spread of a pair and its z-score
type SignalEngine struct {
	window int
	mode   ZScoreMode
}

// NewSignalEngine creates a signal engine
func NewSignalEngine(window int, mode ZScoreMode) (*SignalEngine, error) {
	switch mode {
	case "":
		mode = RollingZScore
	case RollingZScore, StaticZScore:
	default:
		return nil, fmt.Errorf("unknown z-score mode %q", mode)
	}
	if mode == RollingZScore && window < 2 {
		return nil, fmt.Errorf("rolling window must be at least 2, got %d", window)
	}
	return &SignalEngine{window: window, mode: mode}, nil
}

// Window returns the warm-up length
func (e *SignalEngine) Window() int {
	if e.mode == StaticZScore {
		return 0
	}
	return e.window
}

// Spread returns price_a - beta*price_b for every day
func (e *SignalEngine) Spread(priceA, priceB []float64, beta float64) []float64 {
	spread := make([]float64, len(priceA))
	for i := range spread {
		spread[i] = priceA[i] - beta*priceB[i]
	}
	return spread
}

// ZScores normalises the spread. Days without a defined z-score are NaN.
func (e *SignalEngine) ZScores(spread []float64) []float64 {
	if e.mode == StaticZScore {
		return staticZScores(spread)
	}

	z := make([]float64, len(spread))
	for t := range z {
		if t < e.window {
			z[t] = math.NaN()
			continue
		}
		// Statistics end at t-1
		z[t] = normalise(spread[t], spread[t-e.window:t])
	}
	return z
}

func staticZScores(spread []float64) []float64 {
	z := make([]float64, len(spread))
	for t := range z {
		z[t] = normalise(spread[t], spread)
	}
	return z
}

func normalise(x float64, window []float64) float64 {
	mean, err := stats.Mean(window)
	if err != nil {
		return math.NaN()
	}
	std, err := stats.StandardDeviationSample(window)
	if err != nil || std == 0 || math.IsNaN(std) {
		return math.NaN()
	}
	return (x - mean) / std
}
