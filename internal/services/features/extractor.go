package features

import (
	"math"
	"time"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/repository"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(bars)-1, or nil if insufficient data.
func ComputeLogReturns(bars []models.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		cur := bars[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the trailing window
// using the provided number of bars per year.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYearForTF returns the approximate number of bars per year for a timeframe.
func BarsPerYearForTF(tf repository.Timeframe) float64 {
	d := tf.Duration()
	if d <= 0 {
		d = time.Hour
	}
	return float64(365*24*time.Hour) / float64(d)
}

// AlignFromTo rounds a time range to bar boundaries of the timeframe.
func AlignFromTo(from, to time.Time, tf repository.Timeframe) (time.Time, time.Time) {
	d := tf.Duration()
	if d <= 0 {
		d = time.Minute
	}
	return from.Truncate(d), to.Truncate(d)
}
