package indicators

import (
	"math"

	"PatternLab/internal/domain/models"
)

// Bollinger bands: middle = SMA(p), upper/lower = middle ± mult·|sample std|.
func Bollinger(closes []float64, p int, mult float64) (upper, middle, lower []float64) {
	middle = SMA(closes, p)
	std := RollingStd(closes, p)
	n := len(closes)
	upper, lower = nanSlice(n), nanSlice(n)
	width := math.Abs(mult)
	for i := range closes {
		if math.IsNaN(middle[i]) || math.IsNaN(std[i]) {
			continue
		}
		band := width * math.Abs(std[i])
		upper[i] = middle[i] + band
		lower[i] = middle[i] - band
	}
	return upper, middle, lower
}

// TrueRange per bar. The first bar has no previous close and uses high-low.
func TrueRange(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			pc := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-pc), math.Abs(b.Low-pc)))
		}
		out[i] = tr
	}
	return out
}

// ATR is the simple mean of true range over p bars.
func ATR(bars []models.Bar, p int) []float64 {
	return SMA(TrueRange(bars), p)
}

// LogReturns aligned to closes; index 0 is NaN.
func LogReturns(closes []float64) []float64 {
	out := nanSlice(len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 && closes[i] > 0 {
			out[i] = math.Log(closes[i] / closes[i-1])
		}
	}
	return out
}

// HistoricalVolatility is the population std of the last p log returns,
// annualised with √365 and expressed in percent.
func HistoricalVolatility(closes []float64, p int) []float64 {
	lr := LogReturns(closes)
	std := RollingPopStd(lr, p)
	out := nanSlice(len(closes))
	for i, s := range std {
		if !math.IsNaN(s) {
			out[i] = s * math.Sqrt(365) * 100
		}
	}
	return out
}
