package indicators

import (
	"math"

	"PatternLab/internal/domain/models"
)

// RSI uses simple rolling means of gains and losses over p deltas.
// The first value appears once p deltas exist. A zero average loss yields 100.
func RSI(closes []float64, p int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if p <= 0 || n <= p {
		return out
	}
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	var g, l float64
	for i := 1; i < n; i++ {
		g += gains[i]
		l += losses[i]
		if i > p {
			g -= gains[i-p]
			l -= losses[i-p]
		}
		if i < p {
			continue
		}
		avgG, avgL := g/float64(p), l/float64(p)
		if avgL <= 1e-12 {
			out[i] = 100
			continue
		}
		v := 100 - 100/(1+avgG/avgL)
		out[i] = math.Min(100, math.Max(0, v))
	}
	return out
}

// MACD returns line = EMA(fast) - EMA(slow), signal = EMA(signal) of line and their difference.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	ef, es := EMA(closes, fast), EMA(closes, slow)
	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = ef[i] - es[i]
	}
	sig = EMA(line, signal)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// Stochastic %K over kPeriod and %D as SMA(dPeriod) of %K.
// %K is absent when the range is flat.
func Stochastic(bars []models.Bar, kPeriod, dPeriod int) (k, d []float64) {
	n := len(bars)
	highs, lows := make([]float64, n), make([]float64, n)
	for i, b := range bars {
		highs[i], lows[i] = b.High, b.Low
	}
	hh, ll := RollingMax(highs, kPeriod), RollingMin(lows, kPeriod)
	k = nanSlice(n)
	for i, b := range bars {
		if math.IsNaN(hh[i]) || hh[i] == ll[i] {
			continue
		}
		k[i] = 100 * (b.Close - ll[i]) / (hh[i] - ll[i])
	}
	return k, SMA(k, dPeriod)
}
