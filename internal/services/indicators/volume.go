package indicators

import (
	"math"

	"PatternLab/internal/domain/models"
)

// VWAP is cumulative from the first bar using the typical price.
// It stays absent while cumulative volume is zero.
func VWAP(bars []models.Bar) []float64 {
	out := nanSlice(len(bars))
	var pv, vol float64
	for i, b := range bars {
		pv += b.TypicalPrice() * b.Volume
		vol += b.Volume
		if vol > 0 {
			out[i] = pv / vol
		}
	}
	return out
}

// Candle flags are +1 (bullish), -1 (bearish) or 0 per bar.
type CandleFlags struct {
	Doji      []float64
	Hammer    []float64 // +1 hammer, -1 shooting star
	Engulfing []float64
}

// Candles tags single and two-bar candlestick shapes.
func Candles(bars []models.Bar) CandleFlags {
	n := len(bars)
	f := CandleFlags{Doji: make([]float64, n), Hammer: make([]float64, n), Engulfing: make([]float64, n)}
	for i, b := range bars {
		rng := b.High - b.Low
		if rng <= 0 {
			continue
		}
		body := math.Abs(b.Close - b.Open)
		upper := b.High - math.Max(b.Open, b.Close)
		lower := math.Min(b.Open, b.Close) - b.Low
		if body <= 0.1*rng {
			f.Doji[i] = 1
		}
		switch {
		case body > 0 && lower >= 2*body && upper <= body:
			f.Hammer[i] = 1
		case body > 0 && upper >= 2*body && lower <= body:
			f.Hammer[i] = -1
		}
		if i == 0 {
			continue
		}
		p := bars[i-1]
		switch {
		case p.Close < p.Open && b.Close > b.Open && b.Open <= p.Close && b.Close >= p.Open:
			f.Engulfing[i] = 1
		case p.Close > p.Open && b.Close < b.Open && b.Open >= p.Close && b.Close <= p.Open:
			f.Engulfing[i] = -1
		}
	}
	return f
}
