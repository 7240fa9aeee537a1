package validation

import (
	"math"

	"PatternLab/internal/domain/models"
)

// Harness scores historical patterns by looking at the bars after their window.
// It reads the future on purpose and must stay out of the backtest path.
type Harness struct {
	horizon int
}

func NewHarness(horizon int) *Harness {
	if horizon <= 0 {
		horizon = 100
	}
	return &Harness{horizon: horizon}
}

// Outcome scores p against bars (WindowEnd, WindowEnd+horizon]. ok is false when no
// bar follows the window.
func (h *Harness) Outcome(p models.Pattern, bars []models.Bar) (models.PatternOutcome, bool) {
	from := p.WindowEnd + 1
	to := p.WindowEnd + h.horizon
	if to >= len(bars) {
		to = len(bars) - 1
	}
	if from < 0 || from > to {
		return models.PatternOutcome{}, false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range bars[from : to+1] {
		lo, hi = math.Min(lo, b.Low), math.Max(hi, b.High)
	}
	out := models.PatternOutcome{
		Type:       p.Type,
		WindowEnd:  p.WindowEnd,
		Confidence: p.BlendedConfidence,
		FutureBars: to - from + 1,
	}
	if p.Bias == models.Bullish {
		out.TargetHit = hi >= p.PriceTarget
		out.StopHit = lo <= p.StopLoss
	} else {
		out.TargetHit = lo <= p.PriceTarget
		out.StopHit = hi >= p.StopLoss
	}
	out.Success = out.TargetHit && !out.StopHit
	if out.Success {
		out.Profit = math.Abs(p.PriceTarget - p.LastFormationPrice())
	}
	return out, true
}

// Evaluate summarises outcomes over a pattern set.
func (h *Harness) Evaluate(patterns []models.Pattern, bars []models.Bar) models.PatternEvaluation {
	ev := models.PatternEvaluation{Distribution: make(map[models.PatternType]int)}
	var wins int
	var profit float64
	conf := make([]float64, 0, len(patterns))
	succ := make([]float64, 0, len(patterns))
	for _, p := range patterns {
		ev.Distribution[p.Type]++
		o, ok := h.Outcome(p, bars)
		if !ok {
			ev.Skipped++
			continue
		}
		ev.Outcomes = append(ev.Outcomes, o)
		conf = append(conf, o.Confidence)
		if o.Success {
			wins++
			succ = append(succ, 1)
		} else {
			succ = append(succ, 0)
		}
		profit += o.Profit
	}
	if n := len(ev.Outcomes); n > 0 {
		ev.Accuracy = float64(wins) / float64(n)
		ev.AverageProfit = profit / float64(n)
	}
	ev.ConfidenceCorrelation = pearson(conf, succ)
	return ev
}

// pearson is 0 when either side has no variance.
func pearson(x, y []float64) float64 {
	n := len(x)
	if n < 2 || len(y) != n {
		return 0
	}
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)
	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}
