package patterns

import (
	"math"
	"sort"
	"strconv"

	"PatternLab/internal/domain/models"
)

// DoubleDetector finds double tops on highs and double bottoms on lows.
type DoubleDetector struct {
	cfg Config
}

func NewDoubleDetector(cfg Config) *DoubleDetector { return &DoubleDetector{cfg: cfg} }

func (d *DoubleDetector) Types() []models.PatternType {
	return []models.PatternType{models.DoubleTop, models.DoubleBottom}
}

func (d *DoubleDetector) Window() int { return d.cfg.window(models.DoubleTop) }

func (d *DoubleDetector) Detect(in Input) []models.Pattern {
	bars, start, ok := tail(in, d.Window())
	if !ok {
		return nil
	}
	atr, ok := lastATR(in)
	if !ok {
		return nil
	}
	var out []models.Pattern
	if p, ok := d.top(bars, start, atr); ok {
		out = finish(p, out)
	}
	if p, ok := d.bottom(bars, start, atr); ok {
		out = finish(p, out)
	}
	return out
}

// twoMost picks the two most extreme indices (earlier index wins ties) and returns them in time order.
func twoMost(idx []int, x []float64, higher bool) (int, int, bool) {
	if len(idx) < 2 {
		return 0, 0, false
	}
	c := append([]int(nil), idx...)
	sort.SliceStable(c, func(i, j int) bool {
		if higher {
			return x[c[i]] > x[c[j]]
		}
		return x[c[i]] < x[c[j]]
	})
	a, b := c[0], c[1]
	if a > b {
		a, b = b, a
	}
	return a, b, b-a >= 2
}

func (d *DoubleDetector) top(bars []models.Bar, start int, atr float64) (models.Pattern, bool) {
	h := highs(bars)
	i, j, ok := twoMost(Peaks(h, d.cfg.PeakOrder), h, true)
	if !ok {
		return models.Pattern{}, false
	}
	p1, p2 := h[i], h[j]
	hi, lo := math.Max(p1, p2), math.Min(p1, p2)
	diff := (hi - lo) / hi
	if diff > d.cfg.PeakTolerance {
		return models.Pattern{}, false
	}
	neck := math.Inf(1)
	for k := i + 1; k < j; k++ {
		neck = math.Min(neck, bars[k].Low)
	}
	depth := (lo - neck) / lo
	if depth < d.cfg.MinTroughDepth {
		return models.Pattern{}, false
	}
	vol := bars[j].Volume < bars[i].Volume
	return models.Pattern{
		Type:                 models.DoubleTop,
		Bias:                 models.Bearish,
		WindowStart:          start,
		WindowEnd:            start + len(bars) - 1,
		StructuralConfidence: doubleConfidence(diff, d.cfg.PeakTolerance, depth, vol),
		PriceTarget:          neck - (hi - neck),
		StopLoss:             hi + 1.5*atr,
		FormationPoints:      []models.FormationPoint{point(bars, start, i, p1), point(bars, start, j, p2)},
		VolumeConfirms:       vol,
		Detail:               map[string]string{"neckline": strconv.FormatFloat(neck, 'f', -1, 64)},
	}, true
}

func (d *DoubleDetector) bottom(bars []models.Bar, start int, atr float64) (models.Pattern, bool) {
	l := lows(bars)
	i, j, ok := twoMost(Troughs(l, d.cfg.PeakOrder), l, false)
	if !ok {
		return models.Pattern{}, false
	}
	t1, t2 := l[i], l[j]
	hi, lo := math.Max(t1, t2), math.Min(t1, t2)
	diff := (hi - lo) / hi
	if diff > d.cfg.PeakTolerance {
		return models.Pattern{}, false
	}
	neck := math.Inf(-1)
	for k := i + 1; k < j; k++ {
		neck = math.Max(neck, bars[k].High)
	}
	depth := (neck - hi) / neck
	if depth < d.cfg.MinTroughDepth {
		return models.Pattern{}, false
	}
	vol := bars[j].Volume < bars[i].Volume
	return models.Pattern{
		Type:                 models.DoubleBottom,
		Bias:                 models.Bullish,
		WindowStart:          start,
		WindowEnd:            start + len(bars) - 1,
		StructuralConfidence: doubleConfidence(diff, d.cfg.PeakTolerance, depth, vol),
		PriceTarget:          neck + (neck - lo),
		StopLoss:             lo - 1.5*atr,
		FormationPoints:      []models.FormationPoint{point(bars, start, i, t1), point(bars, start, j, t2)},
		VolumeConfirms:       vol,
		Detail:               map[string]string{"neckline": strconv.FormatFloat(neck, 'f', -1, 64)},
	}, true
}

func doubleConfidence(diff, tol, depth float64, vol bool) float64 {
	c := 0.5
	if tol > 0 {
		c += 0.2 * (1 - diff/tol)
	}
	c += 0.15 * math.Min(1, depth/0.10)
	if vol {
		c += 0.15
	}
	return c
}
