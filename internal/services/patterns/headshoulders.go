package patterns

import (
	"math"
	"strconv"

	"PatternLab/internal/domain/models"
)

// HeadShouldersDetector looks at the latest three swing points of the window.
type HeadShouldersDetector struct {
	cfg Config
}

func NewHeadShouldersDetector(cfg Config) *HeadShouldersDetector {
	return &HeadShouldersDetector{cfg: cfg}
}

func (d *HeadShouldersDetector) Types() []models.PatternType {
	return []models.PatternType{models.HeadAndShoulders, models.InverseHeadAndShoulders}
}

func (d *HeadShouldersDetector) Window() int { return d.cfg.window(models.HeadAndShoulders) }

func (d *HeadShouldersDetector) Detect(in Input) []models.Pattern {
	bars, start, ok := tail(in, d.Window())
	if !ok {
		return nil
	}
	atr, ok := lastATR(in)
	if !ok {
		return nil
	}
	var out []models.Pattern
	if p, ok := d.regular(bars, start, atr); ok {
		out = finish(p, out)
	}
	if p, ok := d.inverse(bars, start, atr); ok {
		out = finish(p, out)
	}
	return out
}

func lastThree(idx []int) (int, int, int, bool) {
	if len(idx) < 3 {
		return 0, 0, 0, false
	}
	n := len(idx)
	return idx[n-3], idx[n-2], idx[n-1], true
}

// argExtreme returns the index in (a, b) with the lowest (or highest) value of x.
func argExtreme(x []float64, a, b int, lowest bool) (int, bool) {
	best := -1
	for k := a + 1; k < b; k++ {
		if best < 0 || (lowest && x[k] < x[best]) || (!lowest && x[k] > x[best]) {
			best = k
		}
	}
	return best, best >= 0
}

func (d *HeadShouldersDetector) regular(bars []models.Bar, start int, atr float64) (models.Pattern, bool) {
	h, l := highs(bars), lows(bars)
	ls, hd, rs, ok := lastThree(Peaks(h, d.cfg.PeakOrder))
	if !ok || !(h[hd] > h[ls] && h[hd] > h[rs]) {
		return models.Pattern{}, false
	}
	sym := math.Abs(h[ls]-h[rs]) / math.Max(h[ls], h[rs])
	if sym > d.cfg.ShoulderTolerance {
		return models.Pattern{}, false
	}
	t1, ok1 := argExtreme(l, ls, hd, true)
	t2, ok2 := argExtreme(l, hd, rs, true)
	if !ok1 || !ok2 {
		return models.Pattern{}, false
	}
	neck := (l[t1] + l[t2]) / 2
	if !(h[ls] > neck && h[rs] > neck) {
		return models.Pattern{}, false
	}
	head := h[hd]
	vol := bars[rs].Volume < bars[ls].Volume
	return models.Pattern{
		Type:                 models.HeadAndShoulders,
		Bias:                 models.Bearish,
		WindowStart:          start,
		WindowEnd:            start + len(bars) - 1,
		StructuralConfidence: hsConfidence(sym, d.cfg.ShoulderTolerance, (head-neck)/head, vol),
		PriceTarget:          neck - (head - neck),
		StopLoss:             head + 2*atr,
		FormationPoints: []models.FormationPoint{
			point(bars, start, ls, h[ls]),
			point(bars, start, t1, l[t1]),
			point(bars, start, hd, head),
			point(bars, start, t2, l[t2]),
			point(bars, start, rs, h[rs]),
		},
		VolumeConfirms: vol,
		Detail:         map[string]string{"neckline": strconv.FormatFloat(neck, 'f', -1, 64)},
	}, true
}

func (d *HeadShouldersDetector) inverse(bars []models.Bar, start int, atr float64) (models.Pattern, bool) {
	h, l := highs(bars), lows(bars)
	ls, hd, rs, ok := lastThree(Troughs(l, d.cfg.PeakOrder))
	if !ok || !(l[hd] < l[ls] && l[hd] < l[rs]) {
		return models.Pattern{}, false
	}
	sym := math.Abs(l[ls]-l[rs]) / math.Max(l[ls], l[rs])
	if sym > d.cfg.ShoulderTolerance {
		return models.Pattern{}, false
	}
	p1, ok1 := argExtreme(h, ls, hd, false)
	p2, ok2 := argExtreme(h, hd, rs, false)
	if !ok1 || !ok2 {
		return models.Pattern{}, false
	}
	neck := (h[p1] + h[p2]) / 2
	if !(l[ls] < neck && l[rs] < neck) {
		return models.Pattern{}, false
	}
	head := l[hd]
	vol := bars[rs].Volume < bars[ls].Volume
	return models.Pattern{
		Type:                 models.InverseHeadAndShoulders,
		Bias:                 models.Bullish,
		WindowStart:          start,
		WindowEnd:            start + len(bars) - 1,
		StructuralConfidence: hsConfidence(sym, d.cfg.ShoulderTolerance, (neck-head)/neck, vol),
		PriceTarget:          neck + (neck - head),
		StopLoss:             head - 2*atr,
		FormationPoints: []models.FormationPoint{
			point(bars, start, ls, l[ls]),
			point(bars, start, p1, h[p1]),
			point(bars, start, hd, head),
			point(bars, start, p2, h[p2]),
			point(bars, start, rs, l[rs]),
		},
		VolumeConfirms: vol,
		Detail:         map[string]string{"neckline": strconv.FormatFloat(neck, 'f', -1, 64)},
	}, true
}

func hsConfidence(sym, tol, height float64, vol bool) float64 {
	c := 0.45
	if tol > 0 {
		c += 0.25 * (1 - sym/tol)
	}
	c += 0.15 * math.Min(1, height/0.10)
	if vol {
		c += 0.15
	}
	return c
}
