package patterns

import (
	"math"
	"strconv"

	"PatternLab/internal/domain/models"
)

// LiquidityDetector finds clusters of equal swing highs (buy-side liquidity) or equal
// swing lows (sell-side liquidity) anchored on the most recent swing point. Resting
// stops above equal highs draw price up; below equal lows they draw price down.
type LiquidityDetector struct {
	cfg Config
}

func NewLiquidityDetector(cfg Config) *LiquidityDetector { return &LiquidityDetector{cfg: cfg} }

func (d *LiquidityDetector) Types() []models.PatternType {
	return []models.PatternType{models.LiquidityLevel}
}

func (d *LiquidityDetector) Window() int { return d.cfg.window(models.LiquidityLevel) }

func (d *LiquidityDetector) Detect(in Input) []models.Pattern {
	bars, start, ok := tail(in, d.Window())
	if !ok {
		return nil
	}
	h, l := highs(bars), lows(bars)
	var out []models.Pattern
	if p, ok := d.cluster(bars, start, Peaks(h, d.cfg.PeakOrder), h, l, true); ok {
		out = finish(p, out)
	}
	if p, ok := d.cluster(bars, start, Troughs(l, d.cfg.PeakOrder), l, h, false); ok {
		out = finish(p, out)
	}
	return out
}

func (d *LiquidityDetector) cluster(bars []models.Bar, start int, swings []int, x, opp []float64, buySide bool) (models.Pattern, bool) {
	if len(swings) < 2 {
		return models.Pattern{}, false
	}
	anchor := x[swings[len(swings)-1]]
	var members []int
	for _, i := range swings {
		if math.Abs(x[i]-anchor)/anchor <= d.cfg.ClusterTolerance {
			members = append(members, i)
		}
	}
	if len(members) < 2 {
		return models.Pattern{}, false
	}
	first, last := members[0], members[len(members)-1]
	var level float64
	points := make([]models.FormationPoint, 0, len(members))
	for _, i := range members {
		level += x[i]
		points = append(points, point(bars, start, i, x[i]))
	}
	level /= float64(len(members))

	// the opposite extreme between the first and last member bounds the swing
	swing := opp[first]
	for k := first; k <= last; k++ {
		if buySide {
			swing = math.Min(swing, opp[k])
		} else {
			swing = math.Max(swing, opp[k])
		}
	}
	dist := math.Abs(level - swing)
	if dist <= 0 {
		return models.Pattern{}, false
	}
	var memberVol float64
	for _, i := range members {
		memberVol += bars[i].Volume
	}
	volConfirms := memberVol/float64(len(members)) > meanVolume(bars)

	p := models.Pattern{
		Type:            models.LiquidityLevel,
		WindowStart:     start,
		WindowEnd:       start + len(bars) - 1,
		FormationPoints: points,
		VolumeConfirms:  volConfirms,
		Detail: map[string]string{
			"level":        strconv.FormatFloat(level, 'f', -1, 64),
			"cluster_size": strconv.Itoa(len(members)),
		},
	}
	if buySide {
		p.Bias = models.Bullish
		p.Detail["side"] = "buy_side"
		p.PriceTarget = p.FormationHigh() + 0.5*dist
		p.StopLoss = swing - 0.1*dist
	} else {
		p.Bias = models.Bearish
		p.Detail["side"] = "sell_side"
		p.PriceTarget = p.FormationLow() - 0.5*dist
		p.StopLoss = swing + 0.1*dist
	}
	c := 0.4 + 0.15*float64(len(members)-1)
	if volConfirms {
		c += 0.1
	}
	p.StructuralConfidence = math.Min(c, 0.95)
	return p, true
}
