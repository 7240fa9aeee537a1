package patterns

import (
	"math"
	"sort"
	"strconv"

	"PatternLab/internal/domain/models"
)

const liquidationLookback = 50

// LiquidationDetector estimates where leveraged positions opened over the recent bars
// would be force-closed and flags a dense cluster near the current price. External
// levels such as open interest by strike add to the same histogram.
type LiquidationDetector struct {
	cfg Config
}

func NewLiquidationDetector(cfg Config) *LiquidationDetector { return &LiquidationDetector{cfg: cfg} }

func (d *LiquidationDetector) Types() []models.PatternType {
	return []models.PatternType{models.LiquidationCascade}
}

func (d *LiquidationDetector) Window() int { return 0 }

func (d *LiquidationDetector) Detect(in Input) []models.Pattern {
	n := len(in.Bars)
	if n < 2 || d.cfg.LiquidationBin <= 0 {
		return nil
	}
	from := 0
	if n > liquidationLookback {
		from = n - liquidationLookback
	}
	last := in.Bars[n-1]
	price := last.Close
	width := price * d.cfg.LiquidationBin

	bins := make(map[int]float64)
	add := func(level, w float64) {
		if level <= 0 || w <= 0 {
			return
		}
		bins[int(math.Floor((level-price)/width))] += w
	}
	for _, b := range in.Bars[from:] {
		entry := b.TypicalPrice()
		for _, lev := range d.cfg.LeverageTiers {
			if lev <= 1 {
				continue
			}
			add(entry*(1-1/lev), b.Volume) // longs
			add(entry*(1+1/lev), b.Volume) // shorts
		}
	}
	for _, lv := range in.Levels {
		add(lv.Price, lv.Weight)
	}
	if len(bins) == 0 {
		return nil
	}
	keys := make([]int, 0, len(bins))
	var total float64
	for k, w := range bins {
		keys = append(keys, k)
		total += w
	}
	sort.Ints(keys)
	mean := total / float64(len(bins))
	maxBins := int(math.Ceil(d.cfg.LiquidationRange / d.cfg.LiquidationBin))

	var below, above int
	var hasBelow, hasAbove bool
	for _, k := range keys {
		if bins[k] < 2*mean {
			continue
		}
		switch {
		case k < 0 && -k <= maxBins && (!hasBelow || bins[k] > bins[below]):
			below, hasBelow = k, true
		case k > 0 && k <= maxBins && (!hasAbove || bins[k] > bins[above]):
			above, hasAbove = k, true
		}
	}

	var out []models.Pattern
	mk := func(k int, bias models.Bias) {
		lo := price + float64(k)*width
		hi := lo + width
		p := models.Pattern{
			Type:            models.LiquidationCascade,
			Bias:            bias,
			WindowStart:     from,
			WindowEnd:       n - 1,
			FormationPoints: []models.FormationPoint{{Index: n - 1, Price: price, Time: last.Timestamp}},
			VolumeConfirms:  bins[k] >= 3*mean,
			Detail: map[string]string{
				"cluster_low":  strconv.FormatFloat(lo, 'f', -1, 64),
				"cluster_high": strconv.FormatFloat(hi, 'f', -1, 64),
				"weight_ratio": strconv.FormatFloat(bins[k]/mean, 'f', 4, 64),
			},
		}
		if bias == models.Bearish {
			dist := price - hi
			p.PriceTarget = lo - width
			p.StopLoss = price + math.Max(dist, width)
		} else {
			dist := lo - price
			p.PriceTarget = hi + width
			p.StopLoss = price - math.Max(dist, width)
		}
		p.StructuralConfidence = math.Min(0.95, 0.4+0.1*bins[k]/mean)
		out = finish(p, out)
	}
	if hasBelow {
		mk(below, models.Bearish)
	}
	if hasAbove {
		mk(above, models.Bullish)
	}
	return out
}
