package patterns

import (
	"math"
	"strconv"

	"PatternLab/internal/domain/models"
)

// OrderblockDetector checks whether the last bar of the window is a high-volume
// rejection candle relative to the bars before it.
type OrderblockDetector struct {
	cfg Config
}

func NewOrderblockDetector(cfg Config) *OrderblockDetector { return &OrderblockDetector{cfg: cfg} }

func (d *OrderblockDetector) Types() []models.PatternType {
	return []models.PatternType{models.Orderblock}
}

func (d *OrderblockDetector) Window() int { return d.cfg.window(models.Orderblock) }

func (d *OrderblockDetector) Detect(in Input) []models.Pattern {
	bars, start, ok := tail(in, d.Window())
	if !ok || len(bars) < 2 {
		return nil
	}
	last := len(bars) - 1
	c := bars[last]
	avg := meanVolume(bars[:last])
	if avg <= 0 || c.Volume < d.cfg.OrderblockVolume*avg {
		return nil
	}
	rng := c.High - c.Low
	if rng <= 0 {
		return nil
	}
	body := math.Abs(c.Close - c.Open)
	upper := c.High - math.Max(c.Open, c.Close)
	lower := math.Min(c.Open, c.Close) - c.Low
	ratio := c.Volume / avg

	p := models.Pattern{
		Type:           models.Orderblock,
		WindowStart:    start,
		WindowEnd:      start + last,
		VolumeConfirms: true,
		Detail:         map[string]string{"volume_ratio": strconv.FormatFloat(ratio, 'f', 4, 64)},
	}
	var wick float64
	switch {
	case lower > upper && lower >= 2*body && lower >= 0.5*rng:
		wick = lower
		p.Bias = models.Bullish
		p.PriceTarget = c.Close + 2*rng
		p.StopLoss = c.Low - 0.1*rng
		p.FormationPoints = []models.FormationPoint{point(bars, start, last, c.Low)}
	case upper > lower && upper >= 2*body && upper >= 0.5*rng:
		wick = upper
		p.Bias = models.Bearish
		p.PriceTarget = c.Close - 2*rng
		p.StopLoss = c.High + 0.1*rng
		p.FormationPoints = []models.FormationPoint{point(bars, start, last, c.High)}
	default:
		return nil
	}
	k := d.cfg.OrderblockVolume
	p.StructuralConfidence = 0.4 + 0.3*math.Min(1, (ratio-k)/k) + 0.3*(wick/rng)
	return finish(p, nil)
}
