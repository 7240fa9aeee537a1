package patterns

import (
	"math"
	"strconv"

	"PatternLab/internal/domain/models"
)

// WyckoffDetector splits the window into a trading range and a test segment of the
// last WyckoffTestBars bars. A spring pierces support in the test segment and closes
// back inside the range; a distribution upthrust does the same through resistance.
type WyckoffDetector struct {
	cfg Config
}

func NewWyckoffDetector(cfg Config) *WyckoffDetector { return &WyckoffDetector{cfg: cfg} }

func (d *WyckoffDetector) Types() []models.PatternType {
	return []models.PatternType{models.WyckoffSpring, models.WyckoffDistribution}
}

func (d *WyckoffDetector) Window() int { return d.cfg.window(models.WyckoffSpring) }

func (d *WyckoffDetector) Detect(in Input) []models.Pattern {
	bars, start, ok := tail(in, d.Window())
	if !ok {
		return nil
	}
	test := d.cfg.WyckoffTestBars
	if test < 1 || test >= len(bars)-2 {
		return nil
	}
	atr, ok := lastATR(in)
	if !ok {
		return nil
	}
	rng := bars[:len(bars)-test]
	supIdx, resIdx := 0, 0
	for i, b := range rng {
		if b.Low < rng[supIdx].Low {
			supIdx = i
		}
		if b.High > rng[resIdx].High {
			resIdx = i
		}
	}
	support, resistance := rng[supIdx].Low, rng[resIdx].High
	if resistance <= support {
		return nil
	}
	half := len(rng) / 2
	declining := meanVolume(rng[half:]) < meanVolume(rng[:half])

	var out []models.Pattern
	if p, ok := d.spring(bars, start, len(rng), supIdx, support, resistance, atr, declining); ok {
		out = finish(p, out)
	}
	if p, ok := d.upthrust(bars, start, len(rng), resIdx, support, resistance, atr, declining); ok {
		out = finish(p, out)
	}
	return out
}

func (d *WyckoffDetector) spring(bars []models.Bar, start, from, supIdx int, support, resistance, atr float64, declining bool) (models.Pattern, bool) {
	s := -1
	for i := from; i < len(bars); i++ {
		if bars[i].Low < support && (s < 0 || bars[i].Low < bars[s].Low) {
			s = i
		}
	}
	last := len(bars) - 1
	closeLast := bars[last].Close
	if s < 0 || closeLast <= support || closeLast >= resistance {
		return models.Pattern{}, false
	}
	points := []models.FormationPoint{
		point(bars, start, supIdx, support),
		point(bars, start, s, bars[s].Low),
	}
	if s < last {
		points = append(points, point(bars, start, last, closeLast))
	}
	reclaim := (closeLast - support) / (resistance - support)
	return models.Pattern{
		Type:                 models.WyckoffSpring,
		Bias:                 models.Bullish,
		WindowStart:          start,
		WindowEnd:            start + last,
		StructuralConfidence: wyckoffConfidence(reclaim, declining),
		PriceTarget:          resistance,
		StopLoss:             bars[s].Low - 0.5*atr,
		FormationPoints:      points,
		VolumeConfirms:       declining,
		Detail: map[string]string{
			"support":    strconv.FormatFloat(support, 'f', -1, 64),
			"resistance": strconv.FormatFloat(resistance, 'f', -1, 64),
		},
	}, true
}

func (d *WyckoffDetector) upthrust(bars []models.Bar, start, from, resIdx int, support, resistance, atr float64, declining bool) (models.Pattern, bool) {
	u := -1
	for i := from; i < len(bars); i++ {
		if bars[i].High > resistance && (u < 0 || bars[i].High > bars[u].High) {
			u = i
		}
	}
	last := len(bars) - 1
	closeLast := bars[last].Close
	if u < 0 || closeLast >= resistance || closeLast <= support {
		return models.Pattern{}, false
	}
	points := []models.FormationPoint{
		point(bars, start, resIdx, resistance),
		point(bars, start, u, bars[u].High),
	}
	if u < last {
		points = append(points, point(bars, start, last, closeLast))
	}
	reject := (resistance - closeLast) / (resistance - support)
	return models.Pattern{
		Type:                 models.WyckoffDistribution,
		Bias:                 models.Bearish,
		WindowStart:          start,
		WindowEnd:            start + last,
		StructuralConfidence: wyckoffConfidence(reject, declining),
		PriceTarget:          support,
		StopLoss:             bars[u].High + 0.5*atr,
		FormationPoints:      points,
		VolumeConfirms:       declining,
		Detail: map[string]string{
			"support":    strconv.FormatFloat(support, 'f', -1, 64),
			"resistance": strconv.FormatFloat(resistance, 'f', -1, 64),
		},
	}, true
}

func wyckoffConfidence(strength float64, declining bool) float64 {
	c := 0.5 + 0.3*math.Min(1, math.Max(0, strength))
	if declining {
		c += 0.2
	}
	return c
}
