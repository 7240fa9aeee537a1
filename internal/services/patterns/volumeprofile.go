package patterns

import (
	"math"
	"strconv"

	"PatternLab/internal/domain/models"
)

// Node kinds reported in Pattern.Detail["node"].
const (
	NodePOC = "poc"
	NodeHVN = "hvn"
	NodeLVN = "lvn"
)

// VolumeProfileDetector buckets volume by typical price over the whole series and
// reports the point of control plus high and low volume nodes away from the last close.
// Nodes above price are bullish objectives, nodes below bearish.
type VolumeProfileDetector struct {
	cfg Config
}

func NewVolumeProfileDetector(cfg Config) *VolumeProfileDetector {
	return &VolumeProfileDetector{cfg: cfg}
}

func (d *VolumeProfileDetector) Types() []models.PatternType {
	return []models.PatternType{models.VolumeNode}
}

func (d *VolumeProfileDetector) Window() int { return 0 }

// Profile is a fixed-bin volume histogram.
type Profile struct {
	Low, Width float64
	Volume     []float64
}

// BuildProfile assigns each bar's volume to the bin of its typical price.
func BuildProfile(bars []models.Bar, bins int) (Profile, bool) {
	if len(bars) == 0 || bins < 2 {
		return Profile{}, false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range bars {
		lo, hi = math.Min(lo, b.Low), math.Max(hi, b.High)
	}
	if hi <= lo {
		return Profile{}, false
	}
	p := Profile{Low: lo, Width: (hi - lo) / float64(bins), Volume: make([]float64, bins)}
	for _, b := range bars {
		i := int((b.TypicalPrice() - lo) / p.Width)
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		p.Volume[i] += b.Volume
	}
	return p, true
}

func (d *VolumeProfileDetector) Detect(in Input) []models.Pattern {
	n := len(in.Bars)
	prof, ok := BuildProfile(in.Bars, d.cfg.ProfileBins)
	if !ok {
		return nil
	}
	var total float64
	poc := 0
	for i, v := range prof.Volume {
		total += v
		if v > prof.Volume[poc] {
			poc = i
		}
	}
	if total <= 0 {
		return nil
	}
	mean := total / float64(len(prof.Volume))
	last := in.Bars[n-1]
	price := last.Close

	var out []models.Pattern
	for i, v := range prof.Volume {
		var kind string
		switch {
		case i == poc:
			kind = NodePOC
		case v >= 1.5*mean:
			kind = NodeHVN
		case v > 0 && v <= 0.5*mean:
			kind = NodeLVN
		default:
			continue
		}
		lo := prof.Low + float64(i)*prof.Width
		hi := lo + prof.Width
		if price >= lo && price < hi {
			continue
		}
		mid := (lo + hi) / 2
		dist := math.Abs(mid - price)
		p := models.Pattern{
			Type:            models.VolumeNode,
			WindowStart:     0,
			WindowEnd:       n - 1,
			FormationPoints: []models.FormationPoint{{Index: n - 1, Price: price, Time: last.Timestamp}},
			VolumeConfirms:  kind != NodeLVN,
			Detail: map[string]string{
				"node":      kind,
				"node_low":  strconv.FormatFloat(lo, 'f', -1, 64),
				"node_high": strconv.FormatFloat(hi, 'f', -1, 64),
			},
		}
		stopDist := math.Max(prof.Width, 0.5*dist)
		if mid > price {
			p.Bias = models.Bullish
			p.PriceTarget = mid
			p.StopLoss = price - stopDist
		} else {
			p.Bias = models.Bearish
			p.PriceTarget = mid
			p.StopLoss = price + stopDist
		}
		switch kind {
		case NodePOC:
			p.StructuralConfidence = 0.8
		case NodeHVN:
			p.StructuralConfidence = 0.5 + 0.3*math.Min(1, (v/mean-1.5)/1.5)
		default:
			p.StructuralConfidence = 0.5 + 0.3*(1-v/(0.5*mean))
		}
		out = finish(p, out)
	}
	return out
}
