package regime

import (
	"math"
	"sort"
	"time"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/services/indicators"
)

// Config sets the rolling windows and efficiency-ratio cut-offs.
type Config struct {
	VolWindow   int
	TrendWindow int
	TrendingER  float64
	RangingER   float64
}

func DefaultConfig() Config {
	return Config{VolWindow: 30, TrendWindow: 30, TrendingER: 0.6, RangingER: 0.2}
}

// Segmenter turns price history into labelled [start, end) intervals.
type Segmenter struct {
	cfg Config
}

func New(cfg Config) *Segmenter {
	d := DefaultConfig()
	if cfg.VolWindow < 2 {
		cfg.VolWindow = d.VolWindow
	}
	if cfg.TrendWindow < 1 {
		cfg.TrendWindow = d.TrendWindow
	}
	return &Segmenter{cfg: cfg}
}

// Returns are simple close-to-close changes aligned to bars; index 0 is NaN.
func Returns(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	if len(out) > 0 {
		out[0] = math.NaN()
	}
	for i := 1; i < len(bars); i++ {
		out[i] = bars[i].Close/bars[i-1].Close - 1
	}
	return out
}

// RollingVol is the sample std of the trailing VolWindow returns.
func (s *Segmenter) RollingVol(bars []models.Bar) []float64 {
	return indicators.RollingStd(Returns(bars), s.cfg.VolWindow)
}

// Segment labels bars whose rolling vol sits more than one standard deviation
// above (high) or below (low) the mean of all defined rolling vol values.
func (s *Segmenter) Segment(bars []models.Bar) []models.Regime {
	vol := s.RollingVol(bars)
	var defined []float64
	for _, v := range vol {
		if !math.IsNaN(v) {
			defined = append(defined, v)
		}
	}
	if len(defined) < 2 {
		return nil
	}
	mean, std := meanStd(defined)
	if std <= 1e-12*math.Max(1, math.Abs(mean)) {
		return nil
	}
	high := make([]bool, len(bars))
	low := make([]bool, len(bars))
	for i, v := range vol {
		if math.IsNaN(v) {
			continue
		}
		high[i] = v > mean+std
		low[i] = v < mean-std
	}
	out := append(Intervals(bars, high, models.HighVolatility), Intervals(bars, low, models.LowVolatility)...)
	sortRegimes(out)
	return out
}

// EfficiencyRatio is |net change| / path length over the trailing window; NaN when flat.
func EfficiencyRatio(bars []models.Bar, w int) []float64 {
	out := make([]float64, len(bars))
	for i := range out {
		out[i] = math.NaN()
		if i < w {
			continue
		}
		var path float64
		for k := i - w + 1; k <= i; k++ {
			path += math.Abs(bars[k].Close - bars[k-1].Close)
		}
		if path > 0 {
			out[i] = math.Abs(bars[i].Close-bars[i-w].Close) / path
		}
	}
	return out
}

// SegmentTrend labels trending and ranging stretches by efficiency ratio.
func (s *Segmenter) SegmentTrend(bars []models.Bar) []models.Regime {
	er := EfficiencyRatio(bars, s.cfg.TrendWindow)
	trend := make([]bool, len(bars))
	rng := make([]bool, len(bars))
	for i, v := range er {
		if math.IsNaN(v) {
			continue
		}
		trend[i] = v >= s.cfg.TrendingER
		rng[i] = v <= s.cfg.RangingER
	}
	out := append(Intervals(bars, trend, models.Trending), Intervals(bars, rng, models.Ranging)...)
	sortRegimes(out)
	return out
}

// SegmentAll merges volatility and trend regimes.
func (s *Segmenter) SegmentAll(bars []models.Bar) []models.Regime {
	out := append(s.Segment(bars), s.SegmentTrend(bars)...)
	sortRegimes(out)
	return out
}

// Intervals converts a mask into maximal runs. A run ends at the first false bar
// (exclusive); a run still open at the end closes at the final timestamp.
func Intervals(bars []models.Bar, mask []bool, label models.RegimeLabel) []models.Regime {
	var out []models.Regime
	start := -1
	for i := range bars {
		switch {
		case mask[i] && start < 0:
			start = i
		case !mask[i] && start >= 0:
			out = append(out, models.Regime{
				Label: label, Start: bars[start].Timestamp, End: bars[i].Timestamp,
				StartIndex: start, EndIndex: i,
			})
			start = -1
		}
	}
	if start >= 0 {
		last := len(bars) - 1
		out = append(out, models.Regime{
			Label: label, Start: bars[start].Timestamp, End: bars[last].Timestamp,
			StartIndex: start, EndIndex: last,
		})
	}
	return out
}

// ActiveAt returns the regime that attributes t. A volatility regime wins over a
// trend regime covering the same bar; otherwise the earliest-starting one does.
func ActiveAt(regimes []models.Regime, t time.Time) (models.Regime, bool) {
	var found models.Regime
	ok := false
	for _, r := range regimes {
		if !r.Contains(t) {
			continue
		}
		if isVolatility(r.Label) {
			return r, true
		}
		if !ok {
			found, ok = r, true
		}
	}
	return found, ok
}

func isVolatility(l models.RegimeLabel) bool {
	return l == models.HighVolatility || l == models.LowVolatility
}

// LabelAt is ActiveAt reduced to a label, Unclassified when none applies.
func LabelAt(regimes []models.Regime, t time.Time) models.RegimeLabel {
	if r, ok := ActiveAt(regimes, t); ok {
		return r.Label
	}
	return models.Unclassified
}

// LabelsAt returns every label active at t.
func LabelsAt(regimes []models.Regime, t time.Time) []models.RegimeLabel {
	var out []models.RegimeLabel
	for _, r := range regimes {
		if r.Contains(t) {
			out = append(out, r.Label)
		}
	}
	return out
}

func sortRegimes(rs []models.Regime) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].StartIndex != rs[j].StartIndex {
			return rs[i].StartIndex < rs[j].StartIndex
		}
		return rs[i].Label < rs[j].Label
	})
}

func meanStd(x []float64) (float64, float64) {
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(len(x))
	var ss float64
	for _, v := range x {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(x)-1))
}
