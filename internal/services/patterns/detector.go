package patterns

import (
	"math"

	"PatternLab/internal/domain/models"
)

// Input is the view handed to a detector at one scan position. Bars ends at the
// position, so nothing after it is reachable. ATR is aligned to Bars.
type Input struct {
	Bars   []models.Bar
	ATR    []float64
	Levels []Level
}

// Level is an externally supplied price level with a weight, e.g. open interest by strike.
type Level struct {
	Price  float64
	Weight float64
}

// Detector emits zero or more patterns from the trailing window of its input.
// Window returns 0 for detectors that consume the whole series once.
type Detector interface {
	Types() []models.PatternType
	Window() int
	Detect(in Input) []models.Pattern
}

// Config holds detector thresholds. Windows are keyed by the first type of each family.
type Config struct {
	Windows           map[models.PatternType]int
	PeakOrder         int
	PeakTolerance     float64 // double top/bottom peak similarity
	MinTroughDepth    float64 // double top/bottom depth between peaks
	ShoulderTolerance float64
	WyckoffTestBars   int
	OrderblockVolume  float64 // k in volume >= k * mean
	ClusterTolerance  float64 // liquidity swing cluster width
	LeverageTiers     []float64
	LiquidationBin    float64 // bin width as fraction of price
	LiquidationRange  float64 // max distance from price
	ProfileBins       int
	Workers           int
}

// DefaultConfig returns the stock windows and thresholds.
func DefaultConfig() Config {
	return Config{
		Windows: map[models.PatternType]int{
			models.DoubleTop:        20,
			models.HeadAndShoulders: 30,
			models.WyckoffSpring:    30,
			models.Orderblock:       15,
			models.LiquidityLevel:   50,
		},
		PeakOrder:         2,
		PeakTolerance:     0.02,
		MinTroughDepth:    0.03,
		ShoulderTolerance: 0.05,
		WyckoffTestBars:   5,
		OrderblockVolume:  2,
		ClusterTolerance:  0.005,
		LeverageTiers:     []float64{25, 50, 100},
		LiquidationBin:    0.005,
		LiquidationRange:  0.05,
		ProfileBins:       24,
		Workers:           4,
	}
}

// family maps every type to the key its window is stored under.
func family(t models.PatternType) models.PatternType {
	switch t {
	case models.DoubleBottom:
		return models.DoubleTop
	case models.InverseHeadAndShoulders:
		return models.HeadAndShoulders
	case models.WyckoffDistribution:
		return models.WyckoffSpring
	default:
		return t
	}
}

func (c Config) window(t models.PatternType) int { return c.Windows[family(t)] }

// tail returns the last w bars of in and the absolute index of the first one.
func tail(in Input, w int) ([]models.Bar, int, bool) {
	n := len(in.Bars)
	if w <= 0 || n < w {
		return nil, 0, false
	}
	return in.Bars[n-w:], n - w, true
}

func lastATR(in Input) (float64, bool) {
	if len(in.ATR) == 0 {
		return 0, false
	}
	a := in.ATR[len(in.ATR)-1]
	return a, a > 0 && !math.IsNaN(a) && !math.IsInf(a, 0)
}

func highs(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lows(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

func meanVolume(bars []models.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var s float64
	for _, b := range bars {
		s += b.Volume
	}
	return s / float64(len(bars))
}

func point(bars []models.Bar, start, i int, price float64) models.FormationPoint {
	return models.FormationPoint{Index: start + i, Price: price, Time: bars[i].Timestamp}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

// finish fills the bookkeeping fields and drops patterns whose levels are inconsistent.
func finish(p models.Pattern, out []models.Pattern) []models.Pattern {
	p.StructuralConfidence = clamp01(p.StructuralConfidence)
	p.BlendedConfidence = p.StructuralConfidence
	p.ConfidenceSource = models.SourceStructural
	if p.PriceTarget <= 0 {
		return out
	}
	if err := p.CheckLevels(); err != nil {
		return out
	}
	return append(out, p)
}
