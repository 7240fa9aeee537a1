package models

import (
	"fmt"
	"math"
	"time"
)

// PatternType is the closed set of structural patterns.
type PatternType string

const (
	DoubleTop               PatternType = "double_top"
	DoubleBottom            PatternType = "double_bottom"
	HeadAndShoulders        PatternType = "head_and_shoulders"
	InverseHeadAndShoulders PatternType = "inverse_head_and_shoulders"
	WyckoffSpring           PatternType = "wyckoff_spring"
	WyckoffDistribution     PatternType = "wyckoff_distribution"
	Orderblock              PatternType = "orderblock"
	LiquidityLevel          PatternType = "liquidity_level"
	LiquidationCascade      PatternType = "liquidation_cascade"
	VolumeNode              PatternType = "volume_node"
)

// PatternTypes lists every type in name order.
var PatternTypes = []PatternType{
	DoubleBottom, DoubleTop, HeadAndShoulders, InverseHeadAndShoulders,
	LiquidationCascade, LiquidityLevel, Orderblock, VolumeNode,
	WyckoffDistribution, WyckoffSpring,
}

// IsValid reports whether t belongs to the enumeration.
func (t PatternType) IsValid() bool {
	for _, v := range PatternTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Bias is the expected direction after the pattern completes.
type Bias string

const (
	Bullish Bias = "bullish"
	Bearish Bias = "bearish"
)

// ConfidenceSource tells callers whether the classifier contributed.
type ConfidenceSource string

const (
	SourceStructural ConfidenceSource = "structural"
	SourceBlended    ConfidenceSource = "blended"
)

// FormationPoint is a key price of the pattern.
type FormationPoint struct {
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
}

// Pattern is a structural detection. Only the confidence fields change after detection.
type Pattern struct {
	Type                 PatternType       `json:"type"`
	Bias                 Bias              `json:"bias"`
	WindowStart          int               `json:"window_start"`
	WindowEnd            int               `json:"window_end"`
	StructuralConfidence float64           `json:"structural_confidence"`
	BlendedConfidence    float64           `json:"blended_confidence"`
	ConfidenceSource     ConfidenceSource  `json:"confidence_source,omitempty"`
	PriceTarget          float64           `json:"price_target"`
	StopLoss             float64           `json:"stop_loss"`
	FormationPoints      []FormationPoint  `json:"formation_points"`
	VolumeConfirms       bool              `json:"volume_confirms"`
	Detail               map[string]string `json:"detail,omitempty"`
}

// FormationHigh is the highest formation price.
func (p Pattern) FormationHigh() float64 {
	hi := math.Inf(-1)
	for _, fp := range p.FormationPoints {
		hi = math.Max(hi, fp.Price)
	}
	return hi
}

// FormationLow is the lowest formation price.
func (p Pattern) FormationLow() float64 {
	lo := math.Inf(1)
	for _, fp := range p.FormationPoints {
		lo = math.Min(lo, fp.Price)
	}
	return lo
}

// LastFormationPrice is the price of the latest formation point.
func (p Pattern) LastFormationPrice() float64 {
	if len(p.FormationPoints) == 0 {
		return math.NaN()
	}
	return p.FormationPoints[len(p.FormationPoints)-1].Price
}

// CheckLevels enforces ordering of formation points and the stop/target inequalities.
// Bearish: stop above the formation high, target below the last formation price.
// Bullish: the inverse.
func (p Pattern) CheckLevels() error {
	if len(p.FormationPoints) == 0 {
		return fmt.Errorf("%s: no formation points", p.Type)
	}
	for i := 1; i < len(p.FormationPoints); i++ {
		if !p.FormationPoints[i].Time.After(p.FormationPoints[i-1].Time) {
			return fmt.Errorf("%s: formation points not strictly increasing in time", p.Type)
		}
	}
	if math.IsNaN(p.StopLoss) || math.IsNaN(p.PriceTarget) {
		return fmt.Errorf("%s: undefined stop or target", p.Type)
	}
	last := p.LastFormationPrice()
	switch p.Bias {
	case Bearish:
		if !(p.StopLoss > p.FormationHigh()) {
			return fmt.Errorf("%s: stop %.6f not above formation high %.6f", p.Type, p.StopLoss, p.FormationHigh())
		}
		if !(p.PriceTarget < last) {
			return fmt.Errorf("%s: target %.6f not below last formation price %.6f", p.Type, p.PriceTarget, last)
		}
	case Bullish:
		if !(p.StopLoss < p.FormationLow()) {
			return fmt.Errorf("%s: stop %.6f not below formation low %.6f", p.Type, p.StopLoss, p.FormationLow())
		}
		if !(p.PriceTarget > last) {
			return fmt.Errorf("%s: target %.6f not above last formation price %.6f", p.Type, p.PriceTarget, last)
		}
	default:
		return fmt.Errorf("%s: unknown bias %q", p.Type, p.Bias)
	}
	return nil
}

// PatternOutcome is the offline lookahead score of a pattern.
type PatternOutcome struct {
	Type       PatternType `json:"type"`
	WindowEnd  int         `json:"window_end"`
	TargetHit  bool        `json:"target_hit"`
	StopHit    bool        `json:"stop_hit"`
	Success    bool        `json:"success"`
	Profit     float64     `json:"profit"`
	Confidence float64     `json:"confidence"`
	FutureBars int         `json:"future_bars"`
}

// PatternEvaluation summarizes outcomes over a pattern set.
type PatternEvaluation struct {
	Outcomes              []PatternOutcome    `json:"outcomes"`
	Accuracy              float64             `json:"accuracy"`
	AverageProfit         float64             `json:"average_profit"`
	Distribution          map[PatternType]int `json:"distribution"`
	ConfidenceCorrelation float64             `json:"confidence_correlation"`
	Skipped               int                 `json:"skipped"`
}
