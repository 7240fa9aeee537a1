package indicators

import (
	"math"
	"sort"
	"strconv"

	"PatternLab/internal/domain/models"
)

// IVRank = (current - low) / (high - low) * 100. Nil when the 52w range is degenerate.
func IVRank(c *models.OptionsChain) *float64 {
	if c == nil {
		return nil
	}
	den := c.IV52wHigh - c.IV52wLow
	if den == 0 || math.IsNaN(den) {
		return nil
	}
	v := (c.CurrentIV - c.IV52wLow) / den * 100
	return models.Float(math.Min(100, math.Max(0, v)))
}

// IVPercentile is the share of historical IV observations strictly below the current IV.
func IVPercentile(c *models.OptionsChain) *float64 {
	if c == nil || len(c.IVHistory) == 0 {
		return nil
	}
	below := 0
	for _, iv := range c.IVHistory {
		if iv < c.CurrentIV {
			below++
		}
	}
	return models.Float(float64(below) / float64(len(c.IVHistory)) * 100)
}

// PutCallRatio sums volumes across strikes. Undefined when call volume is zero.
func PutCallRatio(c *models.OptionsChain) models.Ratio {
	if c == nil {
		return models.UndefinedRatio()
	}
	var puts, calls float64
	for _, v := range c.PutVolumes {
		puts += v
	}
	for _, v := range c.CallVolumes {
		calls += v
	}
	if calls == 0 {
		return models.UndefinedRatio()
	}
	return models.DefinedRatio(puts / calls)
}

// GammaExposure sums gamma times open interest over all positions.
func GammaExposure(c *models.OptionsChain) float64 {
	if c == nil {
		return 0
	}
	var g float64
	for _, p := range c.Positions {
		g += p.Gamma * p.OpenInterest
	}
	return g
}

// OpenInterest aggregates open interest per strike.
func OpenInterest(c *models.OptionsChain) map[string]float64 {
	if c == nil || len(c.Positions) == 0 {
		return nil
	}
	out := make(map[string]float64)
	for _, p := range c.Positions {
		out[StrikeKey(p.Strike)] += p.OpenInterest
	}
	return out
}

// StrikeKey renders a strike as a stable map key.
func StrikeKey(k float64) string { return strconv.FormatFloat(k, 'f', -1, 64) }

// MaxPain returns the listed strike minimising total intrinsic value owed by option
// sellers at settlement. Ties resolve to the lowest strike.
func MaxPain(c *models.OptionsChain) *float64 {
	if c == nil || len(c.Positions) == 0 {
		return nil
	}
	strikes := make([]float64, 0, len(c.Positions))
	seen := make(map[float64]bool)
	for _, p := range c.Positions {
		if !seen[p.Strike] {
			seen[p.Strike] = true
			strikes = append(strikes, p.Strike)
		}
	}
	sort.Float64s(strikes)
	best, bestLiab := strikes[0], math.Inf(1)
	for _, s := range strikes {
		liab := 0.0
		for _, p := range c.Positions {
			switch p.Kind {
			case models.Call:
				liab += p.OpenInterest * math.Max(0, s-p.Strike)
			case models.Put:
				liab += p.OpenInterest * math.Max(0, p.Strike-s)
			}
		}
		if liab < bestLiab {
			best, bestLiab = s, liab
		}
	}
	return models.Float(best)
}

func copyMap(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
