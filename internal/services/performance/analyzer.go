package performance

import (
	"math"

	"github.com/shopspring/decimal"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/services/regime"
)

// ProfitFactorCap is reported when there are winning trades and no losses.
const ProfitFactorCap = 999

// Report is the reduction of one run.
type Report struct {
	Stats    models.Stats
	ByRegime map[models.RegimeLabel]models.RegimeStats
	Options  models.OptionsMetrics
}

// Analyze reduces a trade log and equity curve. The curve is measured from
// initial, the capital before its first point. Trades carry their entry regime;
// untagged trades are looked up in regimes and fall back to unclassified.
func Analyze(trades []models.SimulatedTrade, equity []models.EquityPoint, regimes []models.Regime, initial float64) Report {
	return Report{
		Stats:    Summarize(trades, equity, initial),
		ByRegime: ByRegime(trades, regimes),
		Options:  Options(trades),
	}
}

func Summarize(trades []models.SimulatedTrade, equity []models.EquityPoint, initial float64) models.Stats {
	var s models.Stats
	total := decimal.Zero
	var gain, loss float64
	for _, t := range trades {
		total = total.Add(decimal.NewFromFloat(t.PnL))
		switch {
		case t.PnL > 0:
			s.WinningTrades++
			gain += t.PnL
		case t.PnL < 0:
			s.LosingTrades++
			loss -= t.PnL
		}
	}
	s.TotalTrades = len(trades)
	s.TotalPnL = total.Round(2).InexactFloat64()
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
		s.AvgTrade = total.Div(decimal.NewFromInt(int64(s.TotalTrades))).Round(2).InexactFloat64()
	}
	s.ProfitFactor = ProfitFactor(gain, loss)
	s.SharpeRatio = Sharpe(Returns(equity, initial))
	s.MaxDrawdown = MaxDrawdown(equity, initial)
	s.FinalCapital = initial
	if len(equity) > 0 {
		s.FinalCapital = equity[len(equity)-1].Capital
	}
	return s
}

func ProfitFactor(gain, loss float64) float64 {
	if loss == 0 {
		if gain > 0 {
			return ProfitFactorCap
		}
		return 0
	}
	return gain / loss
}

// Returns is the pct change of the equity curve, the first period measured from
// initial. Steps from a non-positive capital are skipped.
func Returns(equity []models.EquityPoint, initial float64) []float64 {
	if len(equity) == 0 {
		return nil
	}
	out := make([]float64, 0, len(equity))
	prev := initial
	for _, p := range equity {
		if prev > 0 {
			out = append(out, p.Capital/prev-1)
		}
		prev = p.Capital
	}
	return out
}

// Sharpe is mean/std of per-period returns with the sample std. It is 0 for fewer
// than two returns or zero variance.
func Sharpe(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)
	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(n-1))
	if std <= 1e-12 || math.IsNaN(std) {
		return 0
	}
	return mean / std
}

// MaxDrawdown is the deepest (equity - peak)/peak, within [-1, 0]. The running
// peak starts at initial. Any non-positive equity is a total loss.
func MaxDrawdown(equity []models.EquityPoint, initial float64) float64 {
	var dd float64
	peak := initial
	for _, p := range equity {
		if p.Capital <= 0 {
			return -1
		}
		if p.Capital > peak {
			peak = p.Capital
		}
		if d := (p.Capital - peak) / peak; d < dd {
			dd = d
		}
	}
	return dd
}

func ByRegime(trades []models.SimulatedTrade, regimes []models.Regime) map[models.RegimeLabel]models.RegimeStats {
	out := make(map[models.RegimeLabel]models.RegimeStats)
	sums := make(map[models.RegimeLabel]decimal.Decimal)
	for _, t := range trades {
		label := t.Regime
		if label == "" {
			label = regime.LabelAt(regimes, t.EntryTime)
		}
		rs := out[label]
		rs.Trades++
		if t.PnL > 0 {
			rs.Winning++
		}
		sums[label] = sums[label].Add(decimal.NewFromFloat(t.PnL))
		out[label] = rs
	}
	for label, rs := range out {
		sum := sums[label]
		rs.WinRate = float64(rs.Winning) / float64(rs.Trades)
		rs.TotalPnL = sum.Round(2).InexactFloat64()
		rs.AvgPnL = sum.Div(decimal.NewFromInt(int64(rs.Trades))).Round(2).InexactFloat64()
		out[label] = rs
	}
	return out
}

// Options averages the options context captured at entry. Nil averages mean no trade had a value.
func Options(trades []models.SimulatedTrade) models.OptionsMetrics {
	var m models.OptionsMetrics
	var rank, pct, hv, pcr, gamma mean
	for _, t := range trades {
		o := t.Options
		if o == nil {
			continue
		}
		m.TradesWithOptions++
		rank.addPtr(o.IVRank)
		pct.addPtr(o.IVPercentile)
		hv.addPtr(o.HistoricalVolatility)
		if o.PutCallRatio.Defined {
			pcr.add(o.PutCallRatio.Value)
		} else {
			m.UndefinedPutCallCount++
		}
		gamma.add(o.GammaExposure)
	}
	m.AvgIVRank = rank.value()
	m.AvgIVPercentile = pct.value()
	m.AvgHistoricalVol = hv.value()
	m.AvgPutCallRatio = pcr.value()
	m.AvgGammaExposure = gamma.value()
	return m
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	m.sum += v
	m.n++
}

func (m *mean) addPtr(v *float64) {
	if v != nil {
		m.add(*v)
	}
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	return models.Float(m.sum / float64(m.n))
}
