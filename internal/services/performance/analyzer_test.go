package performance

import (
	"math"
	"testing"
	"time"

	"PatternLab/internal/domain/models"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func curve(caps ...float64) []models.EquityPoint {
	out := make([]models.EquityPoint, len(caps))
	for i, c := range caps {
		out[i] = models.EquityPoint{Timestamp: t0.Add(time.Duration(i) * time.Hour), Capital: c}
	}
	return out
}

func trade(pnl float64, label models.RegimeLabel) models.SimulatedTrade {
	return models.SimulatedTrade{PnL: pnl, Regime: label, EntryTime: t0}
}

func TestNoTrades(t *testing.T) {
	r := Analyze(nil, curve(1000, 1000, 1000), nil, 1000)
	if r.Stats.WinRate != 0 || r.Stats.ProfitFactor != 0 || r.Stats.SharpeRatio != 0 || r.Stats.MaxDrawdown != 0 {
		t.Fatalf("stats %+v", r.Stats)
	}
	if r.Stats.FinalCapital != 1000 || len(r.ByRegime) != 0 {
		t.Fatalf("stats %+v regimes %v", r.Stats, r.ByRegime)
	}
}

func TestSummarize(t *testing.T) {
	trades := []models.SimulatedTrade{
		trade(10.10, models.HighVolatility),
		trade(-4.05, models.HighVolatility),
		trade(20.20, models.LowVolatility),
		trade(0, ""),
	}
	s := Summarize(trades, curve(100, 110.1, 106.05, 126.25, 126.25), 100)
	if s.TotalTrades != 4 || s.WinningTrades != 2 || s.LosingTrades != 1 {
		t.Fatalf("counts %+v", s)
	}
	if s.WinRate != 0.5 {
		t.Fatalf("win rate %v", s.WinRate)
	}
	if s.TotalPnL != 26.25 {
		t.Fatalf("total pnl %v", s.TotalPnL)
	}
	if math.Abs(s.ProfitFactor-30.3/4.05) > 1e-9 {
		t.Fatalf("profit factor %v", s.ProfitFactor)
	}
	if s.FinalCapital != 126.25 {
		t.Fatalf("final %v", s.FinalCapital)
	}
}

func TestProfitFactorCapped(t *testing.T) {
	if got := ProfitFactor(5, 0); got != ProfitFactorCap {
		t.Fatalf("got %v", got)
	}
	if got := ProfitFactor(0, 0); got != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestSharpe(t *testing.T) {
	if got := Sharpe([]float64{0.01, 0.01, 0.01}); got != 0 {
		t.Fatalf("zero variance sharpe = %v", got)
	}
	if got := Sharpe([]float64{0.02}); got != 0 {
		t.Fatalf("single return sharpe = %v", got)
	}
	got := Sharpe([]float64{0.01, 0.03})
	want := 0.02 / math.Sqrt(0.0002)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("sharpe = %v, want %v", got, want)
	}
}

func TestMaxDrawdown(t *testing.T) {
	if got := MaxDrawdown(curve(100, 120, 90, 130, 117), 100); math.Abs(got+0.25) > 1e-12 {
		t.Fatalf("dd = %v, want -0.25", got)
	}
	if got := MaxDrawdown(curve(100, -50), 100); got != -1 {
		t.Fatalf("dd = %v, want -1", got)
	}
	if got := MaxDrawdown(nil, 100); got != 0 {
		t.Fatalf("dd = %v", got)
	}
}

func TestDrawdownFromInitialCapital(t *testing.T) {
	if got := MaxDrawdown(curve(99800, 99800), 100000); math.Abs(got+0.002) > 1e-12 {
		t.Fatalf("first tick loss dd = %v, want -0.002", got)
	}
	if got := MaxDrawdown(curve(-100000), 100000); got != -1 {
		t.Fatalf("wiped out dd = %v, want -1", got)
	}
	if got := MaxDrawdown(curve(0, 0), 100000); got != -1 {
		t.Fatalf("zero equity dd = %v, want -1", got)
	}
}

func TestReturnsStartAtInitialCapital(t *testing.T) {
	r := Returns(curve(110, 121), 100)
	if len(r) != 2 || math.Abs(r[0]-0.1) > 1e-12 || math.Abs(r[1]-0.1) > 1e-12 {
		t.Fatalf("returns %v", r)
	}
	if r := Returns(nil, 100); r != nil {
		t.Fatalf("returns %v", r)
	}
}

func TestFinalCapitalWithoutCurve(t *testing.T) {
	if s := Summarize(nil, nil, 500); s.FinalCapital != 500 {
		t.Fatalf("final %v", s.FinalCapital)
	}
}

func TestByRegime(t *testing.T) {
	regimes := []models.Regime{{
		Label: models.Trending, Start: t0, End: t0.Add(time.Hour), StartIndex: 0, EndIndex: 1,
	}}
	late := trade(3, "")
	late.EntryTime = t0.Add(5 * time.Hour)
	trades := []models.SimulatedTrade{
		trade(10, models.HighVolatility),
		trade(-2, models.HighVolatility),
		trade(4, ""),
		late,
	}
	got := ByRegime(trades, regimes)
	hv := got[models.HighVolatility]
	if hv.Trades != 2 || hv.Winning != 1 || hv.WinRate != 0.5 || hv.TotalPnL != 8 || hv.AvgPnL != 4 {
		t.Fatalf("high_volatility %+v", hv)
	}
	if got[models.Trending].Trades != 1 || got[models.Unclassified].Trades != 1 {
		t.Fatalf("groups %+v", got)
	}
}

func TestOptionsMetrics(t *testing.T) {
	a := trade(1, "")
	a.Options = &models.OptionsContext{IVRank: models.Float(40), PutCallRatio: models.DefinedRatio(0.5), GammaExposure: 10}
	b := trade(1, "")
	b.Options = &models.OptionsContext{IVRank: models.Float(60), PutCallRatio: models.UndefinedRatio(), GammaExposure: 20}
	m := Options([]models.SimulatedTrade{a, b, trade(1, "")})
	if m.TradesWithOptions != 2 || m.UndefinedPutCallCount != 1 {
		t.Fatalf("counts %+v", m)
	}
	if m.AvgIVRank == nil || *m.AvgIVRank != 50 {
		t.Fatalf("iv rank %v", m.AvgIVRank)
	}
	if m.AvgPutCallRatio == nil || *m.AvgPutCallRatio != 0.5 || *m.AvgGammaExposure != 15 {
		t.Fatalf("pcr %v gamma %v", m.AvgPutCallRatio, m.AvgGammaExposure)
	}
	if m.AvgIVPercentile != nil || m.AvgHistoricalVol != nil {
		t.Fatalf("expected nil averages, got %v %v", m.AvgIVPercentile, m.AvgHistoricalVol)
	}
}
