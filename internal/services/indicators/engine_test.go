package indicators

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"PatternLab/internal/domain/models"
)

func genBars(n int) []models.Bar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	prev := 100.0
	for i := 0; i < n; i++ {
		f := float64(i)
		c := 100 + 10*math.Sin(f/7) + 3*math.Sin(f/2.3) + 0.05*f
		o := prev
		bars[i] = models.Bar{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      o,
			High:      math.Max(o, c) + 1 + 0.5*math.Abs(math.Sin(f)),
			Low:       math.Min(o, c) - 1,
			Close:     c,
			Volume:    1000 + 100*float64(i%7),
		}
		prev = c
	}
	return bars
}

func TestEMASeededByFirstValue(t *testing.T) {
	got := EMA([]float64{10, 20, 20}, 3)
	if got[0] != 10 || got[1] != 15 || got[2] != 17.5 {
		t.Fatalf("unexpected ema: %v", got)
	}
}

func TestSMAWarmupAbsent(t *testing.T) {
	bars := genBars(250)
	sets := New(DefaultConfig()).Compute(bars)
	if sets[198].Has(SMAName(200)) {
		t.Fatalf("sma_200 present before 200 bars")
	}
	if !sets[199].Has(SMAName(200)) {
		t.Fatalf("sma_200 missing at bar 200")
	}
	if sets[0].Has(RSIName(14)) || sets[0].Has(NameBBUpper) {
		t.Fatalf("lookback indicators present on first bar: %v", sets[0])
	}
	if _, ok := sets[0].Get(EMAName(9)); !ok {
		t.Fatalf("ema should be present from the first bar")
	}
}

func TestBollingerOrdering(t *testing.T) {
	bars := genBars(300)
	up, mid, lo := Bollinger(models.Closes(bars), 20, 2)
	seen := 0
	for i := range bars {
		if math.IsNaN(mid[i]) {
			continue
		}
		seen++
		if !(up[i] >= mid[i] && mid[i] >= lo[i]) {
			t.Fatalf("bar %d: bands out of order %f %f %f", i, up[i], mid[i], lo[i])
		}
	}
	if seen != 281 {
		t.Fatalf("expected 281 defined bands, got %d", seen)
	}
	// negative multiplier still keeps the ordering
	up, mid, lo = Bollinger(models.Closes(bars), 20, -2)
	if !(up[50] >= mid[50] && mid[50] >= lo[50]) {
		t.Fatalf("negative multiplier broke ordering")
	}
}

func TestRSIBounds(t *testing.T) {
	bars := genBars(300)
	rsi := RSI(models.Closes(bars), 14)
	for i, v := range rsi {
		if math.IsNaN(v) {
			if i >= 14 {
				t.Fatalf("rsi missing at %d", i)
			}
			continue
		}
		if v < 0 || v > 100 {
			t.Fatalf("rsi out of range at %d: %f", i, v)
		}
	}
	rising := make([]float64, 30)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	if got := RSI(rising, 14)[29]; got != 100 {
		t.Fatalf("rsi with no losses = %f, want 100", got)
	}
}

func TestATRFirstTrueRange(t *testing.T) {
	bars := genBars(20)
	tr := TrueRange(bars)
	if tr[0] != bars[0].High-bars[0].Low {
		t.Fatalf("first true range should be high-low")
	}
	atr := ATR(bars, 14)
	if !math.IsNaN(atr[12]) || math.IsNaN(atr[13]) {
		t.Fatalf("atr warmup wrong: %v %v", atr[12], atr[13])
	}
}

func TestHistoricalVolatilityFlat(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 50
	}
	hv := HistoricalVolatility(closes, 30)
	if hv[39] != 0 {
		t.Fatalf("flat series hv = %f", hv[39])
	}
	if !math.IsNaN(hv[29]) {
		t.Fatalf("hv defined before 30 returns")
	}
}

func TestComputeIsCausal(t *testing.T) {
	bars := genBars(260)
	e := New(DefaultConfig())
	full := e.Compute(bars)
	for _, k := range []int{1, 15, 40, 120, 201, 259} {
		prefix := e.Compute(bars[:k])
		last := prefix[k-1]
		want := full[k-1]
		if len(last) != len(want) {
			t.Fatalf("k=%d: key count %d vs %d", k, len(last), len(want))
		}
		for name, v := range want {
			if last[name] != v {
				t.Fatalf("k=%d %s: prefix %f full %f", k, name, last[name], v)
			}
		}
	}
}

func TestComputeRespectsGroups(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Momentum = false
	cfg.Candles = false
	sets := New(cfg).Compute(genBars(60))
	if sets[59].Has(RSIName(14)) || sets[59].Has(NameStochK) || sets[59].Has(NameDoji) {
		t.Fatalf("disabled groups leaked: %v", sets[59])
	}
	if !sets[59].Has(ATRName(14)) {
		t.Fatalf("volatility group missing")
	}
}

func TestVWAPZeroVolume(t *testing.T) {
	bars := genBars(5)
	for i := range bars {
		bars[i].Volume = 0
	}
	for i, v := range VWAP(bars) {
		if !math.IsNaN(v) {
			t.Fatalf("vwap defined with zero volume at %d", i)
		}
	}
}

func TestPutCallRatioUndefined(t *testing.T) {
	c := &models.OptionsChain{PutVolumes: map[string]float64{"100": 500}, CallVolumes: map[string]float64{"100": 0}}
	r := PutCallRatio(c)
	if r.Defined {
		t.Fatalf("expected undefined ratio, got %v", r.Value)
	}
	b, err := json.Marshal(r)
	if err != nil || string(b) != "null" {
		t.Fatalf("undefined ratio should encode as null: %s %v", b, err)
	}
	c.CallVolumes["105"] = 250
	if r := PutCallRatio(c); !r.Defined || r.Value != 2 {
		t.Fatalf("ratio = %+v, want 2", r)
	}
}

func TestIVRankDegenerate(t *testing.T) {
	if IVRank(&models.OptionsChain{CurrentIV: 0.3, IV52wHigh: 0.4, IV52wLow: 0.4}) != nil {
		t.Fatalf("expected nil iv rank for flat range")
	}
	got := IVRank(&models.OptionsChain{CurrentIV: 0.3, IV52wHigh: 0.5, IV52wLow: 0.1})
	if got == nil || math.Abs(*got-50) > 1e-9 {
		t.Fatalf("iv rank = %v, want 50", got)
	}
}

func TestIVPercentile(t *testing.T) {
	c := &models.OptionsChain{CurrentIV: 0.3, IVHistory: []float64{0.1, 0.2, 0.3, 0.4}}
	if got := IVPercentile(c); got == nil || *got != 50 {
		t.Fatalf("iv percentile = %v, want 50", got)
	}
	if IVPercentile(&models.OptionsChain{CurrentIV: 0.3}) != nil {
		t.Fatalf("empty history should be nil")
	}
}

func TestMaxPain(t *testing.T) {
	c := &models.OptionsChain{Positions: []models.OptionPosition{
		{Strike: 100, Kind: models.Call, OpenInterest: 1},
		{Strike: 120, Kind: models.Put, OpenInterest: 5},
	}}
	if got := MaxPain(c); got == nil || *got != 120 {
		t.Fatalf("max pain = %v, want 120", got)
	}
	tie := &models.OptionsChain{Positions: []models.OptionPosition{
		{Strike: 110, Kind: models.Put, OpenInterest: 1},
		{Strike: 100, Kind: models.Call, OpenInterest: 1},
	}}
	if got := MaxPain(tie); got == nil || *got != 100 {
		t.Fatalf("tie should pick lowest strike, got %v", got)
	}
}

func TestOptionsContexts(t *testing.T) {
	bars := genBars(40)
	chains := make([]*models.OptionsChain, len(bars))
	chains[35] = &models.OptionsChain{
		CurrentIV: 0.3, IV52wHigh: 0.5, IV52wLow: 0.1,
		CallVolumes: map[string]float64{"100": 10}, PutVolumes: map[string]float64{"100": 5},
		Positions: []models.OptionPosition{{Strike: 100, Kind: models.Call, Gamma: 0.02, OpenInterest: 100}},
	}
	ctxs := New(DefaultConfig()).Options(bars, chains)
	if ctxs[34] != nil {
		t.Fatalf("missing chain should give nil context")
	}
	oc := ctxs[35]
	if oc == nil || oc.HistoricalVolatility == nil || oc.GammaExposure != 2 || oc.PutCallRatio.Value != 0.5 {
		t.Fatalf("unexpected context %+v", oc)
	}
	if oc.OpenInterest["100"] != 100 {
		t.Fatalf("open interest = %v", oc.OpenInterest)
	}
}
