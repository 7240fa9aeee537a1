package indicators

import (
	"fmt"
	"math"
	"sort"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/repository"
)

// Config selects indicator groups and their periods.
type Config struct {
	Trend      bool // SMA/EMA/MACD
	Momentum   bool // RSI/Stochastic
	Volatility bool // Bollinger/ATR/HV
	Volume     bool // VWAP
	Candles    bool
	Options    bool

	SMAPeriods      []int
	EMAPeriods      []int
	RSIPeriod       int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	BollingerPeriod int
	BollingerMult   float64
	ATRPeriod       int
	HVPeriod        int
	StochK          int
	StochD          int
}

// DefaultConfig enables every group with the conventional periods.
func DefaultConfig() Config {
	return Config{
		Trend: true, Momentum: true, Volatility: true, Volume: true, Candles: true, Options: true,
		SMAPeriods:      []int{20, 50, 200},
		EMAPeriods:      []int{9, 21, 55},
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerPeriod: 20,
		BollingerMult:   2,
		ATRPeriod:       14,
		HVPeriod:        30,
		StochK:          14,
		StochD:          3,
	}
}

// Indicator names shared with the oracle and detectors.
const (
	NameMACD       = "macd"
	NameMACDSignal = "macd_signal"
	NameMACDHist   = "macd_hist"
	NameBBUpper    = "bb_upper"
	NameBBMiddle   = "bb_middle"
	NameBBLower    = "bb_lower"
	NameStochK     = "stoch_k"
	NameStochD     = "stoch_d"
	NameVWAP       = "vwap"
	NameDoji       = "doji"
	NameHammer     = "hammer"
	NameEngulfing  = "engulfing"
)

func SMAName(p int) string { return fmt.Sprintf("sma_%d", p) }
func EMAName(p int) string { return fmt.Sprintf("ema_%d", p) }
func RSIName(p int) string { return fmt.Sprintf("rsi_%d", p) }
func ATRName(p int) string { return fmt.Sprintf("atr_%d", p) }
func HVName(p int) string  { return fmt.Sprintf("hv_%d", p) }

// Engine computes indicator sets. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg     Config
	metrics repository.Metrics
}

type Option func(*Engine)

// WithMetrics counts degenerate ratios seen while building options contexts.
func WithMetrics(m repository.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, metrics: repository.NopMetrics{}}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

// Columns computes every enabled indicator as a NaN-padded column aligned to bars.
func (e *Engine) Columns(bars []models.Bar) map[string][]float64 {
	c := e.cfg
	closes := models.Closes(bars)
	cols := make(map[string][]float64)
	if c.Trend {
		for _, p := range c.SMAPeriods {
			cols[SMAName(p)] = SMA(closes, p)
		}
		for _, p := range c.EMAPeriods {
			cols[EMAName(p)] = EMA(closes, p)
		}
		if c.MACDFast > 0 && c.MACDSlow > 0 && c.MACDSignal > 0 {
			cols[NameMACD], cols[NameMACDSignal], cols[NameMACDHist] = MACD(closes, c.MACDFast, c.MACDSlow, c.MACDSignal)
		}
	}
	if c.Momentum {
		if c.RSIPeriod > 0 {
			cols[RSIName(c.RSIPeriod)] = RSI(closes, c.RSIPeriod)
		}
		if c.StochK > 0 && c.StochD > 0 {
			cols[NameStochK], cols[NameStochD] = Stochastic(bars, c.StochK, c.StochD)
		}
	}
	if c.Volatility {
		if c.BollingerPeriod > 1 {
			cols[NameBBUpper], cols[NameBBMiddle], cols[NameBBLower] = Bollinger(closes, c.BollingerPeriod, c.BollingerMult)
		}
		if c.ATRPeriod > 0 {
			cols[ATRName(c.ATRPeriod)] = ATR(bars, c.ATRPeriod)
		}
		if c.HVPeriod > 0 {
			cols[HVName(c.HVPeriod)] = HistoricalVolatility(closes, c.HVPeriod)
		}
	}
	if c.Volume {
		cols[NameVWAP] = VWAP(bars)
	}
	if c.Candles {
		f := Candles(bars)
		cols[NameDoji], cols[NameHammer], cols[NameEngulfing] = f.Doji, f.Hammer, f.Engulfing
	}
	return cols
}

// Compute returns one IndicatorSet per bar. Values lacking history are left out.
func (e *Engine) Compute(bars []models.Bar) []models.IndicatorSet {
	cols := e.Columns(bars)
	names := make([]string, 0, len(cols))
	for n := range cols {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]models.IndicatorSet, len(bars))
	for i := range bars {
		set := make(models.IndicatorSet, len(names))
		for _, n := range names {
			if v := cols[n][i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				set[n] = v
			}
		}
		out[i] = set
	}
	return out
}

// Options derives one context per bar. chains is aligned to bars; nil entries give nil contexts.
func (e *Engine) Options(bars []models.Bar, chains []*models.OptionsChain) []*models.OptionsContext {
	out := make([]*models.OptionsContext, len(bars))
	if !e.cfg.Options || len(chains) == 0 {
		return out
	}
	hvPeriod := e.cfg.HVPeriod
	if hvPeriod <= 0 {
		hvPeriod = 30
	}
	hv := HistoricalVolatility(models.Closes(bars), hvPeriod)
	for i := range bars {
		if i >= len(chains) || chains[i] == nil {
			continue
		}
		ch := chains[i]
		ctx := &models.OptionsContext{
			IVRank:        IVRank(ch),
			IVPercentile:  IVPercentile(ch),
			TermStructure: copyMap(ch.TermStructure),
			Skew:          copyMap(ch.Skew),
			GammaExposure: GammaExposure(ch),
			PutCallRatio:  PutCallRatio(ch),
			OpenInterest:  OpenInterest(ch),
			MaxPain:       MaxPain(ch),
		}
		if !math.IsNaN(hv[i]) {
			ctx.HistoricalVolatility = models.Float(hv[i])
		}
		if ctx.IVRank == nil {
			e.metrics.RecordDegenerateRatio("iv_rank")
		}
		if !ctx.PutCallRatio.Defined {
			e.metrics.RecordDegenerateRatio("put_call_ratio")
		}
		out[i] = ctx
	}
	return out
}
