package strategy

import (
	"context"
	"fmt"
	"math"
	"sync"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/service"
	"PatternLab/internal/services/indicators"
)

// RuleConfig parameterises the EMA crossover oracle.
type RuleConfig struct {
	FastEMA         int
	SlowEMA         int
	ATRPeriod       int
	StopATR         float64
	RewardRisk      float64
	PositionSizePct float64
}

func DefaultRuleConfig() RuleConfig {
	return RuleConfig{FastEMA: 9, SlowEMA: 21, ATRPeriod: 14, StopATR: 1.5, RewardRisk: 2, PositionSizePct: 0.02}
}

// RuleOracle proposes a trade when the fast EMA crosses the slow one, with stops
// placed a multiple of ATR away. It remembers the previous spread per symbol, so a
// single instance must see each symbol's ticks in order.
type RuleOracle struct {
	cfg  RuleConfig
	mu   sync.Mutex
	last map[string]spread
}

type spread struct {
	index int
	value float64
}

var _ service.StrategyOracle = (*RuleOracle)(nil)

func NewRuleOracle(cfg RuleConfig) *RuleOracle {
	return &RuleOracle{cfg: cfg, last: make(map[string]spread)}
}

func (o *RuleOracle) Propose(_ context.Context, snap models.MarketSnapshot) (*models.StrategyProposal, error) {
	fast, okF := snap.Indicators.Get(indicators.EMAName(o.cfg.FastEMA))
	slow, okS := snap.Indicators.Get(indicators.EMAName(o.cfg.SlowEMA))
	atr, okA := snap.Indicators.Get(indicators.ATRName(o.cfg.ATRPeriod))
	if !okF || !okS {
		return nil, fmt.Errorf("%w: %s/%s missing at %d", models.ErrDataInsufficient,
			indicators.EMAName(o.cfg.FastEMA), indicators.EMAName(o.cfg.SlowEMA), snap.Index)
	}
	cur := fast - slow

	o.mu.Lock()
	prev, seen := o.last[snap.Symbol]
	o.last[snap.Symbol] = spread{index: snap.Index, value: cur}
	o.mu.Unlock()

	// a new pass or a skipped tick has no usable previous spread
	if !seen || prev.index != snap.Index-1 || !okA || atr <= 0 {
		return nil, nil
	}

	price := snap.Bar.Close
	risk := o.cfg.StopATR * atr
	p := &models.StrategyProposal{
		EntryPrice:      price,
		PositionSizePct: o.cfg.PositionSizePct,
		Confidence:      math.Min(1, math.Abs(cur)/atr),
	}
	switch {
	case prev.value <= 0 && cur > 0:
		p.Action = models.Buy
		p.StopLoss = price - risk
		p.TakeProfit = price + o.cfg.RewardRisk*risk
		p.Rationale = "ema cross up"
	case prev.value >= 0 && cur < 0:
		p.Action = models.Sell
		p.StopLoss = price + risk
		p.TakeProfit = price - o.cfg.RewardRisk*risk
		p.Rationale = "ema cross down"
	default:
		return nil, nil
	}
	if p.StopLoss <= 0 || p.TakeProfit <= 0 {
		return nil, nil
	}
	return p, nil
}
