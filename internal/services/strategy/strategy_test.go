package strategy

import (
	"context"
	"errors"
	"math"
	"testing"

	"PatternLab/internal/domain/models"
)

func snap(i int, fast, slow, atr, close float64) models.MarketSnapshot {
	return models.MarketSnapshot{
		Symbol: "ETH",
		Index:  i,
		Bar:    models.Bar{Close: close},
		Indicators: models.IndicatorSet{
			"ema_9": fast, "ema_21": slow, "atr_14": atr,
		},
	}
}

func TestRuleOracleCross(t *testing.T) {
	o := NewRuleOracle(DefaultRuleConfig())
	ctx := context.Background()
	if p, _ := o.Propose(ctx, snap(0, 99, 100, 2, 100)); p != nil {
		t.Fatalf("first tick proposed %+v", p)
	}
	p, err := o.Propose(ctx, snap(1, 101, 100, 2, 100))
	if err != nil || p == nil {
		t.Fatalf("cross up: %v %v", p, err)
	}
	if p.Action != models.Buy || p.StopLoss != 97 || p.TakeProfit != 106 {
		t.Fatalf("proposal %+v", p)
	}
	if err := p.Validate(0.05); err != nil {
		t.Fatalf("invalid proposal: %v", err)
	}
	if p, _ := o.Propose(ctx, snap(2, 102, 100, 2, 100)); p != nil {
		t.Fatalf("no cross proposed %+v", p)
	}
	p, _ = o.Propose(ctx, snap(3, 99, 100, 2, 100))
	if p == nil || p.Action != models.Sell || p.StopLoss != 103 || p.TakeProfit != 94 {
		t.Fatalf("cross down %+v", p)
	}
}

func TestRuleOracleSkipsGapInTicks(t *testing.T) {
	o := NewRuleOracle(DefaultRuleConfig())
	ctx := context.Background()
	_, _ = o.Propose(ctx, snap(0, 99, 100, 2, 100))
	if p, _ := o.Propose(ctx, snap(5, 101, 100, 2, 100)); p != nil {
		t.Fatalf("proposed across a gap: %+v", p)
	}
}

func TestRuleOracleMissingIndicators(t *testing.T) {
	o := NewRuleOracle(DefaultRuleConfig())
	_, err := o.Propose(context.Background(), models.MarketSnapshot{Index: 3, Indicators: models.IndicatorSet{}})
	if !errors.Is(err, models.ErrDataInsufficient) {
		t.Fatalf("err = %v", err)
	}
}

func TestFixedFractionSizer(t *testing.T) {
	p := models.StrategyProposal{PositionSizePct: 0.03}
	got, err := FixedFractionSizer{}.Size(context.Background(), p, 1000)
	if err != nil || math.Abs(got-30) > 1e-9 {
		t.Fatalf("size %v err %v", got, err)
	}
	got, _ = FixedFractionSizer{Fraction: 0.1}.Size(context.Background(), p, 1000)
	if math.Abs(got-100) > 1e-9 {
		t.Fatalf("size %v", got)
	}
}

func TestRiskBudgetSizer(t *testing.T) {
	p := models.StrategyProposal{EntryPrice: 100, StopLoss: 98}
	got, err := RiskBudgetSizer{RiskPct: 0.01}.Size(context.Background(), p, 10000)
	if err != nil || math.Abs(got-5000) > 1e-6 {
		t.Fatalf("size %v err %v", got, err)
	}
	got, _ = RiskBudgetSizer{RiskPct: 0.5}.Size(context.Background(), p, 10000)
	if got != 10000 {
		t.Fatalf("size %v not clamped to capital", got)
	}
	p.StopLoss = 100
	if _, err := (RiskBudgetSizer{RiskPct: 0.01}).Size(context.Background(), p, 10000); !errors.Is(err, models.ErrDivisionDegenerate) {
		t.Fatalf("err = %v", err)
	}
}
