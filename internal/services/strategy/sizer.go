package strategy

import (
	"context"
	"fmt"
	"math"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/service"
)

// FixedFractionSizer allocates a fixed share of capital. A zero Fraction uses the
// proposal's own position_size_pct.
type FixedFractionSizer struct {
	Fraction float64
}

var _ service.RiskSizer = FixedFractionSizer{}

func (s FixedFractionSizer) Size(_ context.Context, p models.StrategyProposal, capital float64) (float64, error) {
	pct := s.Fraction
	if pct <= 0 {
		pct = p.PositionSizePct
	}
	if capital <= 0 || pct <= 0 {
		return 0, fmt.Errorf("%w: capital %.2f fraction %.4f", models.ErrProposalInvalid, capital, pct)
	}
	return math.Min(capital*pct, capital), nil
}

// RiskBudgetSizer risks RiskPct of capital between entry and stop.
type RiskBudgetSizer struct {
	RiskPct float64
}

var _ service.RiskSizer = RiskBudgetSizer{}

func (s RiskBudgetSizer) Size(_ context.Context, p models.StrategyProposal, capital float64) (float64, error) {
	if capital <= 0 || p.EntryPrice <= 0 {
		return 0, fmt.Errorf("%w: capital %.2f entry %.4f", models.ErrProposalInvalid, capital, p.EntryPrice)
	}
	dist := math.Abs(p.EntryPrice-p.StopLoss) / p.EntryPrice
	if dist <= 1e-12 {
		return 0, fmt.Errorf("%w: zero stop distance", models.ErrDivisionDegenerate)
	}
	return math.Min(capital*s.RiskPct/dist, capital), nil
}
