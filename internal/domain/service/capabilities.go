package service

import (
	"context"

	"PatternLab/internal/domain/models"
)

// StrategyOracle proposes a candidate trade for a snapshot. A nil proposal with a nil
// error means "no trade"; callers treat an error the same way.
type StrategyOracle interface {
	Propose(ctx context.Context, snap models.MarketSnapshot) (*models.StrategyProposal, error)
}

// RiskSizer returns a position size in currency units, > 0 and never above capital.
type RiskSizer interface {
	Size(ctx context.Context, p models.StrategyProposal, capital float64) (float64, error)
}

// PatternClassifier scores a feature window with a probability in [0,1].
type PatternClassifier interface {
	Score(ctx context.Context, w models.FeatureWindow) (float64, error)
}
