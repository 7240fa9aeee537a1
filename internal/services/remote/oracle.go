package remote

import (
	"context"
	"fmt"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/service"
)

const proposePath = "/strategy/propose"

type proposeResponse struct {
	Proposal *models.StrategyProposal `json:"proposal"`
}

// HTTPStrategyOracle delegates proposals to a remote strategy service. A null
// proposal in the response means no trade.
type HTTPStrategyOracle struct {
	base *HTTPServiceBase
}

var _ service.StrategyOracle = (*HTTPStrategyOracle)(nil)

func NewHTTPStrategyOracle(base *HTTPServiceBase) *HTTPStrategyOracle {
	return &HTTPStrategyOracle{base: base}
}

func (o *HTTPStrategyOracle) Propose(ctx context.Context, snap models.MarketSnapshot) (*models.StrategyProposal, error) {
	var resp proposeResponse
	if err := o.base.PostJSONWithRetry(ctx, proposePath, snap, &resp); err != nil {
		return nil, fmt.Errorf("strategy oracle: %w", err)
	}
	return resp.Proposal, nil
}
