package remote

import (
	"context"
	"fmt"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/service"
)

const scorePath = "/patterns/score"

type scoreResponse struct {
	Probability float64 `json:"probability"`
}

// HTTPPatternClassifier asks a model service for the probability that a window
// holds a real pattern.
type HTTPPatternClassifier struct {
	base *HTTPServiceBase
}

var _ service.PatternClassifier = (*HTTPPatternClassifier)(nil)

func NewHTTPPatternClassifier(base *HTTPServiceBase) *HTTPPatternClassifier {
	return &HTTPPatternClassifier{base: base}
}

func (c *HTTPPatternClassifier) Score(ctx context.Context, w models.FeatureWindow) (float64, error) {
	var resp scoreResponse
	if err := c.base.PostJSONWithRetry(ctx, scorePath, w, &resp); err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrClassifierUnavailable, err)
	}
	return resp.Probability, nil
}
