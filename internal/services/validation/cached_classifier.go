package validation

import (
	"context"
	"encoding/json"
	"time"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/service"
	"PatternLab/pkg/cache"
)

const classifierKeyPrefix = "classifier"

// CachedClassifier memoises scores by an md5 of the feature window.
type CachedClassifier struct {
	inner service.PatternClassifier
	cache cache.Service
	ttl   time.Duration
}

var _ service.PatternClassifier = (*CachedClassifier)(nil)

func NewCachedClassifier(inner service.PatternClassifier, c cache.Service, ttl time.Duration) *CachedClassifier {
	return &CachedClassifier{inner: inner, cache: c, ttl: ttl}
}

func (c *CachedClassifier) Score(ctx context.Context, w models.FeatureWindow) (float64, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return c.inner.Score(ctx, w)
	}
	key := cache.GenerateKey(classifierKeyPrefix, cache.HashBytes(raw))
	score, _, err := cache.Remember(ctx, c.cache, key, c.ttl, func() (float64, error) {
		return c.inner.Score(ctx, w)
	})
	return score, err
}
