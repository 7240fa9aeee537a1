package validation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/repository"
	"PatternLab/internal/domain/service"
	"PatternLab/internal/services/features"
	"PatternLab/internal/services/regime"
	"PatternLab/pkg/logger"
)

// Config controls the blended-confidence filter.
type Config struct {
	Threshold       float64
	ExcludedRegimes []models.RegimeLabel
	WindowRows      int
}

func DefaultConfig() Config {
	return Config{Threshold: 0.7, WindowRows: features.WindowRows}
}

// Validator blends structural confidence with the classifier score. It is the only
// component that consults the classifier; detection stays purely structural.
type Validator struct {
	cfg        Config
	classifier service.PatternClassifier
	metrics    repository.Metrics
	log        *logger.Logger
}

type Option func(*Validator)

func WithMetrics(m repository.Metrics) Option {
	return func(v *Validator) {
		if m != nil {
			v.metrics = m
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(v *Validator) { v.log = l }
}

// NewValidator accepts a nil classifier; every pattern then keeps its structural confidence.
func NewValidator(cfg Config, classifier service.PatternClassifier, opts ...Option) *Validator {
	if cfg.WindowRows <= 0 {
		cfg.WindowRows = features.WindowRows
	}
	v := &Validator{cfg: cfg, classifier: classifier, metrics: repository.NopMetrics{}}
	for _, o := range opts {
		o(v)
	}
	return v
}

func (v *Validator) Threshold() float64 { return v.cfg.Threshold }

// Validate returns p with blended confidence set. Only confidence fields change.
func (v *Validator) Validate(ctx context.Context, p models.Pattern, bars []models.Bar) models.Pattern {
	score, err := v.score(ctx, p, bars)
	if err != nil {
		v.metrics.RecordClassifierFallback()
		v.log.Warn("classifier unavailable, using structural confidence",
			logger.String("type", string(p.Type)),
			logger.Int("window_end", p.WindowEnd),
			logger.Error(err),
		)
		p.BlendedConfidence = p.StructuralConfidence
		p.ConfidenceSource = models.SourceStructural
		return p
	}
	p.BlendedConfidence = (p.StructuralConfidence + score) / 2
	p.ConfidenceSource = models.SourceBlended
	return p
}

func (v *Validator) score(ctx context.Context, p models.Pattern, bars []models.Bar) (float64, error) {
	if v.classifier == nil {
		return 0, models.ErrClassifierUnavailable
	}
	s, err := v.classifier.Score(ctx, features.BuildWindow(bars, p, v.cfg.WindowRows))
	if err != nil {
		if errors.Is(err, models.ErrClassifierUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", models.ErrClassifierUnavailable, err)
	}
	if math.IsNaN(s) || s < 0 || s > 1 {
		return 0, fmt.Errorf("%w: score %v outside [0,1]", models.ErrClassifierUnavailable, s)
	}
	return s, nil
}

// ValidateAll scores every pattern and keeps those whose blended confidence exceeds
// the threshold. Patterns ending inside an excluded regime are dropped before scoring.
func (v *Validator) ValidateAll(ctx context.Context, patterns []models.Pattern, bars []models.Bar, regimes []models.Regime) []models.Pattern {
	out := make([]models.Pattern, 0, len(patterns))
	for _, p := range patterns {
		if v.excluded(p, bars, regimes) {
			continue
		}
		vp := v.Validate(ctx, p, bars)
		if vp.BlendedConfidence > v.cfg.Threshold {
			out = append(out, vp)
		}
	}
	return out
}

func (v *Validator) excluded(p models.Pattern, bars []models.Bar, regimes []models.Regime) bool {
	if len(v.cfg.ExcludedRegimes) == 0 || len(regimes) == 0 || p.WindowEnd < 0 || p.WindowEnd >= len(bars) {
		return false
	}
	for _, l := range regime.LabelsAt(regimes, bars[p.WindowEnd].Timestamp) {
		for _, ex := range v.cfg.ExcludedRegimes {
			if l == ex {
				return true
			}
		}
	}
	return false
}
