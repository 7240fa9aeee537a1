package repository

import (
	"context"
	"time"

	"PatternLab/internal/domain/models"
)

// BarStore provides read-only access to historical bars and options snapshots.
// Bars come back ordered by timestamp; the core validates them before use.
type BarStore interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
	// GetOptionsChains returns chains keyed by bar timestamp in unix millis.
	GetOptionsChains(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) (map[int64]*models.OptionsChain, error)
}
