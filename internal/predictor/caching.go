package predictor

import (
	"context"
	"log/slog"

	"github.com/paintlab/paintopt/internal/cache"
)

// CachingPredictor serves repeated feature vectors from the on-disk cache
// and forwards misses to the wrapped predictor. Failures are not cached.
type CachingPredictor struct {
	next    Predictor
	cache   *cache.Cache
	modelID string
	logger  *slog.Logger
}

// NewCachingPredictor wraps next. modelID is part of every cache key so
// entries from different models never mix.
func NewCachingPredictor(next Predictor, c *cache.Cache, modelID string, logger *slog.Logger) *CachingPredictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingPredictor{next: next, cache: c, modelID: modelID, logger: logger}
}

// Predict implements Predictor.
func (p *CachingPredictor) Predict(ctx context.Context, features map[string]float64) (map[string]float64, error) {
	key := cache.Key(p.modelID, features)
	if entry, ok := p.cache.Get(key); ok && len(entry.Predictions) > 0 {
		return entry.Predictions, nil
	}

	preds, err := p.next.Predict(ctx, features)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Put(key, &cache.Entry{ModelID: p.modelID, Predictions: preds}); err != nil {
		p.logger.Warn("failed to cache prediction", "error", err)
	}
	return preds, nil
}

// Health forwards to the wrapped predictor.
func (p *CachingPredictor) Health(ctx context.Context) error {
	return CheckHealth(ctx, p.next)
}
