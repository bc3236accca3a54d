package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/metrics"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
	"github.com/ShreyaJV11/support-chatbot/pkg/utils"
)

// Cache is satisfied by both the redis client and the in-memory cache.
type Cache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// Cached memoizes a Provider. Cache failures are logged and never fail the
// call.
type Cached struct {
	inner     Provider
	cache     Cache
	ttl       time.Duration
	cacheType string
}

func NewCached(inner Provider, cache Cache, ttl time.Duration, cacheType string) *Cached {
	return &Cached{inner: inner, cache: cache, ttl: ttl, cacheType: cacheType}
}

func (c *Cached) Model() string {
	return c.inner.Model()
}

// BreakerState passes through the wrapped provider's circuit state, or
// "closed" when it has no breaker.
func (c *Cached) BreakerState() string {
	if b, ok := c.inner.(interface{ BreakerState() string }); ok {
		return b.BreakerState()
	}
	return "closed"
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := utils.HashText(c.inner.Model(), text)

	if vec, ok := c.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missing []int

	for i, text := range texts {
		keys[i] = utils.HashText(c.inner.Model(), text)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	vectors, err := c.inner.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	for j, i := range missing {
		out[i] = vectors[j]
		c.store(ctx, keys[i], vectors[j])
	}
	return out, nil
}

func (c *Cached) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, ok, err := c.cache.GetEmbedding(ctx, key)
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.String("cache_type", c.cacheType), zap.Error(err))
		return nil, false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues(c.cacheType).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(c.cacheType).Inc()
	return vec, true
}

func (c *Cached) store(ctx context.Context, key string, vec []float32) {
	if err := c.cache.SetEmbedding(ctx, key, vec, c.ttl); err != nil {
		logger.Warn("Embedding cache write failed", zap.String("cache_type", c.cacheType), zap.Error(err))
	}
}
