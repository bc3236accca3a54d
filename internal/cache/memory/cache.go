package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// EmbeddingCache is the in-process counterpart of the redis embedding cache.
type EmbeddingCache struct {
	cache *cache.Cache
}

func NewEmbeddingCache(defaultTTL time.Duration) *EmbeddingCache {
	// purge expired items every 10 minutes
	return &EmbeddingCache{cache: cache.New(defaultTTL, 10*time.Minute)}
}

func (c *EmbeddingCache) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	stored := make([]float32, len(embedding))
	copy(stored, embedding)
	c.cache.Set(textHash, stored, ttl)
	return nil
}

func (c *EmbeddingCache) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	x, found := c.cache.Get(textHash)
	if !found {
		return nil, false, nil
	}
	stored := x.([]float32)
	out := make([]float32, len(stored))
	copy(out, stored)
	return out, true, nil
}

func (c *EmbeddingCache) Len() int {
	return c.cache.ItemCount()
}
