package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	// purge expired sessions every 10 minutes
	return &MemoryStore{cache: cache.New(ttl, 10*time.Minute)}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (models.Identity, bool, error) {
	x, found := s.cache.Get(sessionID)
	if !found {
		return models.Identity{}, false, nil
	}
	return x.(record).Identity, true, nil
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, identity models.Identity) error {
	s.cache.Set(sessionID, record{Identity: identity, UpdatedAt: time.Now()}, cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.cache.Delete(sessionID)
	return nil
}

func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}
