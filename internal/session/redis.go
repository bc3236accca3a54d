package session

import (
	"context"
	"time"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

// KV is the slice of the redis cache client the session store needs.
type KV interface {
	SetSession(ctx context.Context, sessionID string, v interface{}, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string, v interface{}) (bool, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type RedisStore struct {
	kv  KV
	ttl time.Duration
}

func NewRedisStore(kv KV, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{kv: kv, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (models.Identity, bool, error) {
	var rec record
	found, err := s.kv.GetSession(ctx, sessionID, &rec)
	if err != nil || !found {
		return models.Identity{}, false, err
	}
	return rec.Identity, true, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, identity models.Identity) error {
	return s.kv.SetSession(ctx, sessionID, record{Identity: identity, UpdatedAt: time.Now()}, s.ttl)
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.kv.DeleteSession(ctx, sessionID)
}
