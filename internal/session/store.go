// Package session remembers the verified identity of each chat session.
// Entries expire after a TTL measured from the last write.
package session

import (
	"context"
	"time"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

const DefaultTTL = 24 * time.Hour

type Store interface {
	Get(ctx context.Context, sessionID string) (models.Identity, bool, error)
	Save(ctx context.Context, sessionID string, identity models.Identity) error
	Delete(ctx context.Context, sessionID string) error
}

type record struct {
	Identity  models.Identity `json:"identity"`
	UpdatedAt time.Time       `json:"updated_at"`
}
