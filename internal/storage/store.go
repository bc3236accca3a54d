// Package storage defines the persistence contract shared by the sqlite and
// postgres drivers.
package storage

import (
	"context"
	"errors"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	// ListActive returns active entries ordered by ID.
	ListActive(ctx context.Context) ([]models.KnowledgeEntry, error)
	ListEntries(ctx context.Context) ([]models.KnowledgeEntry, error)
	GetEntry(ctx context.Context, id string) (*models.KnowledgeEntry, error)
	// UpsertEntry replaces the entry along with its stored embeddings, so
	// callers re-embed after changing questions.
	UpsertEntry(ctx context.Context, entry *models.KnowledgeEntry) error
	SetEntryEmbeddings(ctx context.Context, id string, embeddings [][]float32) error

	// Search runs the full-text stage. Hits are ordered best first.
	Search(ctx context.Context, text string) ([]models.LexicalHit, error)

	UpsertUser(ctx context.Context, identity models.Identity) (*models.User, error)

	InsertChatLog(ctx context.Context, record *models.ChatLogRecord) error
	ListChatLogs(ctx context.Context, sessionID string, limit int) ([]models.ChatLogRecord, error)
	InsertUnanswered(ctx context.Context, record *models.UnansweredQuestion) error
	ListUnanswered(ctx context.Context, limit int) ([]models.UnansweredQuestion, error)

	Ping(ctx context.Context) error
	Close() error
}
