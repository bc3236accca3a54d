package matching

import (
	"context"
	"errors"
	"sync"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

type MockEmbedder struct {
	Vectors map[string][]float32
	Default []float32
	Err     error

	mu    sync.Mutex
	Calls []string
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if v, ok := m.Vectors[text]; ok {
		return v, nil
	}
	if m.Default != nil {
		return m.Default, nil
	}
	return nil, errors.New("no vector for " + text)
}

type MockIndex struct {
	Hits    []models.VectorHit
	Err     error
	Queried int
}

func (m *MockIndex) Query(ctx context.Context, vector []float32, topK int) ([]models.VectorHit, error) {
	m.Queried++
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Hits) > topK {
		return m.Hits[:topK], nil
	}
	return m.Hits, nil
}

type MockLexical struct {
	Hits     []models.LexicalHit
	Err      error
	Searched int
}

func (m *MockLexical) Search(ctx context.Context, text string) ([]models.LexicalHit, error) {
	m.Searched++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Hits, nil
}

type MockStore struct {
	Entries []models.KnowledgeEntry
	Err     error
}

func (m *MockStore) ListActive(ctx context.Context) ([]models.KnowledgeEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.KnowledgeEntry, len(m.Entries))
	copy(out, m.Entries)
	return out, nil
}
