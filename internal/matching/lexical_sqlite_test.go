package matching

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/sqlite"
)

func newSQLiteEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.UpsertEntry(ctx, &models.KnowledgeEntry{
		ID:               "kb-doi",
		PrimaryQuestion:  "How do I register a DOI with Crossref?",
		AnswerText:       "Use the Crossref deposit form.",
		Category:         models.CategoryDOI,
		ConfidenceWeight: 0.2,
		Status:           models.StatusActive,
	}))
	require.NoError(t, store.SetEntryEmbeddings(ctx, "kb-doi", [][]float32{unitAt(0)}))

	embedder := &MockEmbedder{Default: queryVec}
	return NewEngine(embedder, nil, store, store, newThreshold(t, 0.7), DefaultOptions())
}

func TestFindBestMatch_SingleSharedTermEscalates(t *testing.T) {
	engine := newSQLiteEngine(t)

	result := engine.FindBestMatch(context.Background(), "Why was my DOI deposit rejected by the registry?")

	assert.Equal(t, SourceNone, result.Source)
	assert.Nil(t, result.Entry)
	assert.False(t, engine.IsConfident(result))
	assert.InDelta(t, 0.0, result.Score, 1e-9)
}

func TestFindBestMatch_FullTermOverlapAnswersFromText(t *testing.T) {
	engine := newSQLiteEngine(t)

	result := engine.FindBestMatch(context.Background(), "register DOI Crossref")

	require.NotNil(t, result.Entry)
	assert.Equal(t, "kb-doi", result.Entry.ID)
	assert.Equal(t, SourceText, result.Source)
	assert.InDelta(t, 0.95, result.Score, 1e-9)
	assert.True(t, engine.IsConfident(result))
}
