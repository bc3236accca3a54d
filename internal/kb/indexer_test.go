package kb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShreyaJV11/support-chatbot/internal/apperr"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

type memoryStore struct {
	entries    map[string]models.KnowledgeEntry
	embeddings map[string][][]float32
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		entries:    make(map[string]models.KnowledgeEntry),
		embeddings: make(map[string][][]float32),
	}
}

func (m *memoryStore) ListEntries(ctx context.Context) ([]models.KnowledgeEntry, error) {
	var out []models.KnowledgeEntry
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) UpsertEntry(ctx context.Context, entry *models.KnowledgeEntry) error {
	m.entries[entry.ID] = *entry
	delete(m.embeddings, entry.ID)
	return nil
}

func (m *memoryStore) SetEntryEmbeddings(ctx context.Context, id string, embeddings [][]float32) error {
	if _, ok := m.entries[id]; !ok {
		return errors.New("not found")
	}
	m.embeddings[id] = embeddings
	return nil
}

type lengthEmbedder struct {
	calls int
	err   error
}

func (l *lengthEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type recordingSink struct {
	entries []models.KnowledgeEntry
	deleted []string
	held    map[string]bool
}

func (r *recordingSink) Upsert(ctx context.Context, entries []models.KnowledgeEntry) error {
	if r.held == nil {
		r.held = make(map[string]bool)
	}
	r.entries = append(r.entries, entries...)
	for _, e := range entries {
		r.held[e.ID] = true
	}
	return nil
}

func (r *recordingSink) Delete(ctx context.Context, entryIDs ...string) error {
	r.deleted = append(r.deleted, entryIDs...)
	for _, id := range entryIDs {
		delete(r.held, id)
	}
	return nil
}

func sampleEntries() []models.KnowledgeEntry {
	return []models.KnowledgeEntry{
		{
			ID:                 "kb-doi",
			PrimaryQuestion:    "How do I register a DOI?",
			AlternateQuestions: []string{"DOI registration", ""},
			AnswerText:         "<p>Use the <b>DOI</b> form.</p>",
			Category:           "doi",
			ConfidenceWeight:   0.95,
		},
		{
			ID:               "kb-old",
			PrimaryQuestion:  "Legacy portal login",
			AnswerText:       "Retired.",
			Category:         models.CategoryAccess,
			ConfidenceWeight: 0.5,
			Status:           models.StatusInactive,
		},
	}
}

func TestIndexer_Import(t *testing.T) {
	store := newMemoryStore()
	embedder := &lengthEmbedder{}
	sink := &recordingSink{}

	n, err := NewIndexer(store, embedder, sink).Import(context.Background(), sampleEntries())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, embedder.calls)

	doi := store.entries["kb-doi"]
	assert.Equal(t, models.CategoryDOI, doi.Category)
	assert.Equal(t, models.StatusActive, doi.Status)
	assert.Equal(t, "Use the DOI form.", doi.AnswerText)
	assert.False(t, doi.CreatedAt.IsZero())

	require.Len(t, store.embeddings["kb-doi"], 2)
	assert.Equal(t, float32(len("How do I register a DOI?")), store.embeddings["kb-doi"][0][0])
	assert.NotContains(t, store.embeddings, "kb-old")

	require.Len(t, sink.entries, 1)
	assert.Len(t, sink.entries[0].QuestionEmbeddings, 2)
	assert.Equal(t, []string{"kb-old"}, sink.deleted)
}

func TestIndexer_DeactivatedEntryLeavesVectorIndex(t *testing.T) {
	store := newMemoryStore()
	sink := &recordingSink{}
	ix := NewIndexer(store, &lengthEmbedder{}, sink)
	ctx := context.Background()

	_, err := ix.Import(ctx, sampleEntries()[:1])
	require.NoError(t, err)
	require.True(t, sink.held["kb-doi"])

	deactivated := sampleEntries()[0]
	deactivated.Status = models.StatusInactive
	n, err := ix.Import(ctx, []models.KnowledgeEntry{deactivated})

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, sink.held["kb-doi"])
	assert.Equal(t, models.StatusInactive, store.entries["kb-doi"].Status)
}

func TestIndexer_ReindexPrunesInactiveEntries(t *testing.T) {
	store := newMemoryStore()
	sink := &recordingSink{}
	ix := NewIndexer(store, &lengthEmbedder{}, sink)
	ctx := context.Background()

	_, err := ix.Import(ctx, sampleEntries()[:1])
	require.NoError(t, err)

	// deactivated directly in the store, bypassing Import
	e := store.entries["kb-doi"]
	e.Status = models.StatusInactive
	store.entries["kb-doi"] = e

	n, err := ix.Reindex(ctx)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, sink.deleted, "kb-doi")
	assert.False(t, sink.held["kb-doi"])
}

func TestIndexer_ImportRejectsInvalidBatch(t *testing.T) {
	store := newMemoryStore()
	entries := append(sampleEntries(), models.KnowledgeEntry{
		ID:               "kb-bad",
		PrimaryQuestion:  "Broken",
		AnswerText:       "x",
		Category:         models.CategoryHosting,
		ConfidenceWeight: 1.5,
	})

	_, err := NewIndexer(store, &lengthEmbedder{}, nil).Import(context.Background(), entries)

	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "kb-bad")
	assert.Empty(t, store.entries)
}

func TestIndexer_Reindex(t *testing.T) {
	store := newMemoryStore()
	ix := NewIndexer(store, &lengthEmbedder{}, nil)
	_, err := ix.Import(context.Background(), sampleEntries())
	require.NoError(t, err)

	embedder := &lengthEmbedder{}
	ix.embedder = embedder
	n, err := ix.Reindex(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, embedder.calls)
}

func TestIndexer_EmbeddingFailure(t *testing.T) {
	store := newMemoryStore()
	ix := NewIndexer(store, &lengthEmbedder{err: errors.New("429")}, nil)

	_, err := ix.Import(context.Background(), sampleEntries())

	require.Error(t, err)
	assert.Empty(t, store.embeddings)
}

func TestCleanAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Reset it from the portal.  ", "Reset it from the portal."},
		{"paragraphs", "<p>Go to <b>Settings</b>.</p><p>Click  Save.</p>", "Go to Settings.\nClick Save."},
		{"list", "<ul><li>One</li><li>Two</li></ul>", "- One\n- Two"},
		{"line breaks", "Line one<br>Line two", "Line one\nLine two"},
		{"scripts", "<p>Hi</p><script>alert(1)</script>", "Hi"},
		{"comparison", "weight < 1 and > 0", "weight < 1 and > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanAnswer(tt.in))
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	arrayPath := filepath.Join(dir, "array.json")
	require.NoError(t, os.WriteFile(arrayPath, []byte(`[{"id":"a","primary_question":"q","answer_text":"x"}]`), 0o644))
	entries, err := LoadFile(arrayPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)

	wrappedPath := filepath.Join(dir, "wrapped.json")
	require.NoError(t, os.WriteFile(wrappedPath, []byte(`{"entries":[{"id":"b"},{"id":"c"}]}`), 0o644))
	entries, err = LoadFile(wrappedPath)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
