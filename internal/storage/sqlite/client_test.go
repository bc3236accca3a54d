package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShreyaJV11/support-chatbot/internal/storage"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func seedEntry(t *testing.T, c *Client, id, question string, alternates ...string) *models.KnowledgeEntry {
	t.Helper()
	e := &models.KnowledgeEntry{
		ID:                 id,
		PrimaryQuestion:    question,
		AlternateQuestions: alternates,
		AnswerText:         "Answer for " + id,
		Category:           models.CategoryAccess,
		ConfidenceWeight:   0.9,
		Status:             models.StatusActive,
	}
	require.NoError(t, c.UpsertEntry(context.Background(), e))
	return e
}

func TestEntries_UpsertAndList(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedEntry(t, c, "kb-2", "How do I register a DOI?")
	seedEntry(t, c, "kb-1", "How do I reset my password?", "forgot password", "password reset link")
	inactive := seedEntry(t, c, "kb-3", "Old question")
	inactive.Status = models.StatusInactive
	require.NoError(t, c.UpsertEntry(ctx, inactive))

	active, err := c.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "kb-1", active[0].ID)
	assert.Equal(t, []string{"forgot password", "password reset link"}, active[0].AlternateQuestions)
	assert.Nil(t, active[0].QuestionEmbeddings)

	all, err := c.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = c.GetEntry(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEntries_RejectsInvalid(t *testing.T) {
	c := newTestClient(t)

	err := c.UpsertEntry(context.Background(), &models.KnowledgeEntry{
		PrimaryQuestion:  "q",
		AnswerText:       "a",
		Category:         models.CategoryDOI,
		ConfidenceWeight: 1.5,
	})
	assert.Error(t, err)
}

func TestEntries_Embeddings(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	seedEntry(t, c, "kb-1", "reset password", "forgot password")

	require.NoError(t, c.SetEntryEmbeddings(ctx, "kb-1", [][]float32{{1, 0}, {0, 1}}))

	e, err := c.GetEntry(ctx, "kb-1")
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, e.QuestionEmbeddings)

	assert.ErrorIs(t, c.SetEntryEmbeddings(ctx, "nope", nil), storage.ErrNotFound)
}

func TestSearch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seedEntry(t, c, "kb-1", "How do I reset my password?", "forgot my account password")
	seedEntry(t, c, "kb-2", "How do I register a DOI with Crossref?")
	seedEntry(t, c, "kb-3", "Why is my website down?")

	hits, err := c.Search(ctx, "forgot password")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "kb-1", hits[0].Entry.ID)
	assert.Equal(t, 1.0, hits[0].Rank)

	hits, err = c.Search(ctx, "register crossref")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "kb-2", hits[0].Entry.ID)
	assert.Equal(t, 1.0, hits[0].Rank)

	hits, err = c.Search(ctx, "crossref registration")
	require.NoError(t, err)
	assert.Empty(t, hits, "every term must appear in one question")

	hits, err = c.Search(ctx, "Why was my DOI deposit rejected by the registry?")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = c.Search(ctx, "how do I")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_ReflectsUpdatedQuestions(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	e := seedEntry(t, c, "kb-1", "ssl certificate renewal")
	e.PrimaryQuestion = "dns propagation delay"
	require.NoError(t, c.UpsertEntry(ctx, e))

	hits, err := c.Search(ctx, "ssl certificate")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = c.Search(ctx, "dns")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestUpsertUser(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	first, err := c.UpsertUser(ctx, models.Identity{Name: "Kanak", Email: "Kanak@MPS.com", Organization: "MPS"})
	require.NoError(t, err)
	assert.Equal(t, "kanak@mps.com", first.Email)

	second, err := c.UpsertUser(ctx, models.Identity{Name: "Kanak S", Email: "kanak@mps.com", Organization: "Mps"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Kanak S", second.Name)
	assert.Equal(t, "Mps", second.Organization)

	_, err = c.UpsertUser(ctx, models.Identity{Name: "no email"})
	assert.Error(t, err)
}

func TestChatLogs(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	score := 0.42
	caseID := "CASE-1"
	require.NoError(t, c.InsertChatLog(ctx, &models.ChatLogRecord{SessionID: "s1", Question: "hi", ResponseType: "COLLECT_INFO"}))
	require.NoError(t, c.InsertChatLog(ctx, &models.ChatLogRecord{SessionID: "s1", Question: "dns?", ResponseType: "ESCALATED", ConfidenceScore: &score, CaseID: &caseID}))
	require.NoError(t, c.InsertChatLog(ctx, &models.ChatLogRecord{SessionID: "s2", Question: "other", ResponseType: "ERROR"}))

	logs, err := c.ListChatLogs(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "COLLECT_INFO", logs[0].ResponseType)
	assert.Nil(t, logs[0].ConfidenceScore)
	require.NotNil(t, logs[1].CaseID)
	assert.Equal(t, "CASE-1", *logs[1].CaseID)
	assert.InDelta(t, 0.42, *logs[1].ConfidenceScore, 1e-9)
}

func TestUnanswered(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.InsertUnanswered(ctx, &models.UnansweredQuestion{
		Question: "first", Category: models.CategoryHosting, ConfidenceScore: 0.3, CaseID: "CASE-1", UserEmail: "a@b.com",
	}))
	require.NoError(t, c.InsertUnanswered(ctx, &models.UnansweredQuestion{
		Question: "second", Category: models.CategoryUnknown, ConfidenceScore: 0.1, CaseID: "MOCK-12345678",
	}))

	records, err := c.ListUnanswered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second", records[0].Question)
	assert.Equal(t, "", records[0].UserEmail)
	assert.Equal(t, models.CategoryHosting, records[1].Category)
}
