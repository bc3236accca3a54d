package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShreyaJV11/support-chatbot/internal/apperr"
	"github.com/ShreyaJV11/support-chatbot/internal/chat"
	"github.com/ShreyaJV11/support-chatbot/internal/matching"
	"github.com/ShreyaJV11/support-chatbot/internal/middleware/auth"
	"github.com/ShreyaJV11/support-chatbot/internal/storage"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

type stubEngine struct {
	turns []chat.Turn
	resp  chat.Response
}

func (s *stubEngine) HandleTurn(ctx context.Context, turn chat.Turn) chat.Response {
	s.turns = append(s.turns, turn)
	return s.resp
}

type stubStore struct {
	entries    []models.KnowledgeEntry
	logs       []models.ChatLogRecord
	unanswered []models.UnansweredQuestion
	limit      int
	err        error
}

func (s *stubStore) ListChatLogs(ctx context.Context, sessionID string, limit int) ([]models.ChatLogRecord, error) {
	s.limit = limit
	return s.logs, s.err
}

func (s *stubStore) ListUnanswered(ctx context.Context, limit int) ([]models.UnansweredQuestion, error) {
	s.limit = limit
	return s.unanswered, s.err
}

func (s *stubStore) ListEntries(ctx context.Context) ([]models.KnowledgeEntry, error) {
	return s.entries, s.err
}

func (s *stubStore) GetEntry(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.entries {
		if s.entries[i].ID == id {
			return &s.entries[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *stubStore) Ping(ctx context.Context) error { return s.err }

type stubIndexer struct {
	imported []models.KnowledgeEntry
	err      error
}

func (s *stubIndexer) Import(ctx context.Context, entries []models.KnowledgeEntry) (int, error) {
	s.imported = entries
	return len(entries), s.err
}

func (s *stubIndexer) Reindex(ctx context.Context) (int, error) {
	return 3, s.err
}

func do(t *testing.T, app *fiber.App, method, path, body string, header ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestChatHandler_HandleChat(t *testing.T) {
	engine := &stubEngine{resp: chat.Response{Type: chat.ResponseEscalated, Message: "opened", CaseID: "CASE-1"}}
	app := fiber.New()
	app.Post("/chat", NewChatHandler(engine, &stubStore{}).HandleChat)

	code, body := do(t, app, "POST", "/chat",
		`{"user_question":"Where is my invoice?","user_session_id":"s1","user_info":{"name":"Kanak","email":"kanak@mps.com"}}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"response_type": "ESCALATED", "message": "opened", "case_id": "CASE-1"}, body)

	require.Len(t, engine.turns, 1)
	assert.Equal(t, "Where is my invoice?", engine.turns[0].Question)
	assert.Equal(t, "s1", engine.turns[0].SessionID)
	require.NotNil(t, engine.turns[0].UserInfo)
	assert.Equal(t, "kanak@mps.com", engine.turns[0].UserInfo.Email)
}

func TestChatHandler_MalformedBody(t *testing.T) {
	engine := &stubEngine{}
	app := fiber.New()
	app.Post("/chat", NewChatHandler(engine, &stubStore{}).HandleChat)

	code, body := do(t, app, "POST", "/chat", `{"user_question":`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ERROR", body["response_type"])
	assert.Equal(t, "Invalid request body", body["message"])
	assert.Empty(t, engine.turns)
}

func TestChatHandler_GetHistory(t *testing.T) {
	score := 0.91
	store := &stubStore{logs: []models.ChatLogRecord{{
		ID:              "log-1",
		SessionID:       "s1",
		Question:        "How do I register a DOI?",
		ResponseType:    "ANSWERED",
		ConfidenceScore: &score,
		CreatedAt:       time.Unix(1700000000, 0),
	}}}
	app := fiber.New()
	h := NewChatHandler(&stubEngine{}, store)
	app.Get("/history", h.GetHistory)

	code, _ := do(t, app, "GET", "/history", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := do(t, app, "GET", "/history?session_id=s1&limit=9999", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, maxHistoryLimit, store.limit)
	history := body["history"].([]any)
	require.Len(t, history, 1)
	item := history[0].(map[string]any)
	assert.Equal(t, "ANSWERED", item["response_type"])
	assert.InDelta(t, 0.91, item["confidence_score"], 1e-9)
	assert.NotContains(t, item, "case_id")

	store.err = errors.New("disk I/O error")
	code, body = do(t, app, "GET", "/history?session_id=s1", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotContains(t, body["error"], "disk")
}

const adminSecret = "admin-secret"

func newAdminApp(t *testing.T, threshold *matching.Threshold, indexer *stubIndexer, store *stubStore) (*fiber.App, string) {
	t.Helper()
	h := NewAdminHandler(threshold, indexer, store)
	app := fiber.New()
	admin := app.Group("/admin", auth.AdminMiddleware(adminSecret))
	admin.Get("/threshold", h.GetThreshold)
	admin.Put("/threshold", h.UpdateThreshold)
	admin.Get("/kb/entries", h.ListEntries)
	admin.Get("/kb/entries/:id", h.GetEntry)
	admin.Post("/kb/entries", h.ImportEntries)
	admin.Post("/kb/reindex", h.Reindex)
	admin.Get("/unanswered", h.ListUnanswered)

	token, err := auth.IssueAdminToken(adminSecret, "ops", time.Hour)
	require.NoError(t, err)
	return app, "Bearer " + token
}

func TestAdminHandler_Threshold(t *testing.T) {
	threshold, err := matching.NewThreshold(0.7)
	require.NoError(t, err)
	app, bearer := newAdminApp(t, threshold, &stubIndexer{}, &stubStore{})

	code, _ := do(t, app, "GET", "/admin/threshold", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := do(t, app, "GET", "/admin/threshold", "", "Authorization", bearer)
	assert.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 0.7, body["threshold"], 1e-9)

	code, body = do(t, app, "PUT", "/admin/threshold", `{"threshold":0.8}`, "Authorization", bearer)
	assert.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 0.8, body["threshold"], 1e-9)
	assert.InDelta(t, 0.8, threshold.Load(), 1e-9)

	for _, bad := range []string{`{"threshold":1.2}`, `{"threshold":-0.1}`, `{}`} {
		code, _ = do(t, app, "PUT", "/admin/threshold", bad, "Authorization", bearer)
		assert.Equal(t, http.StatusBadRequest, code, bad)
	}
	assert.InDelta(t, 0.8, threshold.Load(), 1e-9)
}

func TestAdminHandler_ImportAndReindex(t *testing.T) {
	threshold, err := matching.NewThreshold(0.7)
	require.NoError(t, err)
	indexer := &stubIndexer{}
	app, bearer := newAdminApp(t, threshold, indexer, &stubStore{})

	code, body := do(t, app, "POST", "/admin/kb/entries",
		`{"entries":[{"id":"kb-1","primary_question":"q","answer_text":"a","category":"DOI","confidence_weight":1}]}`,
		"Authorization", bearer)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["indexed"])
	require.Len(t, indexer.imported, 1)
	assert.Equal(t, "kb-1", indexer.imported[0].ID)

	code, _ = do(t, app, "POST", "/admin/kb/entries", `[]`, "Authorization", bearer)
	assert.Equal(t, http.StatusBadRequest, code)

	indexer.err = apperr.Validation("import entries", errors.New("entry kb-1: answer text is required"))
	code, _ = do(t, app, "POST", "/admin/kb/entries", `[{"id":"kb-1"}]`, "Authorization", bearer)
	assert.Equal(t, http.StatusBadRequest, code)

	indexer.err = nil
	code, body = do(t, app, "POST", "/admin/kb/reindex", "", "Authorization", bearer)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["indexed"])
}

func TestAdminHandler_Entries(t *testing.T) {
	threshold, err := matching.NewThreshold(0.7)
	require.NoError(t, err)
	store := &stubStore{entries: []models.KnowledgeEntry{
		{ID: "kb-1", PrimaryQuestion: "How do I register a DOI?", Category: models.CategoryDOI, Status: models.StatusActive},
		{ID: "kb-2", PrimaryQuestion: "Old hosting question", Category: models.CategoryHosting, Status: models.StatusInactive},
	}}
	app, bearer := newAdminApp(t, threshold, &stubIndexer{}, store)

	code, body := do(t, app, "GET", "/admin/kb/entries", "", "Authorization", bearer)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["count"])

	code, body = do(t, app, "GET", "/admin/kb/entries/kb-2", "", "Authorization", bearer)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "inactive", body["status"])

	code, _ = do(t, app, "GET", "/admin/kb/entries/missing", "", "Authorization", bearer)
	assert.Equal(t, http.StatusNotFound, code)

	store.err = errors.New("db down")
	code, _ = do(t, app, "GET", "/admin/kb/entries", "", "Authorization", bearer)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestAdminHandler_ListUnanswered(t *testing.T) {
	threshold, err := matching.NewThreshold(0.7)
	require.NoError(t, err)
	store := &stubStore{unanswered: []models.UnansweredQuestion{{
		ID:        "u-1",
		Question:  "My website is down",
		Category:  models.CategoryHosting,
		CaseID:    "CASE-1",
		UserEmail: "kanak@mps.com",
	}}}
	app, bearer := newAdminApp(t, threshold, &stubIndexer{}, store)

	code, body := do(t, app, "GET", "/admin/unanswered", "", "Authorization", bearer)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, defaultUnansweredLimit, store.limit)
	items := body["unanswered"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Hosting", items[0].(map[string]any)["category"])
}

type stubBreaker string

func (s stubBreaker) BreakerState() string { return string(s) }

func TestHealthHandler(t *testing.T) {
	store := &stubStore{}
	h := NewHealthHandler(map[string]Pinger{"storage": store}, map[string]BreakerReporter{"embedding": stubBreaker("open")})
	app := fiber.New()
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)

	code, body := do(t, app, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "open", body["circuits"].(map[string]any)["embedding"])

	code, _ = do(t, app, "GET", "/ready", "")
	assert.Equal(t, http.StatusOK, code, "an open circuit does not fail readiness")

	store.err = errors.New("connection refused")
	code, body = do(t, app, "GET", "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["checks"].(map[string]any)["storage"])
}
