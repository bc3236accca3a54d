package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/storage"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

const lexicalCandidateLimit = 50

type Client struct {
	db *sql.DB
}

var _ storage.Store = (*Client)(nil)

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kb_entries (
		id TEXT PRIMARY KEY,
		primary_question TEXT NOT NULL,
		alternate_questions TEXT NOT NULL DEFAULT '[]',
		answer_text TEXT NOT NULL,
		category TEXT NOT NULL,
		confidence_weight REAL NOT NULL DEFAULT 1.0,
		status TEXT NOT NULL DEFAULT 'active',
		question_embeddings TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_kb_entries_status ON kb_entries(status);

	CREATE VIRTUAL TABLE IF NOT EXISTS kb_question_fts USING fts4(entry_id, question, notindexed=entry_id);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		organization TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_logs (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		question TEXT NOT NULL,
		response_type TEXT NOT NULL,
		confidence_score REAL,
		case_id TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_logs_session ON chat_logs(session_id, created_at);

	CREATE TABLE IF NOT EXISTS unanswered_questions (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		category TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		case_id TEXT NOT NULL,
		user_email TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_unanswered_created ON unanswered_questions(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

const entryColumns = `id, primary_question, alternate_questions, answer_text, category, confidence_weight, status, question_embeddings, created_at, updated_at`

func (c *Client) ListActive(ctx context.Context) ([]models.KnowledgeEntry, error) {
	return c.queryEntries(ctx, `SELECT `+entryColumns+` FROM kb_entries WHERE status = ? ORDER BY id`, models.StatusActive)
}

func (c *Client) ListEntries(ctx context.Context) ([]models.KnowledgeEntry, error) {
	return c.queryEntries(ctx, `SELECT `+entryColumns+` FROM kb_entries ORDER BY id`)
}

func (c *Client) GetEntry(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	entries, err := c.queryEntries(ctx, `SELECT `+entryColumns+` FROM kb_entries WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("entry %s: %w", id, storage.ErrNotFound)
	}
	return &entries[0], nil
}

func (c *Client) queryEntries(ctx context.Context, query string, args ...interface{}) ([]models.KnowledgeEntry, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []models.KnowledgeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.KnowledgeEntry, error) {
	var (
		e                    models.KnowledgeEntry
		alternatesJSON       string
		embeddingsJSON       sql.NullString
		createdAt, updatedAt int64
	)

	err := row.Scan(
		&e.ID,
		&e.PrimaryQuestion,
		&alternatesJSON,
		&e.AnswerText,
		&e.Category,
		&e.ConfidenceWeight,
		&e.Status,
		&embeddingsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	if err := json.Unmarshal([]byte(alternatesJSON), &e.AlternateQuestions); err != nil {
		return nil, fmt.Errorf("entry %s: bad alternate questions: %w", e.ID, err)
	}
	if embeddingsJSON.Valid && embeddingsJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingsJSON.String), &e.QuestionEmbeddings); err != nil {
			logger.Warn("Ignoring unreadable stored embeddings", zap.String("entry_id", e.ID), zap.Error(err))
			e.QuestionEmbeddings = nil
		}
	}

	e.CreatedAt = time.UnixMilli(createdAt)
	e.UpdatedAt = time.UnixMilli(updatedAt)

	return &e, nil
}

func (c *Client) UpsertEntry(ctx context.Context, entry *models.KnowledgeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Status == "" {
		entry.Status = models.StatusActive
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	alternates := entry.AlternateQuestions
	if alternates == nil {
		alternates = []string{}
	}
	alternatesJSON, err := json.Marshal(alternates)
	if err != nil {
		return fmt.Errorf("failed to marshal alternate questions: %w", err)
	}

	var embeddingsJSON interface{}
	if len(entry.QuestionEmbeddings) > 0 {
		b, err := json.Marshal(entry.QuestionEmbeddings)
		if err != nil {
			return fmt.Errorf("failed to marshal embeddings: %w", err)
		}
		embeddingsJSON = string(b)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO kb_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			primary_question = excluded.primary_question,
			alternate_questions = excluded.alternate_questions,
			answer_text = excluded.answer_text,
			category = excluded.category,
			confidence_weight = excluded.confidence_weight,
			status = excluded.status,
			question_embeddings = excluded.question_embeddings,
			updated_at = excluded.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		entry.ID,
		entry.PrimaryQuestion,
		string(alternatesJSON),
		entry.AnswerText,
		entry.Category,
		entry.ConfidenceWeight,
		entry.Status,
		embeddingsJSON,
		entry.CreatedAt.UnixMilli(),
		entry.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_question_fts WHERE entry_id = ?`, entry.ID); err != nil {
		return fmt.Errorf("failed to clear fts rows: %w", err)
	}
	for _, q := range entry.Questions() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO kb_question_fts (entry_id, question) VALUES (?, ?)`, entry.ID, q); err != nil {
			return fmt.Errorf("failed to index question: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entry: %w", err)
	}

	logger.Debug("Knowledge entry upserted", zap.String("entry_id", entry.ID))
	return nil
}

func (c *Client) SetEntryEmbeddings(ctx context.Context, id string, embeddings [][]float32) error {
	b, err := json.Marshal(embeddings)
	if err != nil {
		return fmt.Errorf("failed to marshal embeddings: %w", err)
	}

	res, err := c.db.ExecContext(ctx,
		`UPDATE kb_entries SET question_embeddings = ?, updated_at = ? WHERE id = ?`,
		string(b), time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to store embeddings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// Search returns entries with a question containing every query term. FTS4
// treats space-separated phrases as an implicit AND. Rank is the share of
// query terms found in the entry's best question.
func (c *Client) Search(ctx context.Context, text string) ([]models.LexicalHit, error) {
	terms := storage.Terms(text)
	if len(terms) == 0 {
		return nil, nil
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	match := strings.Join(quoted, " ")

	rows, err := c.db.QueryContext(ctx, `
		SELECT `+prefixed("e.", entryColumns)+`, f.question
		FROM kb_question_fts f
		JOIN kb_entries e ON e.id = f.entry_id
		WHERE f.question MATCH ? AND e.status = ?
		LIMIT ?`,
		match, models.StatusActive, lexicalCandidateLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run full-text search: %w", err)
	}
	defer rows.Close()

	best := make(map[string]*models.LexicalHit)
	for rows.Next() {
		var question string
		e, err := scanEntry(scanWithExtra{rows: rows, extra: &question})
		if err != nil {
			return nil, err
		}

		rank := storage.TermOverlap(terms, question)
		if hit, ok := best[e.ID]; !ok || rank > hit.Rank {
			best[e.ID] = &models.LexicalHit{Entry: *e, Rank: rank}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search rows: %w", err)
	}

	hits := make([]models.LexicalHit, 0, len(best))
	for _, hit := range best {
		hits = append(hits, *hit)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Rank != hits[j].Rank {
			return hits[i].Rank > hits[j].Rank
		}
		return hits[i].Entry.ID < hits[j].Entry.ID
	})

	return hits, nil
}

type scanWithExtra struct {
	rows  *sql.Rows
	extra interface{}
}

func (s scanWithExtra) Scan(dest ...interface{}) error {
	return s.rows.Scan(append(dest, s.extra)...)
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (c *Client) UpsertUser(ctx context.Context, identity models.Identity) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, errors.New("email is required")
	}
	now := time.Now().UnixMilli()

	query := `
		INSERT INTO users (id, name, email, organization, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			organization = excluded.organization,
			updated_at = excluded.updated_at
	`

	_, err := c.db.ExecContext(ctx, query,
		uuid.New().String(),
		identity.Name,
		email,
		identity.Organization,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	var (
		u                    models.User
		organization         sql.NullString
		createdAt, updatedAt int64
	)
	err = c.db.QueryRowContext(ctx,
		`SELECT id, name, email, organization, created_at, updated_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Name, &u.Email, &organization, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	u.Organization = organization.String
	u.CreatedAt = time.UnixMilli(createdAt)
	u.UpdatedAt = time.UnixMilli(updatedAt)

	logger.Debug("User upserted", zap.String("user_id", u.ID))
	return &u, nil
}

func (c *Client) InsertChatLog(ctx context.Context, record *models.ChatLogRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO chat_logs (id, session_id, question, response_type, confidence_score, case_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		record.ID,
		record.SessionID,
		record.Question,
		record.ResponseType,
		record.ConfidenceScore,
		record.CaseID,
		record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat log: %w", err)
	}

	return nil
}

func (c *Client) ListChatLogs(ctx context.Context, sessionID string, limit int) ([]models.ChatLogRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, session_id, question, response_type, confidence_score, case_id, created_at
		FROM chat_logs
		WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat logs: %w", err)
	}
	defer rows.Close()

	var records []models.ChatLogRecord
	for rows.Next() {
		var (
			r          models.ChatLogRecord
			confidence sql.NullFloat64
			caseID     sql.NullString
			createdAt  int64
		)

		if err := rows.Scan(&r.ID, &r.SessionID, &r.Question, &r.ResponseType, &confidence, &caseID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if confidence.Valid {
			v := confidence.Float64
			r.ConfidenceScore = &v
		}
		if caseID.Valid {
			v := caseID.String
			r.CaseID = &v
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) InsertUnanswered(ctx context.Context, record *models.UnansweredQuestion) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO unanswered_questions (id, question, category, confidence_score, case_id, user_email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		record.ID,
		record.Question,
		record.Category,
		record.ConfidenceScore,
		record.CaseID,
		record.UserEmail,
		record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert unanswered question: %w", err)
	}

	logger.Info("Unanswered question recorded",
		zap.String("case_id", record.CaseID),
		zap.String("category", string(record.Category)),
	)

	return nil
}

func (c *Client) ListUnanswered(ctx context.Context, limit int) ([]models.UnansweredQuestion, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, question, category, confidence_score, case_id, user_email, created_at
		FROM unanswered_questions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get unanswered questions: %w", err)
	}
	defer rows.Close()

	var records []models.UnansweredQuestion
	for rows.Next() {
		var (
			r         models.UnansweredQuestion
			email     sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.Question, &r.Category, &r.ConfidenceScore, &r.CaseID, &email, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.UserEmail = email.String
		r.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, r)
	}

	return records, rows.Err()
}
