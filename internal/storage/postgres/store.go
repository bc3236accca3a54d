package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ShreyaJV11/support-chatbot/internal/storage"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

const lexicalCandidateLimit = 50

// Store is the postgres driver. With the pgvector extension it also serves as
// the vector index over kb_questions.
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if err := s.db.WithContext(ctx).AutoMigrate(
		&kbEntryRow{},
		&kbQuestionRow{},
		&userRow{},
		&chatLogRow{},
		&unansweredRow{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.Info("Postgres schema migrated")
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) ListActive(ctx context.Context) ([]models.KnowledgeEntry, error) {
	return s.loadEntries(ctx, s.db.WithContext(ctx).Where("status = ?", models.StatusActive))
}

func (s *Store) ListEntries(ctx context.Context) ([]models.KnowledgeEntry, error) {
	return s.loadEntries(ctx, s.db.WithContext(ctx))
}

func (s *Store) GetEntry(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	entries, err := s.loadEntries(ctx, s.db.WithContext(ctx).Where("id = ?", id))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("entry %s: %w", id, storage.ErrNotFound)
	}
	return &entries[0], nil
}

func (s *Store) loadEntries(ctx context.Context, query *gorm.DB) ([]models.KnowledgeEntry, error) {
	var rows []kbEntryRow
	if err := query.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	var questions []kbQuestionRow
	if err := s.db.WithContext(ctx).
		Where("entry_id IN ?", ids).
		Order("entry_id, ordinal").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}

	byEntry := make(map[string][]kbQuestionRow, len(rows))
	for _, q := range questions {
		byEntry[q.EntryID] = append(byEntry[q.EntryID], q)
	}

	entries := make([]models.KnowledgeEntry, len(rows))
	for i := range rows {
		entries[i] = toEntry(&rows[i], byEntry[rows[i].ID])
	}
	return entries, nil
}

func (s *Store) UpsertEntry(ctx context.Context, entry *models.KnowledgeEntry) error {
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

	questions := entry.Questions()
	embedded := len(entry.QuestionEmbeddings) == len(questions)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := toEntryRow(entry)
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"primary_question", "alternate_questions", "answer_text",
				"category", "confidence_weight", "status", "updated_at",
			}),
		}).Create(row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert entry: %w", err)
		}

		if err := tx.Where("entry_id = ?", entry.ID).Delete(&kbQuestionRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear questions: %w", err)
		}

		qrows := make([]kbQuestionRow, len(questions))
		for i, q := range questions {
			qrows[i] = kbQuestionRow{EntryID: entry.ID, Ordinal: i, Question: q}
			if embedded {
				v := pgvector.NewVector(entry.QuestionEmbeddings[i])
				qrows[i].Embedding = &v
			}
		}
		if err := tx.Create(&qrows).Error; err != nil {
			return fmt.Errorf("failed to insert questions: %w", err)
		}

		logger.Debug("Knowledge entry upserted", zap.String("entry_id", entry.ID))
		return nil
	})
}

func (s *Store) SetEntryEmbeddings(ctx context.Context, id string, embeddings [][]float32) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var questions []kbQuestionRow
		if err := tx.Where("entry_id = ?", id).Order("ordinal").Find(&questions).Error; err != nil {
			return fmt.Errorf("failed to load questions: %w", err)
		}
		if len(questions) == 0 {
			return fmt.Errorf("entry %s: %w", id, storage.ErrNotFound)
		}
		if len(questions) != len(embeddings) {
			return fmt.Errorf("entry %s: %d embeddings for %d questions", id, len(embeddings), len(questions))
		}

		for i, q := range questions {
			v := pgvector.NewVector(embeddings[i])
			if err := tx.Model(&kbQuestionRow{}).Where("id = ?", q.ID).Update("embedding", &v).Error; err != nil {
				return fmt.Errorf("failed to store embedding: %w", err)
			}
		}
		return tx.Model(&kbEntryRow{}).Where("id = ?", id).Update("updated_at", time.Now()).Error
	})
}

type similarityRow struct {
	EntryID    string
	Similarity float64
}

// Query answers nearest-neighbour lookups with pgvector's cosine distance.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]models.VectorHit, error) {
	if topK <= 0 {
		topK = 1
	}
	queryVector := pgvector.NewVector(vector)

	var rows []similarityRow
	err := s.db.WithContext(ctx).
		Table("kb_questions").
		Select("kb_questions.entry_id, 1 - (kb_questions.embedding <=> ?) AS similarity", queryVector).
		Joins("JOIN kb_entries ON kb_entries.id = kb_questions.entry_id").
		Where("kb_entries.status = ?", models.StatusActive).
		Where("kb_questions.embedding IS NOT NULL").
		Order(gorm.Expr("kb_questions.embedding <=> ?", queryVector)).
		Limit(topK * 4).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	hits := make([]models.VectorHit, 0, topK)
	seen := make(map[string]bool)
	for _, r := range rows {
		if seen[r.EntryID] || len(hits) == topK {
			continue
		}
		seen[r.EntryID] = true

		entry, err := s.GetEntry(ctx, r.EntryID)
		if err != nil {
			return nil, err
		}
		hits = append(hits, models.VectorHit{Score: r.Similarity, Metadata: *entry})
	}
	return hits, nil
}

type rankRow struct {
	EntryID string
	Rank    float64
}

// Search ranks questions with ts_rank over an AND of the query terms, so a
// hit contains every term.
func (s *Store) Search(ctx context.Context, text string) ([]models.LexicalHit, error) {
	terms := storage.Terms(text)
	if len(terms) == 0 {
		return nil, nil
	}
	tsquery := strings.Join(terms, " & ")

	var rows []rankRow
	err := s.db.WithContext(ctx).
		Table("kb_questions").
		Select("kb_questions.entry_id, MAX(ts_rank(to_tsvector('english', kb_questions.question), to_tsquery('english', ?))) AS rank", tsquery).
		Joins("JOIN kb_entries ON kb_entries.id = kb_questions.entry_id").
		Where("kb_entries.status = ?", models.StatusActive).
		Where("to_tsvector('english', kb_questions.question) @@ to_tsquery('english', ?)", tsquery).
		Group("kb_questions.entry_id").
		Order("rank DESC, kb_questions.entry_id").
		Limit(lexicalCandidateLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to run full-text search: %w", err)
	}

	hits := make([]models.LexicalHit, 0, len(rows))
	for _, r := range rows {
		entry, err := s.GetEntry(ctx, r.EntryID)
		if err != nil {
			return nil, err
		}
		hits = append(hits, models.LexicalHit{Entry: *entry, Rank: r.Rank})
	}
	return hits, nil
}

func (s *Store) UpsertUser(ctx context.Context, identity models.Identity) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, errors.New("email is required")
	}

	row := userRow{
		ID:           uuid.New().String(),
		Name:         identity.Name,
		Email:        email,
		Organization: identity.Organization,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "organization", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	var stored userRow
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}

	return &models.User{
		ID:           stored.ID,
		Name:         stored.Name,
		Email:        stored.Email,
		Organization: stored.Organization,
		CreatedAt:    stored.CreatedAt,
		UpdatedAt:    stored.UpdatedAt,
	}, nil
}

func (s *Store) InsertChatLog(ctx context.Context, record *models.ChatLogRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	row := chatLogRow{
		ID:              record.ID,
		SessionID:       record.SessionID,
		Question:        record.Question,
		ResponseType:    record.ResponseType,
		ConfidenceScore: record.ConfidenceScore,
		CaseID:          record.CaseID,
		CreatedAt:       record.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert chat log: %w", err)
	}
	return nil
}

func (s *Store) ListChatLogs(ctx context.Context, sessionID string, limit int) ([]models.ChatLogRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []chatLogRow
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get chat logs: %w", err)
	}

	records := make([]models.ChatLogRecord, len(rows))
	for i := range rows {
		records[i] = toChatLog(&rows[i])
	}
	return records, nil
}

func (s *Store) InsertUnanswered(ctx context.Context, record *models.UnansweredQuestion) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	row := unansweredRow{
		ID:              record.ID,
		Question:        record.Question,
		Category:        string(record.Category),
		ConfidenceScore: record.ConfidenceScore,
		CaseID:          record.CaseID,
		UserEmail:       record.UserEmail,
		CreatedAt:       record.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert unanswered question: %w", err)
	}

	logger.Info("Unanswered question recorded",
		zap.String("case_id", record.CaseID),
		zap.String("category", string(record.Category)),
	)
	return nil
}

func (s *Store) ListUnanswered(ctx context.Context, limit int) ([]models.UnansweredQuestion, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []unansweredRow
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get unanswered questions: %w", err)
	}

	records := make([]models.UnansweredQuestion, len(rows))
	for i := range rows {
		records[i] = toUnanswered(&rows[i])
	}
	return records, nil
}
