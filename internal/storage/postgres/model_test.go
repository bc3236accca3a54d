package postgres

import (
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

func vec(v ...float32) *pgvector.Vector {
	out := pgvector.NewVector(v)
	return &out
}

func TestToEntry(t *testing.T) {
	row := &kbEntryRow{
		ID:                 "kb-1",
		PrimaryQuestion:    "reset password",
		AlternateQuestions: []string{"forgot password"},
		AnswerText:         "Use the reset link.",
		Category:           "Access",
		ConfidenceWeight:   0.9,
		Status:             "active",
	}

	t.Run("all questions embedded", func(t *testing.T) {
		e := toEntry(row, []kbQuestionRow{
			{Ordinal: 0, Embedding: vec(1, 0)},
			{Ordinal: 1, Embedding: vec(0, 1)},
		})
		assert.Equal(t, models.CategoryAccess, e.Category)
		assert.Equal(t, models.StatusActive, e.Status)
		assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, e.QuestionEmbeddings)
	})

	t.Run("partially embedded entries carry no vectors", func(t *testing.T) {
		e := toEntry(row, []kbQuestionRow{
			{Ordinal: 0, Embedding: vec(1, 0)},
			{Ordinal: 1},
		})
		assert.Nil(t, e.QuestionEmbeddings)
	})

	t.Run("stale question rows are ignored", func(t *testing.T) {
		e := toEntry(row, []kbQuestionRow{{Ordinal: 0, Embedding: vec(1, 0)}})
		assert.Nil(t, e.QuestionEmbeddings)
	})
}

func TestToEntryRow_NilAlternates(t *testing.T) {
	row := toEntryRow(&models.KnowledgeEntry{ID: "kb-1", Category: models.CategoryDOI})
	assert.Equal(t, []string{}, row.AlternateQuestions)
	assert.Equal(t, "DOI", row.Category)
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "bot", Password: "secret", DBName: "support", SSLMode: "disable"}
	assert.Equal(t, "host=db user=bot password=secret dbname=support port=5432 sslmode=disable", cfg.DSN())
}
