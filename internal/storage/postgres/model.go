package postgres

import (
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

type kbEntryRow struct {
	ID                 string   `gorm:"type:text;primaryKey"`
	PrimaryQuestion    string   `gorm:"type:text;not null"`
	AlternateQuestions []string `gorm:"serializer:json;type:jsonb;not null"`
	AnswerText         string   `gorm:"type:text;not null"`
	Category           string   `gorm:"type:text;not null"`
	ConfidenceWeight   float64  `gorm:"not null;default:1"`
	Status             string   `gorm:"type:text;not null;index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (kbEntryRow) TableName() string {
	return "kb_entries"
}

// kbQuestionRow holds one question of an entry. Embedding is NULL until the
// indexer has run.
type kbQuestionRow struct {
	ID        uint             `gorm:"primaryKey;autoIncrement"`
	EntryID   string           `gorm:"type:text;not null;index"`
	Ordinal   int              `gorm:"not null"`
	Question  string           `gorm:"type:text;not null"`
	Embedding *pgvector.Vector `gorm:"type:vector"`
}

func (kbQuestionRow) TableName() string {
	return "kb_questions"
}

type userRow struct {
	ID           string `gorm:"type:text;primaryKey"`
	Name         string `gorm:"type:text;not null"`
	Email        string `gorm:"type:text;not null;uniqueIndex"`
	Organization string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string {
	return "users"
}

type chatLogRow struct {
	ID              string    `gorm:"type:text;primaryKey"`
	SessionID       string    `gorm:"type:text;not null;index:idx_chat_logs_session"`
	Question        string    `gorm:"type:text;not null"`
	ResponseType    string    `gorm:"type:text;not null"`
	ConfidenceScore *float64
	CaseID          *string   `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"index:idx_chat_logs_session"`
}

func (chatLogRow) TableName() string {
	return "chat_logs"
}

type unansweredRow struct {
	ID              string    `gorm:"type:text;primaryKey"`
	Question        string    `gorm:"type:text;not null"`
	Category        string    `gorm:"type:text;not null"`
	ConfidenceScore float64   `gorm:"not null"`
	CaseID          string    `gorm:"type:text;not null"`
	UserEmail       string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"index"`
}

func (unansweredRow) TableName() string {
	return "unanswered_questions"
}

func toEntry(row *kbEntryRow, questions []kbQuestionRow) models.KnowledgeEntry {
	e := models.KnowledgeEntry{
		ID:                 row.ID,
		PrimaryQuestion:    row.PrimaryQuestion,
		AlternateQuestions: row.AlternateQuestions,
		AnswerText:         row.AnswerText,
		Category:           models.Category(row.Category),
		ConfidenceWeight:   row.ConfidenceWeight,
		Status:             models.EntryStatus(row.Status),
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}

	if len(questions) == 0 {
		return e
	}
	vectors := make([][]float32, 0, len(questions))
	for _, q := range questions {
		if q.Embedding == nil {
			return e
		}
		vectors = append(vectors, q.Embedding.Slice())
	}
	if len(vectors) == len(e.Questions()) {
		e.QuestionEmbeddings = vectors
	}
	return e
}

func toEntryRow(e *models.KnowledgeEntry) *kbEntryRow {
	alternates := e.AlternateQuestions
	if alternates == nil {
		alternates = []string{}
	}
	return &kbEntryRow{
		ID:                 e.ID,
		PrimaryQuestion:    e.PrimaryQuestion,
		AlternateQuestions: alternates,
		AnswerText:         e.AnswerText,
		Category:           string(e.Category),
		ConfidenceWeight:   e.ConfidenceWeight,
		Status:             string(e.Status),
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

func toChatLog(row *chatLogRow) models.ChatLogRecord {
	return models.ChatLogRecord{
		ID:              row.ID,
		SessionID:       row.SessionID,
		Question:        row.Question,
		ResponseType:    row.ResponseType,
		ConfidenceScore: row.ConfidenceScore,
		CaseID:          row.CaseID,
		CreatedAt:       row.CreatedAt,
	}
}

func toUnanswered(row *unansweredRow) models.UnansweredQuestion {
	return models.UnansweredQuestion{
		ID:              row.ID,
		Question:        row.Question,
		Category:        models.Category(row.Category),
		ConfidenceScore: row.ConfidenceScore,
		CaseID:          row.CaseID,
		UserEmail:       row.UserEmail,
		CreatedAt:       row.CreatedAt,
	}
}
