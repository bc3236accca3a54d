package models

import (
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryDOI     Category = "DOI"
	CategoryAccess  Category = "Access"
	CategoryHosting Category = "Hosting"
	CategoryUnknown Category = "Unknown"
)

func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "doi":
		return CategoryDOI, nil
	case "access":
		return CategoryAccess, nil
	case "hosting":
		return CategoryHosting, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

type EntryStatus string

const (
	StatusActive   EntryStatus = "active"
	StatusInactive EntryStatus = "inactive"
)

// KnowledgeEntry is one curated question/answer record. QuestionEmbeddings, when
// present, holds one vector per question in Questions() order.
type KnowledgeEntry struct {
	ID                 string      `json:"id"`
	PrimaryQuestion    string      `json:"primary_question"`
	AlternateQuestions []string    `json:"alternate_questions"`
	AnswerText         string      `json:"answer_text"`
	Category           Category    `json:"category"`
	ConfidenceWeight   float64     `json:"confidence_weight"`
	Status             EntryStatus `json:"status"`
	QuestionEmbeddings [][]float32 `json:"-"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func (e *KnowledgeEntry) Questions() []string {
	questions := make([]string, 0, 1+len(e.AlternateQuestions))
	questions = append(questions, e.PrimaryQuestion)
	for _, q := range e.AlternateQuestions {
		if strings.TrimSpace(q) != "" {
			questions = append(questions, q)
		}
	}
	return questions
}

func (e *KnowledgeEntry) Validate() error {
	if strings.TrimSpace(e.PrimaryQuestion) == "" {
		return fmt.Errorf("entry %s: primary question is required", e.ID)
	}
	if strings.TrimSpace(e.AnswerText) == "" {
		return fmt.Errorf("entry %s: answer text is required", e.ID)
	}
	if e.ConfidenceWeight < 0 || e.ConfidenceWeight > 1 {
		return fmt.Errorf("entry %s: confidence weight %v outside [0,1]", e.ID, e.ConfidenceWeight)
	}
	if _, err := ParseCategory(string(e.Category)); err != nil {
		return fmt.Errorf("entry %s: %w", e.ID, err)
	}
	if e.Status != StatusActive && e.Status != StatusInactive {
		return fmt.Errorf("entry %s: unknown status %q", e.ID, e.Status)
	}
	return nil
}

type Identity struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
}

func (i Identity) IsZero() bool {
	return i.Email == ""
}

type User struct {
	ID           string
	Name         string
	Email        string
	Organization string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ChatLogRecord struct {
	ID              string
	SessionID       string
	Question        string
	ResponseType    string
	ConfidenceScore *float64
	CaseID          *string
	CreatedAt       time.Time
}

type UnansweredQuestion struct {
	ID              string
	Question        string
	Category        Category
	ConfidenceScore float64
	CaseID          string
	UserEmail       string
	CreatedAt       time.Time
}

// VectorHit is one nearest-neighbour row together with the entry snapshot
// stored alongside the vector.
type VectorHit struct {
	Score    float64
	Metadata KnowledgeEntry
}

// LexicalHit is a full-text row with the backend's raw rank.
type LexicalHit struct {
	Entry KnowledgeEntry
	Rank  float64
}
