package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/apperr"
	"github.com/ShreyaJV11/support-chatbot/internal/kb"
	"github.com/ShreyaJV11/support-chatbot/internal/middleware/auth"
	"github.com/ShreyaJV11/support-chatbot/internal/storage"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

const defaultUnansweredLimit = 50

type Threshold interface {
	Load() float64
	Set(v float64) error
}

type KnowledgeIndexer interface {
	Import(ctx context.Context, entries []models.KnowledgeEntry) (int, error)
	Reindex(ctx context.Context) (int, error)
}

type AdminStore interface {
	ListEntries(ctx context.Context) ([]models.KnowledgeEntry, error)
	GetEntry(ctx context.Context, id string) (*models.KnowledgeEntry, error)
	ListUnanswered(ctx context.Context, limit int) ([]models.UnansweredQuestion, error)
}

type AdminHandler struct {
	threshold Threshold
	indexer   KnowledgeIndexer
	store     AdminStore
}

func NewAdminHandler(threshold Threshold, indexer KnowledgeIndexer, store AdminStore) *AdminHandler {
	return &AdminHandler{
		threshold: threshold,
		indexer:   indexer,
		store:     store,
	}
}

func (h *AdminHandler) GetThreshold(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"threshold": h.threshold.Load()})
}

func (h *AdminHandler) UpdateThreshold(c *fiber.Ctx) error {
	var req struct {
		Threshold *float64 `json:"threshold"`
	}
	if err := c.BodyParser(&req); err != nil || req.Threshold == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "threshold is required",
		})
	}

	previous := h.threshold.Load()
	if err := h.threshold.Set(*req.Threshold); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logger.Info("Confidence threshold updated",
		zap.Float64("previous", previous),
		zap.Float64("threshold", *req.Threshold),
		zap.String("by", auth.Subject(c)),
	)

	return c.JSON(fiber.Map{"threshold": h.threshold.Load()})
}

// ListEntries returns every entry, inactive ones included.
func (h *AdminHandler) ListEntries(c *fiber.Ctx) error {
	entries, err := h.store.ListEntries(c.UserContext())
	if err != nil {
		logger.Error("Failed to list entries", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list entries",
		})
	}
	return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
}

func (h *AdminHandler) GetEntry(c *fiber.Ctx) error {
	entry, err := h.store.GetEntry(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Entry not found",
		})
	}
	if err != nil {
		logger.Error("Failed to load entry", zap.String("entry_id", c.Params("id")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load entry",
		})
	}
	return c.JSON(entry)
}

func (h *AdminHandler) ImportEntries(c *fiber.Ctx) error {
	entries, err := kb.Decode(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(entries) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No entries provided",
		})
	}

	startTime := time.Now()
	indexed, err := h.indexer.Import(c.UserContext(), entries)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to import entries", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to import entries",
		})
	}

	return c.JSON(fiber.Map{
		"received":   len(entries),
		"indexed":    indexed,
		"latency_ms": time.Since(startTime).Milliseconds(),
	})
}

func (h *AdminHandler) Reindex(c *fiber.Ctx) error {
	startTime := time.Now()
	indexed, err := h.indexer.Reindex(c.UserContext())
	if err != nil {
		logger.Error("Failed to reindex entries", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reindex entries",
		})
	}

	return c.JSON(fiber.Map{
		"indexed":    indexed,
		"latency_ms": time.Since(startTime).Milliseconds(),
	})
}

type unansweredItem struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	Category        string    `json:"category"`
	ConfidenceScore float64   `json:"confidence_score"`
	CaseID          string    `json:"case_id"`
	UserEmail       string    `json:"user_email"`
	CreatedAt       time.Time `json:"created_at"`
}

func (h *AdminHandler) ListUnanswered(c *fiber.Ctx) error {
	limit := parseLimit(c.Query("limit"), defaultUnansweredLimit, maxHistoryLimit)

	records, err := h.store.ListUnanswered(c.UserContext(), limit)
	if err != nil {
		logger.Error("Failed to list unanswered questions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list unanswered questions",
		})
	}

	items := make([]unansweredItem, 0, len(records))
	for _, r := range records {
		items = append(items, unansweredItem{
			ID:              r.ID,
			Question:        r.Question,
			Category:        string(r.Category),
			ConfidenceScore: r.ConfidenceScore,
			CaseID:          r.CaseID,
			UserEmail:       r.UserEmail,
			CreatedAt:       r.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{"unanswered": items})
}
