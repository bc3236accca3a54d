package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/chat"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type TurnHandler interface {
	HandleTurn(ctx context.Context, turn chat.Turn) chat.Response
}

type HistoryStore interface {
	ListChatLogs(ctx context.Context, sessionID string, limit int) ([]models.ChatLogRecord, error)
}

type ChatHandler struct {
	engine  TurnHandler
	history HistoryStore
}

func NewChatHandler(engine TurnHandler, history HistoryStore) *ChatHandler {
	return &ChatHandler{
		engine:  engine,
		history: history,
	}
}

// HandleChat answers with one of the four chat response shapes. A malformed
// body gets the ERROR shape with status 200, like any other failed turn.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var turn chat.Turn
	if err := c.BodyParser(&turn); err != nil {
		logger.Warn("Failed to parse chat request", zap.Error(err))
		return c.JSON(fiber.Map{
			"response_type": chat.ResponseError,
			"message":       "Invalid request body",
		})
	}

	resp := h.engine.HandleTurn(c.UserContext(), turn)
	return c.JSON(resp)
}

type historyItem struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	ResponseType    string    `json:"response_type"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty"`
	CaseID          *string   `json:"case_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	limit := parseLimit(c.Query("limit"), defaultHistoryLimit, maxHistoryLimit)

	records, err := h.history.ListChatLogs(c.UserContext(), sessionID, limit)
	if err != nil {
		logger.Error("Failed to load chat history",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chat history",
		})
	}

	items := make([]historyItem, 0, len(records))
	for _, r := range records {
		items = append(items, historyItem{
			ID:              r.ID,
			Question:        r.Question,
			ResponseType:    r.ResponseType,
			ConfidenceScore: r.ConfidenceScore,
			CaseID:          r.CaseID,
			CreatedAt:       r.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"history":    items,
	})
}

func parseLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
