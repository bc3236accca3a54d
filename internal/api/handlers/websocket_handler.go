package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/chat"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

type WebSocketHandler struct {
	engine      TurnHandler
	turnTimeout time.Duration
}

func NewWebSocketHandler(engine TurnHandler) *WebSocketHandler {
	return &WebSocketHandler{
		engine:      engine,
		turnTimeout: 60 * time.Second,
	}
}

// HandleConnection processes one chat turn per JSON message and writes back
// the turn's response. The session id from the query string applies to turns
// that omit one.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	defaultSession := c.Query("session_id")
	logger.Info("WebSocket connection established", zap.String("session_id", defaultSession))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("session_id", defaultSession))
	}()

	for {
		var turn chat.Turn
		if err := c.ReadJSON(&turn); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}
		if turn.SessionID == "" {
			turn.SessionID = defaultSession
		}

		resp := h.handle(turn)
		if err := c.WriteJSON(resp); err != nil {
			logger.Error("Failed to write WebSocket response", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) handle(turn chat.Turn) chat.Response {
	ctx, cancel := context.WithTimeout(context.Background(), h.turnTimeout)
	defer cancel()
	return h.engine.HandleTurn(ctx, turn)
}
