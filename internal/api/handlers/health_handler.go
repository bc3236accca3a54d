package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes a circuit breaker state for the health payload.
type BreakerReporter interface {
	BreakerState() string
}

type HealthHandler struct {
	deps     map[string]Pinger
	breakers map[string]BreakerReporter
}

// NewHealthHandler takes the dependencies checked by Ready and the circuit
// breakers reported by Health, both keyed by name. An open circuit does not
// fail readiness since matching degrades to escalation.
func NewHealthHandler(deps map[string]Pinger, breakers map[string]BreakerReporter) *HealthHandler {
	return &HealthHandler{deps: deps, breakers: breakers}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	circuits := make(map[string]string, len(h.breakers))
	for name, b := range h.breakers {
		circuits[name] = b.BreakerState()
	}
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"time":     time.Now().Unix(),
		"circuits": circuits,
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	ready := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
			"checks": checks,
		})
	}
	return c.JSON(fiber.Map{
		"status": "ready",
		"checks": checks,
	})
}
