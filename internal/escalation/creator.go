package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/apperr"
	"github.com/ShreyaJV11/support-chatbot/internal/metrics"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

// Outcome always carries a case id. Fallback is set when the tracker could
// not be reached and CaseID was synthesized locally.
type Outcome struct {
	CaseID   string
	Fallback bool
	Mock     bool
	Attempts int
}

type phaseResult struct {
	caseID string
	err    error
}

type Creator struct {
	system  TicketSystem
	mock    bool
	timeout time.Duration
	now     func() time.Time

	mu    sync.Mutex
	token *Token
}

type CreatorOption func(*Creator)

func WithClock(now func() time.Time) CreatorOption {
	return func(c *Creator) { c.now = now }
}

func WithTimeout(d time.Duration) CreatorOption {
	return func(c *Creator) { c.timeout = d }
}

func NewCreator(system TicketSystem, opts ...CreatorOption) *Creator {
	_, mock := system.(*MockTicketSystem)
	c := &Creator{
		system:  system,
		mock:    mock,
		timeout: 15 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateCase tries the cached token first, then once more with a fresh token. If
// both phases fail the case id is synthesized and the failure is only logged.
func (c *Creator) CreateCase(ctx context.Context, req CaseRequest) Outcome {
	first := c.attempt(ctx, req, false)
	if first.err == nil {
		return c.done(first.caseID, 1)
	}
	logger.Warn("Case creation failed, retrying with fresh token",
		zap.Error(apperr.Ticket("create case", first.err)),
	)

	second := c.attempt(ctx, req, true)
	if second.err == nil {
		return c.done(second.caseID, 2)
	}

	caseID := c.fallbackID()
	logger.Error("Case creation failed after retry, using fallback case id",
		zap.String("case_id", caseID),
		zap.String("email", req.Identity.Email),
		zap.String("category", string(req.Category)),
		zap.Error(apperr.Ticket("create case", second.err)),
	)
	metrics.EscalationsTotal.WithLabelValues("fallback").Inc()

	return Outcome{CaseID: caseID, Fallback: true, Attempts: 2}
}

func (c *Creator) done(caseID string, attempts int) Outcome {
	outcome := "ticket"
	if c.mock {
		outcome = "mock"
	}
	metrics.EscalationsTotal.WithLabelValues(outcome).Inc()
	logger.Info("Support case created",
		zap.String("case_id", caseID),
		zap.Int("attempts", attempts),
		zap.Bool("mock", c.mock),
	)
	return Outcome{CaseID: caseID, Mock: c.mock, Attempts: attempts}
}

func (c *Creator) attempt(ctx context.Context, req CaseRequest, forceAuth bool) (result phaseResult) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result = phaseResult{err: fmt.Errorf("ticket system panic: %v", r)}
		}
	}()

	token, err := c.getToken(ctx, forceAuth)
	if err != nil {
		return phaseResult{err: err}
	}

	caseID, err := c.system.CreateCase(ctx, token, req)
	if err != nil {
		c.invalidate(token)
		return phaseResult{err: err}
	}
	if caseID == "" {
		return phaseResult{err: fmt.Errorf("ticket system returned an empty case id")}
	}
	return phaseResult{caseID: caseID}
}

func (c *Creator) getToken(ctx context.Context, force bool) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.token.Valid(c.now()) {
		return c.token, nil
	}

	token, err := c.system.Authenticate(ctx)
	if err != nil {
		c.token = nil
		return nil, err
	}
	c.token = token
	return token, nil
}

func (c *Creator) invalidate(token *Token) {
	c.mu.Lock()
	if c.token == token {
		c.token = nil
	}
	c.mu.Unlock()
}

func (c *Creator) fallbackID() string {
	return fmt.Sprintf("CASE-%d", c.now().UnixMilli())
}
