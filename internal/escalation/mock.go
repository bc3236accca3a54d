package escalation

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// MockTicketSystem simulates a healthy tracker for non-production setups.
type MockTicketSystem struct {
	Latency time.Duration
}

func (m *MockTicketSystem) Authenticate(ctx context.Context) (*Token, error) {
	return &Token{AccessToken: "mock-token", InstanceURL: "mock://", ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
}

func (m *MockTicketSystem) CreateCase(ctx context.Context, token *Token, req CaseRequest) (string, error) {
	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Latency):
		}
	}
	return fmt.Sprintf("MOCK-%08d", rand.Intn(100_000_000)), nil
}
