// Package escalation opens support cases for questions the knowledge base
// could not answer.
package escalation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
)

type Token struct {
	AccessToken string
	InstanceURL string
	ExpiresAt   time.Time
}

func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && now.Before(t.ExpiresAt)
}

type CaseRequest struct {
	Question   string
	Category   models.Category
	Confidence float64
	Identity   models.Identity
}

// maxSubjectLen is the tracker's subject limit, in characters.
const maxSubjectLen = 255

func (r CaseRequest) Subject() string {
	subject := fmt.Sprintf("[%s] %s", r.Category, strings.TrimSpace(r.Question))
	if utf8.RuneCountInString(subject) > maxSubjectLen {
		subject = truncateRunes(subject, maxSubjectLen-3) + "..."
	}
	return subject
}

// truncateRunes keeps the first n runes of s.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func (r CaseRequest) Description() string {
	return fmt.Sprintf("Question: %s\nCategory: %s\nBot confidence: %.3f\nName: %s\nEmail: %s\nOrganization: %s",
		r.Question, r.Category, r.Confidence, r.Identity.Name, r.Identity.Email, r.Identity.Organization)
}

// TicketSystem is a remote case tracker. Authenticate is called by the
// Creator, which owns token caching.
type TicketSystem interface {
	Authenticate(ctx context.Context) (*Token, error)
	CreateCase(ctx context.Context, token *Token, req CaseRequest) (string, error)
}

var placeholderPrefixes = []string{"your_", "your-", "changeme", "placeholder", "xxx"}

// IsPlaceholder reports credentials left at sample values, which switch the
// service to mock ticketing.
func IsPlaceholder(values ...string) bool {
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			return true
		}
		for _, p := range placeholderPrefixes {
			if strings.HasPrefix(v, p) {
				return true
			}
		}
	}
	return false
}
