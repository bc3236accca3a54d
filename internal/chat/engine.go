package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/apperr"
	"github.com/ShreyaJV11/support-chatbot/internal/escalation"
	"github.com/ShreyaJV11/support-chatbot/internal/matching"
	"github.com/ShreyaJV11/support-chatbot/internal/metrics"
	"github.com/ShreyaJV11/support-chatbot/internal/session"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/models"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

const DefaultMaxQuestionLength = 1000

type Matcher interface {
	FindBestMatch(ctx context.Context, question string) matching.MatchResult
	IsConfident(r matching.MatchResult) bool
}

type CaseCreator interface {
	CreateCase(ctx context.Context, req escalation.CaseRequest) escalation.Outcome
}

type IdentityStore interface {
	UpsertUser(ctx context.Context, identity models.Identity) (*models.User, error)
}

// Auditor receives write-and-forget records. Implementations must not block.
type Auditor interface {
	LogChat(record models.ChatLogRecord)
	RecordUnanswered(record models.UnansweredQuestion)
}

type Options struct {
	MaxQuestionLength int
	Now               func() time.Time
}

type Engine struct {
	matcher  Matcher
	sessions session.Store
	users    IdentityStore
	cases    CaseCreator
	audit    Auditor
	opts     Options
}

func NewEngine(matcher Matcher, sessions session.Store, users IdentityStore, cases CaseCreator, audit Auditor, opts Options) *Engine {
	if opts.MaxQuestionLength <= 0 {
		opts.MaxQuestionLength = DefaultMaxQuestionLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		matcher:  matcher,
		sessions: sessions,
		users:    users,
		cases:    cases,
		audit:    audit,
		opts:     opts,
	}
}

// turnLog collects what is written to the chat log once the turn is decided.
type turnLog struct {
	score  *float64
	caseID *string
}

// HandleTurn always returns one of the four response shapes. Failures below
// it degrade to ESCALATED, COLLECT_INFO or ERROR and never carry error text.
func (e *Engine) HandleTurn(ctx context.Context, turn Turn) (resp Response) {
	startTime := time.Now()
	var tl turnLog

	defer func() {
		if r := recover(); r != nil {
			err := apperr.Internal("handle turn", fmt.Errorf("panic: %v", r))
			logger.Error("Chat turn failed",
				zap.String("session_id", turn.SessionID),
				zap.Error(err),
			)
			resp = errorResponse(genericErrorMessage)
			tl = turnLog{}
		}
		e.finish(turn, resp, tl, startTime)
	}()

	question := strings.TrimSpace(turn.Question)
	if question == "" {
		return errorResponse(emptyQuestionMessage)
	}
	if utf8.RuneCountInString(question) > e.opts.MaxQuestionLength {
		return errorResponse(tooLongMessage(e.opts.MaxQuestionLength))
	}

	identity, known := e.resolveIdentity(ctx, turn)
	submission := looksLikeIdentity(question)

	if !known {
		if !submission {
			return collectInfo(collectInfoMessage)
		}
		return e.verify(ctx, turn.SessionID, question)
	}

	if submission {
		return answered(alreadyVerifiedMessage(identity.Name, identity.Email), 1)
	}

	return e.answerOrEscalate(ctx, turn.SessionID, question, identity, &tl)
}

// resolveIdentity prefers explicit user info on the turn, then the session.
// Explicit info is written back to the session so later turns see it.
func (e *Engine) resolveIdentity(ctx context.Context, turn Turn) (models.Identity, bool) {
	if identity, ok := identityFromUserInfo(turn.UserInfo); ok {
		e.saveSession(ctx, turn.SessionID, identity)
		return identity, true
	}
	if turn.SessionID == "" || e.sessions == nil {
		return models.Identity{}, false
	}

	identity, ok, err := e.sessions.Get(ctx, turn.SessionID)
	if err != nil {
		logger.Warn("Session lookup failed",
			zap.String("session_id", turn.SessionID),
			zap.Error(apperr.Persistence("session get", err)),
		)
		return models.Identity{}, false
	}
	if !ok || identity.IsZero() {
		return models.Identity{}, false
	}
	return identity, true
}

func (e *Engine) verify(ctx context.Context, sessionID, question string) Response {
	identity, err := parseIdentity(question)
	if err != nil {
		logger.Debug("Identity submission rejected",
			zap.String("session_id", sessionID),
			zap.Error(apperr.Validation("parse identity", err)),
		)
		return collectInfo(identityFormatMessage)
	}

	e.saveSession(ctx, sessionID, identity)

	if e.users != nil {
		if _, err := e.users.UpsertUser(ctx, identity); err != nil {
			logger.Error("Failed to upsert user",
				zap.String("email", identity.Email),
				zap.Error(apperr.Persistence("upsert user", err)),
			)
		}
	}

	logger.Info("Identity verified",
		zap.String("session_id", sessionID),
		zap.String("email", identity.Email),
		zap.String("organization", identity.Organization),
	)
	return answered(verifiedMessage(identity.Name), 1)
}

func (e *Engine) answerOrEscalate(ctx context.Context, sessionID, question string, identity models.Identity, tl *turnLog) Response {
	result := e.matcher.FindBestMatch(ctx, question)
	score := result.Score
	tl.score = &score

	if e.matcher.IsConfident(result) && result.Entry != nil {
		return answered(answerPreamble+result.Entry.AnswerText, score)
	}

	category := matching.DetectCategory(question)
	outcome := e.cases.CreateCase(ctx, escalation.CaseRequest{
		Question:   question,
		Category:   category,
		Confidence: score,
		Identity:   identity,
	})
	caseID := outcome.CaseID
	tl.caseID = &caseID

	if e.audit != nil {
		e.audit.RecordUnanswered(models.UnansweredQuestion{
			ID:              uuid.New().String(),
			Question:        question,
			Category:        category,
			ConfidenceScore: score,
			CaseID:          caseID,
			UserEmail:       identity.Email,
			CreatedAt:       e.opts.Now(),
		})
	}

	logger.Info("Question escalated",
		zap.String("session_id", sessionID),
		zap.String("case_id", caseID),
		zap.String("category", string(category)),
		zap.Float64("confidence", score),
		zap.Bool("fallback", outcome.Fallback),
	)

	return escalated(escalationMessage(identity.Name, identity.Email, identity.Organization, caseID), caseID)
}

func (e *Engine) saveSession(ctx context.Context, sessionID string, identity models.Identity) {
	if sessionID == "" || e.sessions == nil {
		return
	}
	if err := e.sessions.Save(ctx, sessionID, identity); err != nil {
		logger.Warn("Failed to save session identity",
			zap.String("session_id", sessionID),
			zap.Error(apperr.Persistence("session save", err)),
		)
	}
}

func (e *Engine) finish(turn Turn, resp Response, tl turnLog, startTime time.Time) {
	responseType := string(resp.Type)
	metrics.ResponsesTotal.WithLabelValues(responseType).Inc()
	metrics.TurnDuration.WithLabelValues(responseType).Observe(time.Since(startTime).Seconds())

	if e.audit == nil {
		return
	}
	e.audit.LogChat(models.ChatLogRecord{
		ID:              uuid.New().String(),
		SessionID:       turn.SessionID,
		Question:        turn.Question,
		ResponseType:    responseType,
		ConfidenceScore: tl.score,
		CaseID:          tl.caseID,
		CreatedAt:       e.opts.Now(),
	})
}
