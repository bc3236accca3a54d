package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/apperr"
	"github.com/ShreyaJV11/support-chatbot/internal/metrics"
	"github.com/ShreyaJV11/support-chatbot/pkg/circuitbreaker"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
	"github.com/ShreyaJV11/support-chatbot/pkg/retry"
)

const (
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 10 * time.Second
	batchSize      = 100
)

// Provider turns text into a fixed-length vector. Implementations are safe for
// concurrent use.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
}

type OpenAIProvider struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	cb := circuitbreaker.NewCircuitBreaker("embedding", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		IsFailure:        countsAgainstBreaker,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    cfg.MaxAttempts,
		InitialDelay:   cfg.InitialDelay,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Embedding provider initialized",
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("embed", errors.New("text is empty"))
	}

	vectors, err := p.create(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))
		batch, err := p.create(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))
	return embeddings, nil
}

func (p *OpenAIProvider) create(ctx context.Context, input []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var vectors [][]float32
	err := p.cb.Execute(ctx, func() error {
		var err error
		vectors, err = retry.DoWithResult(ctx, p.retryConfig, func() ([][]float32, error) {
			return p.request(ctx, input)
		})
		return err
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		logger.Warn("Embedding circuit open, request rejected", zap.String("model", p.model))
		metrics.EmbeddingRequests.WithLabelValues(p.model, "rejected").Inc()
		return nil, apperr.Provider("create embeddings", err)
	}
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues(p.model, "error").Inc()
		return nil, apperr.Provider("create embeddings", err)
	}

	metrics.EmbeddingRequests.WithLabelValues(p.model, "ok").Inc()
	return vectors, nil
}

func (p *OpenAIProvider) request(ctx context.Context, input []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		if !isRetryable(err) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	if len(resp.Data) != len(input) {
		return nil, retry.Permanent(fmt.Errorf("expected %d embeddings, got %d", len(input), len(resp.Data)))
	}

	out := make([][]float32, len(input))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(out) || len(data.Embedding) == 0 {
			return nil, retry.Permanent(fmt.Errorf("malformed embedding at index %d", data.Index))
		}
		out[data.Index] = data.Embedding
	}
	return out, nil
}

// BreakerState reports the provider circuit: closed, half-open or open.
func (p *OpenAIProvider) BreakerState() string {
	return p.cb.State()
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// isRetryable retries rate limiting, server errors and transport failures.
// Auth and request errors fail immediately.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	code := statusCode(err)
	switch {
	case code == 0:
		return true
	case code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

// countsAgainstBreaker keeps caller mistakes from opening the breaker.
func countsAgainstBreaker(err error) bool {
	code := statusCode(err)
	return code == 0 || code == http.StatusTooManyRequests || code >= 500
}
