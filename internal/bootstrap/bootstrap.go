// Package bootstrap builds the collaborators selected by configuration. It is
// shared by the API server and the indexer CLI.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ShreyaJV11/support-chatbot/internal/cache/memory"
	rediscache "github.com/ShreyaJV11/support-chatbot/internal/cache/redis"
	"github.com/ShreyaJV11/support-chatbot/internal/embedding"
	"github.com/ShreyaJV11/support-chatbot/internal/escalation"
	"github.com/ShreyaJV11/support-chatbot/internal/kb"
	"github.com/ShreyaJV11/support-chatbot/internal/matching"
	"github.com/ShreyaJV11/support-chatbot/internal/session"
	"github.com/ShreyaJV11/support-chatbot/internal/storage"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/postgres"
	"github.com/ShreyaJV11/support-chatbot/internal/storage/sqlite"
	"github.com/ShreyaJV11/support-chatbot/internal/vector/zilliz"
	"github.com/ShreyaJV11/support-chatbot/pkg/config"
	"github.com/ShreyaJV11/support-chatbot/pkg/logger"
)

// Stores bundles the persistence backends. Index and Sink are nil when no
// external vector index is configured.
type Stores struct {
	Store storage.Store
	Index matching.VectorIndex
	Sink  kb.VectorSink
	Redis *rediscache.Client

	closers []func() error
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("Failed to close backend", zap.Error(err))
		}
	}
}

func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	s := &Stores{}

	var pg *postgres.Store
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.NewGormDB(postgres.Config{
			Host:     cfg.Storage.Postgres.Host,
			Port:     cfg.Storage.Postgres.Port,
			User:     cfg.Storage.Postgres.User,
			Password: cfg.Storage.Postgres.Password,
			DBName:   cfg.Storage.Postgres.DBName,
			SSLMode:  cfg.Storage.Postgres.SSLMode,
		})
		if err != nil {
			return nil, err
		}
		pg = postgres.NewStore(db)
		s.closers = append(s.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.Store = pg
	default:
		if dir := filepath.Dir(cfg.Storage.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		client, err := sqlite.NewClient(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		if err := client.InitSchema(); err != nil {
			s.Close()
			return nil, err
		}
		s.Store = client
	}

	switch cfg.Vector.Backend {
	case "milvus":
		connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Vector.TimeoutSec)*time.Second)
		defer cancel()
		zc, err := zilliz.NewClient(connectCtx, cfg.Vector.Endpoint, cfg.Vector.APIKey, cfg.Vector.CollectionName, cfg.Vector.VectorDim)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, zc.Close)
		if err := zc.CreateCollection(connectCtx); err != nil {
			s.Close()
			return nil, err
		}
		s.Index = zc
		s.Sink = zc
	case "pgvector":
		// vectors are written by SetEntryEmbeddings, so there is no separate sink
		if pg != nil {
			s.Index = pg
		}
	}

	if cfg.Redis.Enabled {
		rc, err := rediscache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, rc.Close)
		s.Redis = rc
	}

	logger.Info("Backends ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("vector", cfg.Vector.Backend),
		zap.Bool("redis", s.Redis != nil),
	)

	return s, nil
}

// Embedder wraps the OpenAI provider in an embedding cache, redis when
// available and in-process otherwise.
func Embedder(cfg *config.Config, redis *rediscache.Client) embedding.Provider {
	provider := embedding.NewOpenAIProvider(embedding.Config{
		APIKey:      cfg.Embedding.APIKey,
		BaseURL:     cfg.Embedding.BaseURL,
		Model:       cfg.Embedding.Model,
		Timeout:     time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		MaxAttempts: cfg.Embedding.MaxAttempts,
	})

	if redis != nil {
		return embedding.NewCached(provider, redis, cfg.Embedding.CacheTTL, "redis")
	}
	return embedding.NewCached(provider, memory.NewEmbeddingCache(cfg.Embedding.CacheTTL), cfg.Embedding.CacheTTL, "memory")
}

func Sessions(cfg *config.Config, redis *rediscache.Client) session.Store {
	if cfg.Session.Backend == "redis" {
		if redis != nil {
			return session.NewRedisStore(redis, cfg.Session.TTL)
		}
		logger.Warn("session.backend is redis but redis is disabled, using memory sessions")
	}
	return session.NewMemoryStore(cfg.Session.TTL)
}

// TicketSystem returns the Salesforce client, or the mock tracker when the
// credentials are still placeholders.
func TicketSystem(cfg *config.Config) escalation.TicketSystem {
	t := cfg.Ticketing
	if escalation.IsPlaceholder(t.ClientID, t.ClientSecret, t.Username, t.Password) {
		logger.Warn("Ticketing credentials not configured, escalations use mock case ids")
		return &escalation.MockTicketSystem{Latency: t.MockLatency}
	}
	return escalation.NewSalesforceClient(escalation.SalesforceConfig{
		TokenURL:        t.TokenURL,
		ClientID:        t.ClientID,
		ClientSecret:    t.ClientSecret,
		Username:        t.Username,
		Password:        t.Password,
		APIVersion:      t.APIVersion,
		Timeout:         time.Duration(t.TimeoutSec) * time.Second,
		TokenTTL:        t.TokenTTL,
		CaseOrigin:      t.CaseOrigin,
		DefaultPriority: t.DefaultPriority,
	})
}

func MatchingOptions(cfg *config.Config) matching.Options {
	m := cfg.Matching
	return matching.Options{
		Mode:             matching.Mode(m.Mode),
		LexicalFallback:  m.LexicalFallback,
		LexicalRankFloor: m.LexicalRankFloor,
		LexicalRankCeil:  m.LexicalRankCeil,
		ScanConcurrency:  m.ScanConcurrency,
		SearchTimeout:    time.Duration(m.SearchTimeoutSec) * time.Second,
	}
}

// Matcher builds the matching engine over the opened stores. The lexical
// stage is only wired when enabled.
func Matcher(cfg *config.Config, stores *Stores, embedder matching.Embedder, threshold *matching.Threshold) *matching.Engine {
	var lexical matching.LexicalSearcher
	if cfg.Matching.LexicalFallback {
		lexical = stores.Store
	}
	return matching.NewEngine(embedder, stores.Index, lexical, stores.Store, threshold, MatchingOptions(cfg))
}
