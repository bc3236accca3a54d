package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Storage   StorageConfig
	Vector    VectorConfig
	Embedding EmbeddingConfig
	Redis     RedisConfig
	Session   SessionConfig
	Matching  MatchingConfig
	Ticketing TicketingConfig
	Chat      ChatConfig
	Admin     AdminConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	AllowOrigins string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type StorageConfig struct {
	Driver   string
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

type SQLiteConfig struct {
	Path string
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// VectorConfig selects where KB question vectors live: "milvus", "pgvector" or "none".
type VectorConfig struct {
	Backend        string
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
	TimeoutSec     int
}

type EmbeddingConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	TimeoutSec  int
	MaxAttempts int
	CacheTTL    time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type SessionConfig struct {
	Backend string
	TTL     time.Duration
}

type MatchingConfig struct {
	Mode             string
	Threshold        float64
	LexicalFallback  bool
	LexicalRankFloor float64
	LexicalRankCeil  float64
	ScanConcurrency  int
	SearchTimeoutSec int
}

type TicketingConfig struct {
	TokenURL        string
	ClientID        string
	ClientSecret    string
	Username        string
	Password        string
	APIVersion      string
	TimeoutSec      int
	TokenTTL        time.Duration
	MockLatency     time.Duration
	CaseOrigin      string
	DefaultPriority string
}

type ChatConfig struct {
	MaxQuestionLength int
}

type AdminConfig struct {
	JWTSecret string
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/support-chatbot")

	viper.SetEnvPrefix("SUPPORT_BOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Matching.Threshold < 0 || c.Matching.Threshold > 1 {
		return fmt.Errorf("matching.threshold must be within [0,1], got %v", c.Matching.Threshold)
	}
	if c.Matching.LexicalRankFloor > c.Matching.LexicalRankCeil {
		return errors.New("matching.lexicalRankFloor must not exceed matching.lexicalRankCeil")
	}
	switch c.Matching.Mode {
	case "vector", "scan":
	default:
		return fmt.Errorf("unknown matching.mode %q", c.Matching.Mode)
	}
	if c.Matching.Mode == "vector" && c.Vector.Backend == "none" {
		return errors.New("matching.mode vector requires vector.backend milvus or pgvector")
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Vector.Backend == "pgvector" && c.Storage.Driver != "postgres" {
		return errors.New("vector.backend pgvector requires storage.driver postgres")
	}
	if c.Chat.MaxQuestionLength <= 0 {
		return errors.New("chat.maxQuestionLength must be positive")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 1048576)
	viper.SetDefault("server.allowOrigins", "*")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/support.db")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", 5432)
	viper.SetDefault("storage.postgres.user", "postgres")
	viper.SetDefault("storage.postgres.dbName", "support_chatbot")
	viper.SetDefault("storage.postgres.sslMode", "disable")

	viper.SetDefault("vector.backend", "none")
	viper.SetDefault("vector.endpoint", "localhost:19530")
	viper.SetDefault("vector.collectionName", "kb_questions")
	viper.SetDefault("vector.vectorDim", 1536)
	viper.SetDefault("vector.timeoutSec", 10)

	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.timeoutSec", 10)
	viper.SetDefault("embedding.maxAttempts", 3)
	viper.SetDefault("embedding.cacheTTL", 24*time.Hour)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("session.backend", "memory")
	viper.SetDefault("session.ttl", 24*time.Hour)

	viper.SetDefault("matching.mode", "scan")
	viper.SetDefault("matching.threshold", 0.7)
	viper.SetDefault("matching.lexicalFallback", true)
	viper.SetDefault("matching.lexicalRankFloor", 0.85)
	viper.SetDefault("matching.lexicalRankCeil", 0.95)
	viper.SetDefault("matching.scanConcurrency", 8)
	viper.SetDefault("matching.searchTimeoutSec", 10)

	viper.SetDefault("ticketing.tokenURL", "https://login.salesforce.com/services/oauth2/token")
	viper.SetDefault("ticketing.clientID", "your_client_id")
	viper.SetDefault("ticketing.apiVersion", "v58.0")
	viper.SetDefault("ticketing.timeoutSec", 15)
	viper.SetDefault("ticketing.tokenTTL", 2*time.Hour)
	viper.SetDefault("ticketing.mockLatency", 300*time.Millisecond)
	viper.SetDefault("ticketing.caseOrigin", "Chatbot")
	viper.SetDefault("ticketing.defaultPriority", "Medium")

	viper.SetDefault("chat.maxQuestionLength", 1000)

	viper.SetDefault("rateLimit.requestsPerMinute", 60)
	viper.SetDefault("rateLimit.burst", 10)
}
