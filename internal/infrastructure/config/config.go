package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8081"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	API     APIConfig
	Channel ChannelConfig
	Session SessionConfig
	Notify  NotifyConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

// APIConfig points at the marketplace backend.
type APIConfig struct {
	BaseURL string        `env:"API_BASE_URL, default=http://localhost:8080/api"`
	Timeout time.Duration `env:"API_TIMEOUT,  default=15s"`
}

// ChannelConfig drives the STOMP notification channel.
type ChannelConfig struct {
	URL           string        `env:"WS_URL,             default=ws://localhost:8080/api/ws/websocket"`
	RetryDelay    time.Duration `env:"WS_RETRY_DELAY,     default=5s"`
	MaxRetryDelay time.Duration `env:"WS_MAX_RETRY_DELAY, default=5s"`
	MaxRetries    int           `env:"WS_MAX_RETRIES,     default=0"`
	PrivateTopic  string        `env:"WS_PRIVATE_TOPIC,   default=/user/{userId}/notifications"`
	SharedTopic   string        `env:"WS_SHARED_TOPIC,    default=/topic/service-requests"`
	Heartbeat     time.Duration `env:"WS_HEARTBEAT,       default=10s"`
}

// SessionConfig selects where the bearer token is persisted.
type SessionConfig struct {
	ExpiryCheck   time.Duration `env:"SESSION_EXPIRY_CHECK, default=30s"`
	TokenStore    string        `env:"TOKEN_STORE,          default=memory"`
	EncryptionKey string        `env:"TOKEN_ENCRYPTION_KEY"`
}

// NotifyConfig toggles the optional notification extras.
type NotifyConfig struct {
	Dedup    bool          `env:"NOTIFY_DEDUP,     default=false"`
	DedupTTL time.Duration `env:"NOTIFY_DEDUP_TTL, default=1h"`
	Archive  bool          `env:"NOTIFY_ARCHIVE,   default=false"`
	Workers  int           `env:"NOTIFY_WORKERS,   default=2"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=marketplace_agent"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// NeedsRedis reports whether any enabled feature is backed by Redis.
func (c *Config) NeedsRedis() bool {
	return c.Session.TokenStore == "redis" || c.Notify.Dedup
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through the given lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Session.TokenStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: TOKEN_STORE must be memory or redis, got %q", c.Session.TokenStore)
	}
	if c.Channel.RetryDelay <= 0 {
		return fmt.Errorf("config: WS_RETRY_DELAY must be positive")
	}
	if c.Channel.MaxRetries < 0 {
		return fmt.Errorf("config: WS_MAX_RETRIES must not be negative")
	}
	return nil
}
