// Package config defines all configuration structures for the compval
// valuation service.  No I/O or parsing logic lives here — only plain data
// types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/propsage/compval/internal/domain/valuation"
	"github.com/propsage/compval/internal/infrastructure/database/postgres"
	"github.com/propsage/compval/internal/infrastructure/database/redis"
	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// KafkaConfig holds broker connection and consumer-group parameters shared by
// the producer and the worker consumer.
type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	GroupID          string   `mapstructure:"group_id"`
	AutoOffsetReset  string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	ProducerRetries  int      `mapstructure:"producer_retries"`
	Acks             string   `mapstructure:"acks"` // "none" | "one" | "all"
	CompressionCodec string   `mapstructure:"compression_codec"`
	AutoCreateTopics bool     `mapstructure:"auto_create_topics"`
	DeadLetterTopic  string   `mapstructure:"dead_letter_topic"`
	SASLEnabled      bool     `mapstructure:"sasl_enabled"`
	SASLMechanism    string   `mapstructure:"sasl_mechanism"`
	SASLUsername     string   `mapstructure:"sasl_username"`
	SASLPassword     string   `mapstructure:"sasl_password"`
	TLSEnabled       bool     `mapstructure:"tls_enabled"`
	TLSCertPath      string   `mapstructure:"tls_cert_path"`
}

// CacheConfig holds valuation result cache parameters.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	ResultTTL time.Duration `mapstructure:"result_ttl"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Namespace            string `mapstructure:"namespace"`
	EnableProcessMetrics bool   `mapstructure:"enable_process_metrics"`
	EnableGoMetrics      bool   `mapstructure:"enable_go_metrics"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	PublishResults bool          `mapstructure:"publish_results"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration for both the API server and the worker.
// Infrastructure sections reuse the config structs their packages define so
// wiring in main() is a field access, not a translation.
type Config struct {
	Server    ServerConfig       `mapstructure:"server"`
	Postgres  postgres.Config    `mapstructure:"postgres"`
	Redis     redis.Config       `mapstructure:"redis"`
	Cache     CacheConfig        `mapstructure:"cache"`
	Kafka     KafkaConfig        `mapstructure:"kafka"`
	Worker    WorkerConfig       `mapstructure:"worker"`
	Metrics   MetricsConfig      `mapstructure:"metrics"`
	Log       logging.LogConfig  `mapstructure:"log"`
	Valuation valuation.Tunables `mapstructure:"valuation"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}

	if c.Postgres.Host == "" {
		return fmt.Errorf("config: postgres.host is required")
	}
	if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
		return fmt.Errorf("config: postgres.port %d is out of range [1, 65535]", c.Postgres.Port)
	}
	if c.Postgres.Username == "" {
		return fmt.Errorf("config: postgres.username is required")
	}
	if c.Postgres.Database == "" {
		return fmt.Errorf("config: postgres.database is required")
	}
	if c.Postgres.MaxConns < 1 {
		return fmt.Errorf("config: postgres.max_conns must be >= 1, got %d", c.Postgres.MaxConns)
	}

	if c.Cache.Enabled && c.Redis.Addr == "" && len(c.Redis.SentinelAddrs) == 0 && len(c.Redis.ClusterAddrs) == 0 {
		return fmt.Errorf("config: cache enabled but no redis address configured")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}
	switch c.Kafka.AutoOffsetReset {
	case "", "earliest", "latest":
	default:
		return fmt.Errorf("config: kafka.auto_offset_reset %q is invalid; expected earliest|latest", c.Kafka.AutoOffsetReset)
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if err := c.Valuation.Validate(); err != nil {
		return fmt.Errorf("config: valuation tunables rejected: %w", err)
	}

	return nil
}
