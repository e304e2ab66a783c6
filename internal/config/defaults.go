package config

import (
	"time"

	"github.com/propsage/compval/internal/domain/valuation"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "compval"
	DefaultDBUser     = "compval"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultCacheResultTTL = 30 * time.Minute

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "compval-workers"

	DefaultMetricsNamespace = "compval"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 8
)

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Fields already set by the caller are left unchanged so that explicit
// configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ──
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// ── Postgres ──
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = DefaultDBHost
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = DefaultDBPort
	}
	if cfg.Postgres.Database == "" {
		cfg.Postgres.Database = DefaultDBName
	}
	if cfg.Postgres.Username == "" {
		cfg.Postgres.Username = DefaultDBUser
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = DefaultDBMaxConns
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}

	// ── Redis / cache ──
	if cfg.Redis.Addr == "" && len(cfg.Redis.SentinelAddrs) == 0 && len(cfg.Redis.ClusterAddrs) == 0 {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Cache.ResultTTL == 0 {
		cfg.Cache.ResultTTL = DefaultCacheResultTTL
	}

	// ── Kafka ──
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}

	// ── Worker ──
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = time.Second
	}

	// ── Metrics ──
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Log ──
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Valuation ──
	// A zero Tunables struct is never what anyone wants; an untouched section
	// gets the engine defaults wholesale.
	if (cfg.Valuation == valuation.Tunables{}) {
		cfg.Valuation = valuation.DefaultTunables()
	} else {
		applyTunableDefaults(&cfg.Valuation)
	}
}

// applyTunableDefaults fills the unset fields of a partially-configured
// valuation section.  Only fields whose zero value would fail validation are
// defaulted; fields where zero is a legal operator choice (appreciation
// rate, land share, age adjustment) are left untouched.
func applyTunableDefaults(t *valuation.Tunables) {
	d := valuation.DefaultTunables()
	if t.SizeSimilarityWeight == 0 {
		t.SizeSimilarityWeight = d.SizeSimilarityWeight
	}
	if t.BedroomMismatchFactor == 0 {
		t.BedroomMismatchFactor = d.BedroomMismatchFactor
	}
	if t.AgeFactorMid == 0 {
		t.AgeFactorMid = d.AgeFactorMid
	}
	if t.AgeFactorFar == 0 {
		t.AgeFactorFar = d.AgeFactorFar
	}
	if t.NeighborhoodMismatchFactor == 0 {
		t.NeighborhoodMismatchFactor = d.NeighborhoodMismatchFactor
	}
	if t.RecencyWeight90 == 0 {
		t.RecencyWeight90 = d.RecencyWeight90
	}
	if t.RecencyWeight180 == 0 {
		t.RecencyWeight180 = d.RecencyWeight180
	}
	if t.RecencyWeight365 == 0 {
		t.RecencyWeight365 = d.RecencyWeight365
	}
	if t.RecencyWeightOld == 0 {
		t.RecencyWeightOld = d.RecencyWeightOld
	}
	if t.DistanceDecayMiles == 0 {
		t.DistanceDecayMiles = d.DistanceDecayMiles
	}
	if t.MinDistanceWeight == 0 {
		t.MinDistanceWeight = d.MinDistanceWeight
	}
	if t.DefaultPricePerSqFt == 0 {
		t.DefaultPricePerSqFt = d.DefaultPricePerSqFt
	}
	if t.StaleDOMThreshold == 0 {
		t.StaleDOMThreshold = d.StaleDOMThreshold
	}
}
