// The apiserver binary serves the compval REST API: synchronous
// valuations, corpus search and ingestion, and operational endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appvaluation "github.com/propsage/compval/internal/application/valuation"
	"github.com/propsage/compval/internal/config"
	"github.com/propsage/compval/internal/infrastructure/database/postgres"
	"github.com/propsage/compval/internal/infrastructure/database/postgres/repositories"
	"github.com/propsage/compval/internal/infrastructure/database/redis"
	"github.com/propsage/compval/internal/infrastructure/messaging/kafka"
	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
	"github.com/propsage/compval/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/propsage/compval/internal/interfaces/http"
	"github.com/propsage/compval/internal/interfaces/http/handlers"
	"github.com/propsage/compval/internal/interfaces/http/middleware"
)

const defaultConfigPath = "configs/config.yaml"

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP port override")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	logger.Info("starting compval api server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port))

	if err := run(cfg, logger); err != nil {
		logger.Error("api server exited with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("api server stopped")
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	var (
		appMetrics *prometheus.AppMetrics
		recorder   *prometheus.ValuationRecorder
		collector  prometheus.MetricsCollector
	)
	if cfg.Metrics.Enabled {
		var err error
		collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: cfg.Metrics.EnableProcessMetrics,
			EnableGoMetrics:      cfg.Metrics.EnableGoMetrics,
		}, logger)
		if err != nil {
			return err
		}
		appMetrics = prometheus.NewAppMetrics(collector)
		recorder = prometheus.NewValuationRecorder(appMetrics)
	}

	// Postgres: corpus storage
	if err := postgres.RunMigrations(postgres.BuildDSN(cfg.Postgres), migrationsSource(cfg)); err != nil {
		return err
	}
	pg, err := postgres.NewConnection(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	salesRepo := repositories.NewClosedSaleRepository(pg.Pool(), repositories.FieldLogger{L: logger.Named("repo")})

	// Redis: result cache
	var resultCache appvaluation.ResultCache
	var redisClient *redis.Client
	checkers := []handlers.HealthChecker{
		handlers.CheckerFunc{CheckerName: "postgres", Fn: pg.HealthCheck},
	}
	if cfg.Cache.Enabled {
		redisClient, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		cache := redis.NewCache(redisClient, logger)
		var hits redis.HitRecorder
		if recorder != nil {
			hits = recorder
		}
		resultCache = redis.NewValuationResultCache(cache, cfg.Cache.ResultTTL, hits)
		checkers = append(checkers, handlers.CheckerFunc{CheckerName: "redis", Fn: redisClient.Ping})
	}

	// Kafka: async valuations and sale announcements
	var (
		queue     handlers.ValuationQueue
		publisher handlers.SaleEventPublisher
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(producerConfig(cfg), logger)
		if err != nil {
			return err
		}
		defer producer.Close()
		events := kafka.NewEventPublisher(producer, "compval-apiserver")
		queue = events
		publisher = events
	}

	// Application service
	var metrics appvaluation.Metrics
	if recorder != nil {
		metrics = recorder
	}
	service, err := appvaluation.NewService(appvaluation.Dependencies{
		Corpus:   salesRepo,
		Stats:    salesRepo,
		Cache:    resultCache,
		Metrics:  metrics,
		Logger:   logger.Named("valuation"),
		Tunables: cfg.Valuation,
	})
	if err != nil {
		return err
	}

	// HTTP surface
	var report handlers.HealthReporter
	if appMetrics != nil {
		report = func(component string, healthy bool) {
			prometheus.RecordHealthCheck(appMetrics, component, healthy)
		}
	}
	routerCfg := httpserver.RouterConfig{
		ValuationHandler:  handlers.NewValuationHandler(service, queue, logger.Named("http")),
		ComparableHandler: handlers.NewComparableHandler(salesRepo, salesRepo, salesRepo, publisher, logger.Named("http")),
		HealthHandler:     handlers.NewHealthHandler(version, checkers, report, logger.Named("health")),
		Logger:            logger.Named("http"),
		Metrics:           appMetrics,
		RateLimiter:       middleware.NewTokenBucketLimiter(20, 40),
	}
	if collector != nil {
		routerCfg.MetricsHandler = collector.Handler()
	}
	server := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("received shutdown signal", logging.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer shutdownCancel()
	return server.Stop(shutdownCtx)
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

func migrationsSource(cfg *config.Config) string {
	if cfg.Postgres.MigrationsPath != "" {
		return cfg.Postgres.MigrationsPath
	}
	return "file://migrations"
}

func producerConfig(cfg *config.Config) kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:          cfg.Kafka.Brokers,
		MaxRetries:       cfg.Kafka.ProducerRetries,
		Acks:             cfg.Kafka.Acks,
		CompressionCodec: cfg.Kafka.CompressionCodec,
		SASLEnabled:      cfg.Kafka.SASLEnabled,
		SASLMechanism:    cfg.Kafka.SASLMechanism,
		SASLUsername:     cfg.Kafka.SASLUsername,
		SASLPassword:     cfg.Kafka.SASLPassword,
		TLSEnabled:       cfg.Kafka.TLSEnabled,
		TLSCertPath:      cfg.Kafka.TLSCertPath,
	}
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 30 * time.Second
}
