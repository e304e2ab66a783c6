// The worker binary consumes valuation requests and sale events from
// Kafka, runs them through the valuation service, and publishes results.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appvaluation "github.com/propsage/compval/internal/application/valuation"
	"github.com/propsage/compval/internal/application/worker"
	"github.com/propsage/compval/internal/config"
	"github.com/propsage/compval/internal/infrastructure/database/postgres"
	"github.com/propsage/compval/internal/infrastructure/database/postgres/repositories"
	"github.com/propsage/compval/internal/infrastructure/database/redis"
	"github.com/propsage/compval/internal/infrastructure/messaging/kafka"
	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
	"github.com/propsage/compval/internal/infrastructure/monitoring/prometheus"
	"github.com/propsage/compval/pkg/types/common"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultHealthPort = 8081
	shutdownGrace     = 30 * time.Second
)

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for health and metrics endpoints")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	logger.Info("starting compval worker",
		logging.String("version", version),
		logging.Int("concurrency", cfg.Worker.Concurrency))

	if err := run(cfg, logger, *healthPort); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func run(cfg *config.Config, logger logging.Logger, healthPort int) error {
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
			Subsystem:            "worker",
			EnableProcessMetrics: cfg.Metrics.EnableProcessMetrics,
			EnableGoMetrics:      cfg.Metrics.EnableGoMetrics,
		}, logger)
		if err != nil {
			return err
		}
		appMetrics = prometheus.NewAppMetrics(collector)
		recorder = prometheus.NewValuationRecorder(appMetrics)
	}

	// Postgres: corpus reads and sale ingestion
	if err := postgres.RunMigrations(postgres.BuildDSN(cfg.Postgres), migrationsSource(cfg)); err != nil {
		return err
	}
	pg, err := postgres.NewConnection(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	salesRepo := repositories.NewClosedSaleRepository(pg.Pool(), repositories.FieldLogger{L: logger.Named("repo")})

	// Redis: shared result cache
	var resultCache appvaluation.ResultCache
	if cfg.Cache.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		var hits redis.HitRecorder
		if recorder != nil {
			hits = recorder
		}
		resultCache = redis.NewValuationResultCache(redis.NewCache(redisClient, logger), cfg.Cache.ResultTTL, hits)
	}

	// Kafka: topics, result publisher, request consumer
	if cfg.Kafka.AutoCreateTopics {
		tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
		if err != nil {
			return err
		}
		if err := tm.EnsureDefaultTopics(ctx); err != nil {
			tm.Close()
			return err
		}
		tm.Close()
	}

	producer, err := kafka.NewProducer(producerConfig(cfg), logger)
	if err != nil {
		return err
	}
	defer producer.Close()
	events := kafka.NewEventPublisher(producer, "compval-worker")

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

	var completed worker.CompletedPublisher
	if cfg.Worker.PublishResults {
		completed = events
	}
	valuationHandler := worker.NewValuationRequestHandler(service, completed, logger.Named("worker"))

	var observer worker.IngestObserver
	if appMetrics != nil {
		observer = func(err error) { prometheus.RecordSaleIngested(appMetrics, err) }
	}
	saleHandler := worker.NewSaleRecordedHandler(salesRepo, observer, logger.Named("worker"))

	consumer, err := kafka.NewConsumer(consumerConfig(cfg), logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	if err := consumer.Subscribe(kafka.TopicValuationRequested, instrumented(appMetrics, kafka.TopicValuationRequested, valuationHandler.Handle)); err != nil {
		return err
	}
	if err := consumer.Subscribe(kafka.TopicSaleRecorded, instrumented(appMetrics, kafka.TopicSaleRecorded, saleHandler.Handle)); err != nil {
		return err
	}

	if err := consumer.Start(ctx); err != nil {
		return err
	}

	healthSrv := startHealthServer(healthPort, collector, pg, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", logging.String("signal", sig.String()))

	cancel()
	if err := consumer.Close(); err != nil {
		logger.Warn("consumer close error", logging.Err(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	return healthSrv.Shutdown(shutdownCtx)
}

// instrumented wraps a handler with a per-topic processing histogram.
func instrumented(metrics *prometheus.AppMetrics, topic string, handle common.MessageHandler) common.MessageHandler {
	if metrics == nil {
		return handle
	}
	return func(ctx context.Context, msg *common.Message) error {
		start := time.Now()
		err := handle(ctx, msg)
		metrics.MessageProcessDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())
		return err
	}
}

func startHealthServer(port int, collector prometheus.MetricsCollector, pg *postgres.Connection, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := pg.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		logger.Info("health server listening", logging.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
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

func consumerConfig(cfg *config.Config) kafka.ConsumerConfig {
	deadLetter := cfg.Kafka.DeadLetterTopic
	if deadLetter == "" {
		deadLetter = kafka.TopicDeadLetterDefault
	}
	return kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topics:          []string{kafka.TopicValuationRequested, kafka.TopicSaleRecorded},
		AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
		SASLEnabled:     cfg.Kafka.SASLEnabled,
		SASLMechanism:   cfg.Kafka.SASLMechanism,
		SASLUsername:    cfg.Kafka.SASLUsername,
		SASLPassword:    cfg.Kafka.SASLPassword,
		TLSEnabled:      cfg.Kafka.TLSEnabled,
		TLSCertPath:     cfg.Kafka.TLSCertPath,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      cfg.Worker.MaxRetries,
			RetryBackoff:    cfg.Worker.RetryBackoff,
			DeadLetterTopic: deadLetter,
		},
	}
}
