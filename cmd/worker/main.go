package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gilliankerr/KoNote-sub000/internal/config"
	"github.com/gilliankerr/KoNote-sub000/internal/repository/postgres"
	"github.com/gilliankerr/KoNote-sub000/internal/worker"
	"github.com/gilliankerr/KoNote-sub000/pkg/logger"
	"github.com/gilliankerr/KoNote-sub000/pkg/messaging/redis"
	"github.com/gilliankerr/KoNote-sub000/pkg/metrics"
)

// workerOverrides lets operators tune the audit pipeline per deployment
// without editing the shared config file.
type workerOverrides struct {
	OutboxBatchSize     int           `envconfig:"AUDIT_OUTBOX_BATCH_SIZE"`
	OutboxInterval      time.Duration `envconfig:"AUDIT_OUTBOX_INTERVAL"`
	RetentionDays       int           `envconfig:"AUDIT_RETENTION_DAYS"`
	RetentionCheckEvery time.Duration `envconfig:"AUDIT_RETENTION_CHECK_EVERY" default:"24h"`
	HealthAddr          string        `envconfig:"WORKER_HEALTH_ADDR" default:":8081"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var overrides workerOverrides
	if err := envconfig.Process("konote", &overrides); err != nil {
		log.Fatal().Err(err).Msg("failed to read environment overrides")
	}

	batchSize := cfg.Audit.OutboxBatchSize
	if overrides.OutboxBatchSize > 0 {
		batchSize = overrides.OutboxBatchSize
	}
	interval := time.Duration(cfg.Audit.OutboxSeconds) * time.Second
	if overrides.OutboxInterval > 0 {
		interval = overrides.OutboxInterval
	}
	retentionDays := cfg.Audit.RetentionDays
	if overrides.RetentionDays > 0 {
		retentionDays = overrides.RetentionDays
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	appLogger := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})

	auditDB, err := postgres.NewDB(cfg.AuditDatabase)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to audit database")
	}
	defer auditDB.Close()

	brokerLog := zerolog.New(os.Stderr).With().Timestamp().Str("component", "broker").Logger()
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 2,
	}, &brokerLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.NewMetrics("konote", "worker")
	auditRepo := postgres.NewAuditRepository(auditDB)

	outbox := worker.NewAuditOutboxWorker(auditRepo, broker, appLogger, m, batchSize, interval)
	retention := worker.NewAuditRetentionWorker(auditRepo, appLogger, retentionDays, overrides.RetentionCheckEvery)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go outbox.Start(ctx)
	go retention.Start(ctx)

	// A bare health endpoint so orchestrators can tell the worker is up.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	healthSrv := &http.Server{Addr: overrides.HealthAddr, Handler: mux}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server failed")
		}
	}()

	appLogger.Info("audit worker started",
		"batch_size", batchSize,
		"interval", interval,
		"retention_days", retentionDays,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "health server shutdown failed")
	}

	appLogger.Info("worker exited")
}
