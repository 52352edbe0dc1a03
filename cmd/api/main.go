package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/gilliankerr/KoNote-sub000/internal/config"
	"github.com/gilliankerr/KoNote-sub000/internal/email"
	"github.com/gilliankerr/KoNote-sub000/internal/handler"
	alertHandler "github.com/gilliankerr/KoNote-sub000/internal/handler/alert"
	auditHandler "github.com/gilliankerr/KoNote-sub000/internal/handler/audit"
	authHandler "github.com/gilliankerr/KoNote-sub000/internal/handler/auth"
	clientHandler "github.com/gilliankerr/KoNote-sub000/internal/handler/client"
	programHandler "github.com/gilliankerr/KoNote-sub000/internal/handler/program"
	userHandler "github.com/gilliankerr/KoNote-sub000/internal/handler/user"
	"github.com/gilliankerr/KoNote-sub000/internal/middleware"
	"github.com/gilliankerr/KoNote-sub000/internal/repository/postgres"
	"github.com/gilliankerr/KoNote-sub000/internal/router"
	"github.com/gilliankerr/KoNote-sub000/internal/service/access"
	alertService "github.com/gilliankerr/KoNote-sub000/internal/service/alert"
	auditService "github.com/gilliankerr/KoNote-sub000/internal/service/audit"
	clientService "github.com/gilliankerr/KoNote-sub000/internal/service/client"
	programService "github.com/gilliankerr/KoNote-sub000/internal/service/program"
	userService "github.com/gilliankerr/KoNote-sub000/internal/service/user"
	"github.com/gilliankerr/KoNote-sub000/pkg/auth"
	"github.com/gilliankerr/KoNote-sub000/pkg/logger"
	"github.com/gilliankerr/KoNote-sub000/pkg/metrics"
	"github.com/gilliankerr/KoNote-sub000/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
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

	// The field encryptor is load-bearing: no keys, no process.
	encryptor, err := security.NewFieldEncryptor(cfg.Security.FieldEncryptionKeys)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize field encryption")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to primary database")
	}
	defer db.Close()

	auditDB, err := postgres.NewDB(cfg.AuditDatabase)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to audit database")
	}
	defer auditDB.Close()

	m := metrics.NewMetrics("konote", "api")

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	programRepo := postgres.NewProgramRepository(db)
	clientRepo := postgres.NewClientRepository(db)
	alertRepo := postgres.NewAlertRepository(db)
	auditRepo := postgres.NewAuditRepository(auditDB)

	// Services
	auditor := auditService.NewService(auditRepo, appLogger, m)
	resolver := access.NewResolver(programRepo, clientRepo)
	tokens := auth.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	// Without an SMTP host (local development) invite codes are only
	// logged as sent, never delivered.
	var mailer email.Service = email.Noop{}
	if cfg.Email.Host != "" {
		mailer = email.NewSMTPService(&email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			BaseURL:  cfg.Email.BaseURL,
		})
	}

	userSvc := userService.NewService(userRepo, tokens, hasher, mailer, auditor, encryptor, appLogger)
	programSvc := programService.NewService(programRepo, auditor)
	clientSvc := clientService.NewService(clientRepo, programRepo, resolver, auditor, encryptor, appLogger, m)
	alertSvc := alertService.NewService(alertRepo, resolver, auditor, encryptor, appLogger, m)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokens, userRepo)
	guard := middleware.NewAccessGuard(resolver, appLogger, m)

	// Handlers
	h := handler.NewHandler()
	r := router.NewRouter(
		authMiddleware,
		authHandler.NewHandler(userSvc),
		userHandler.NewHandler(userSvc),
		programHandler.NewHandler(programSvc),
		clientHandler.NewHandler(clientSvc, guard),
		alertHandler.NewHandler(alertSvc, guard),
		auditHandler.NewHandler(auditor),
		h,
		router.RouterConfig{
			RateLimit: rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst: cfg.RateLimit.Burst,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		appLogger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited")
}
