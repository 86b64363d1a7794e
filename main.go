package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/smartflowhq/growth-engine/pkg/auth"
	"github.com/smartflowhq/growth-engine/pkg/config"
	"github.com/smartflowhq/growth-engine/pkg/database"
	"github.com/smartflowhq/growth-engine/pkg/handlers"
	"github.com/smartflowhq/growth-engine/pkg/logging"
	"github.com/smartflowhq/growth-engine/pkg/middleware"
	"github.com/smartflowhq/growth-engine/pkg/notify"
	"github.com/smartflowhq/growth-engine/pkg/repositories"
	"github.com/smartflowhq/growth-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Host != ""))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Migrations run over database/sql; the application itself uses pgx.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Repositories
	experimentRepo := repositories.NewExperimentRepository(db)
	tenantRepo := repositories.NewTenantRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)
	bookingRepo := repositories.NewBookingRepository(db)
	reminderLogRepo := repositories.NewReminderLogRepository(db)

	// Notification channels
	emailSender := notify.NewSMTPSender(cfg.SMTP, logger)
	smsSender := notify.NewTwilioSender(cfg.Twilio, logger)

	// Services
	experimentService := services.NewExperimentService(experimentRepo, logger)
	reminderService := services.NewReminderService(
		tenantRepo, settingsRepo, bookingRepo, reminderLogRepo,
		emailSender, smsSender, redisClient,
		cfg.Scheduler.Interval(), logger)

	if cfg.Scheduler.Enabled {
		reminderService.RunScheduler(ctx)
	} else {
		logger.Warn("Reminder scheduler disabled by configuration")
	}

	// HTTP API
	authMW := auth.NewMiddleware(cfg.Auth, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewExperimentHandler(experimentService, authMW, logger).RegisterRoutes(mux)
	handlers.NewSettingsHandler(settingsRepo, authMW, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting growth-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
