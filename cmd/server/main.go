package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	syncapp "github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/application/sync"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/cache"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/config"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/crypto"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/logger"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/persistence"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/pms"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/infrastructure/scheduler"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/interfaces/http/handler"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/interfaces/http/router"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting channel sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Credential cipher. Development runs without a configured key fall back
	// to an ephemeral one, which makes stored credentials unreadable after a
	// restart; production requires a key at config validation time.
	credentialKey := cfg.Crypto.CredentialKey
	if credentialKey == "" {
		credentialKey, err = crypto.GenerateKey()
		if err != nil {
			log.Fatal("Failed to generate credential key", zap.Error(err))
		}
		log.Warn("No credential key configured, using an ephemeral key")
	}
	cipher, err := crypto.NewCipher(credentialKey)
	if err != nil {
		log.Fatal("Failed to initialize credential cipher", zap.Error(err))
	}

	// Database connection with a zap-backed gorm logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Webhook dedup store, Redis-backed with in-memory fallback for dev
	dedupFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	dedupStore, err := dedupFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to initialize webhook dedup store", zap.Error(err))
	}
	defer func() {
		if err := dedupStore.Close(); err != nil {
			log.Error("Error closing dedup store", zap.Error(err))
		}
	}()

	// Repositories
	connectionRepo := persistence.NewGormConnectionRepository(db.DB, cipher)
	propertyRepo := persistence.NewGormPropertyRepository(db.DB)
	roomTypeRepo := persistence.NewGormRoomTypeRepository(db.DB)
	calendarRepo := persistence.NewGormCalendarRepository(db.DB)
	reservationRepo := persistence.NewGormReservationRepository(db.DB)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)
	webhookEventRepo := persistence.NewGormWebhookEventRepository(db.DB)

	// Adapter registry
	registry := pms.NewRegistry(log)

	// Sync orchestration
	orchestrator := syncapp.NewOrchestrator(
		connectionRepo, propertyRepo, roomTypeRepo, calendarRepo,
		reservationRepo, syncLogRepo, registry,
		syncapp.Config{
			LookaheadDays:           cfg.Sync.LookaheadDays,
			IncrementalCalendarDays: cfg.Sync.IncrementalCalendarDays,
			ErrorThreshold:          cfg.Sync.ErrorThreshold,
			RetryAttempts:           cfg.Sync.RetryAttempts,
			RetryBackoff:            cfg.Sync.RetryBackoff,
		},
		log,
	)

	webhookService := syncapp.NewWebhookService(
		connectionRepo, propertyRepo, roomTypeRepo, calendarRepo,
		reservationRepo, webhookEventRepo, registry, dedupStore,
		syncapp.WebhookConfig{
			MaxRetries:         cfg.Webhook.MaxRetries,
			RetryBackoff:       cfg.Webhook.RetryBackoff,
			DedupTTL:           cfg.Webhook.DedupTTL,
			CalendarWindowDays: cfg.Sync.IncrementalCalendarDays,
		},
		log,
	)

	// Background scheduler
	schedulerCfg := scheduler.DefaultSyncSchedulerConfig()
	schedulerCfg.Tick = cfg.Sync.SchedulerTick
	schedulerCfg.MaxConcurrent = cfg.Sync.MaxConcurrent
	syncScheduler, err := scheduler.NewSyncScheduler(schedulerCfg, connectionRepo, orchestrator, webhookService, log)
	if err != nil {
		log.Fatal("Failed to initialize sync scheduler", zap.Error(err))
	}
	if err := syncScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.Setup(
		router.Config{
			MaxBodyBytes:       cfg.HTTP.MaxBodySize,
			WebhookRateLimit:   cfg.Webhook.RateLimitPerMinute,
			WebhookRateWindow:  time.Minute,
			CORSAllowedOrigins: cfg.HTTP.CORSOrigins,
			RequestTimeout:     cfg.HTTP.RequestTimeout,
		},
		log,
		router.Handlers{
			System:     handler.NewSystemHandler(db, version),
			Connection: handler.NewConnectionHandler(connectionRepo, syncLogRepo, reservationRepo, registry, orchestrator, syncScheduler),
			Webhook:    handler.NewWebhookHandler(webhookService),
		},
	)
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Scheduler shutdown error", zap.Error(err))
	}
	log.Info("Shutdown complete")
}
