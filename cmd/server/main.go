package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	correctionapp "github.com/sgpp/costrecovery/internal/application/correction"
	ledgerapp "github.com/sgpp/costrecovery/internal/application/ledger"
	recoveryapp "github.com/sgpp/costrecovery/internal/application/recovery"
	"github.com/sgpp/costrecovery/internal/domain/shared"
	"github.com/sgpp/costrecovery/internal/infrastructure/cache"
	"github.com/sgpp/costrecovery/internal/infrastructure/config"
	"github.com/sgpp/costrecovery/internal/infrastructure/logger"
	"github.com/sgpp/costrecovery/internal/infrastructure/persistence"
	"github.com/sgpp/costrecovery/internal/infrastructure/scheduler"
	"github.com/sgpp/costrecovery/internal/interfaces/http/handler"
	"github.com/sgpp/costrecovery/internal/interfaces/http/middleware"
	"github.com/sgpp/costrecovery/internal/interfaces/http/router"
	"go.uber.org/zap"
)

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

	log.Info("Starting cost recovery ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level)))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	entryRepo := persistence.NewGormLedgerEntryRepository(db.DB)
	rateRepo := persistence.NewGormIndexRateRepository(db.DB)
	reportRepo := persistence.NewGormProductionReportRepository(db.DB)

	// Idempotency store: Redis when configured, in-memory otherwise.
	// The batches are idempotent per period either way; Redis makes the
	// guarantee survive restarts.
	var idempotency shared.IdempotencyStore
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		idempotency = redisStore
		log.Info("Redis idempotency store connected",
			zap.String("host", cfg.Redis.Host),
			zap.Int("port", cfg.Redis.Port))
	} else {
		idempotency = cache.NewInMemoryIdempotencyStore()
		log.Warn("Using in-memory idempotency store; batch run keys will not survive restarts")
	}
	defer func() {
		if err := idempotency.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Overhead schedule comes from configuration and is validated at
	// startup by the ledger service
	overheadTable, err := cfg.OverheadTable()
	if err != nil {
		log.Fatal("Invalid overhead table configuration", zap.Error(err))
	}

	// Initialize application services
	ledgerService, err := ledgerapp.NewService(entryRepo, overheadTable, log)
	if err != nil {
		log.Fatal("Failed to initialize ledger service", zap.Error(err))
	}

	correctionService, err := correctionapp.NewService(entryRepo, rateRepo, idempotency, correctionapp.Config{
		IndexKind:       cfg.IndexKind(),
		RateMonthOffset: cfg.Correction.RateMonthOffset,
		IdempotencyTTL:  cfg.Correction.IdempotencyTTL,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize correction service", zap.Error(err))
	}

	recoveryService := recoveryapp.NewService(entryRepo, reportRepo, idempotency, recoveryapp.Config{
		IdempotencyTTL: cfg.Recovery.IdempotencyTTL,
	}, log)

	// Initialize the monthly batch scheduler (if enabled)
	if cfg.SchedulerEnabled() {
		executor := scheduler.NewBatchExecutor(correctionService, recoveryService, reportRepo, log)

		schedulerConfig := scheduler.DefaultSchedulerConfig()
		if cfg.Scheduler.JobTimeout > 0 {
			schedulerConfig.JobTimeout = cfg.Scheduler.JobTimeout
		}
		batchScheduler := scheduler.NewScheduler(schedulerConfig, executor, log)
		if err := batchScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start batch scheduler", zap.Error(err))
		}
		defer func() {
			if err := batchScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping batch scheduler", zap.Error(err))
			}
		}()

		triggerConfig := scheduler.DefaultMonthlyTriggerConfig()
		triggerConfig.CorrectionDay = cfg.Scheduler.CorrectionDay
		triggerConfig.CorrectionHour = cfg.Scheduler.CorrectionHour
		triggerConfig.RecoveryDay = cfg.Scheduler.RecoveryDay
		triggerConfig.RecoveryHour = cfg.Scheduler.RecoveryHour
		trigger := scheduler.NewMonthlyTrigger(triggerConfig, batchScheduler, log)
		if err := trigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start monthly trigger", zap.Error(err))
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping monthly trigger", zap.Error(err))
			}
		}()

		log.Info("Monthly batch scheduler started",
			zap.Int("correction_day", cfg.Scheduler.CorrectionDay),
			zap.Int("recovery_day", cfg.Scheduler.RecoveryDay),
			zap.Duration("job_timeout", schedulerConfig.JobTimeout),
		)
	}

	// Initialize HTTP handlers
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	batchHandler := handler.NewBatchHandler(correctionService, recoveryService)
	referenceHandler := handler.NewReferenceHandler(rateRepo, reportRepo)
	systemHandler := handler.NewSystemHandler(db)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS())
	engine.Use(middleware.BodyLimit(middleware.DefaultBodyLimit))

	// Register routes
	r := router.NewRouter(engine)
	r.Register(ledgerHandler).
		Register(batchHandler).
		Register(referenceHandler).
		Register(systemHandler)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
