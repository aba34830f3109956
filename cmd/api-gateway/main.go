package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/handler"
	"github.com/noah-isme/hr-admin-api/internal/middleware"
	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/repository"
	"github.com/noah-isme/hr-admin-api/internal/service"
	"github.com/noah-isme/hr-admin-api/pkg/cache"
	"github.com/noah-isme/hr-admin-api/pkg/config"
	"github.com/noah-isme/hr-admin-api/pkg/database"
	"github.com/noah-isme/hr-admin-api/pkg/jobs"
	"github.com/noah-isme/hr-admin-api/pkg/logger"
	"github.com/noah-isme/hr-admin-api/pkg/mailer"
	"github.com/noah-isme/hr-admin-api/pkg/storage"
)

// @title HR Admin API
// @version 1.0.0
// @description Employee administration backend with CSV bulk import
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db, cfg.Database.MigrationsPath)
		if err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("migrations applied", zap.Strings("versions", applied))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	switch {
	case errors.Is(err, cache.ErrDisabled):
		logr.Info("redis disabled, employee cache off")
	case err != nil:
		logr.Warn("redis unavailable, employee cache off", zap.Error(err))
		redisClient = nil
	default:
		defer redisClient.Close()
	}

	app, err := build(cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	app.mailQueue.Start(ctx)
	defer app.mailQueue.Stop()

	go runHousekeeping(ctx, cfg, app, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	router      *gin.Engine
	mailQueue   *jobs.Queue
	reports     *storage.LocalStorage
	rateLimiter *middleware.RateLimiter
}

func build(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	employeeRepo := repository.NewEmployeeRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	activationRepo := repository.NewTokenRepository(db, models.TokenPurposeActivation)
	resetRepo := repository.NewTokenRepository(db, models.TokenPurposePasswordReset)
	errorLogRepo := repository.NewErrorLogRepository(db)

	var cacheClient *redis.Client
	if cfg.Cache.Enabled {
		cacheClient = redisClient
	}
	cacheRepo := repository.NewCacheRepository(cacheClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo.Enabled())

	mail, err := mailer.New(cfg.Mail, logr)
	if err != nil {
		return nil, err
	}
	notifier := service.NewNotificationService(mail, nil, metrics, logr, service.NotificationConfig{
		Concurrency:   cfg.Mail.Concurrency,
		ActivationTTL: cfg.Tokens.ActivationTTL,
		ResetTTL:      cfg.Tokens.ResetTTL,
	})
	mailQueue := jobs.NewQueue("mail-retry", notifier.HandleRetry, jobs.QueueConfig{
		Workers:    cfg.Mail.RetryWorkers,
		MaxRetries: cfg.Mail.RetryMax,
		RetryDelay: cfg.Mail.RetryDelay,
		Logger:     logr,
		DeadLetter: notifier.DeadLetter,
	})
	notifier.AttachQueue(mailQueue)

	reports, err := storage.NewLocalStorage(cfg.Import.ReportDir)
	if err != nil {
		return nil, fmt.Errorf("init report storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Import.SignedURLSecret, cfg.Import.SignedURLTTL)

	importCfg := service.ImportConfig{
		MaxRows:       cfg.Import.MaxRows,
		ActivationTTL: cfg.Tokens.ActivationTTL,
		ReportPath:    cfg.APIPrefix + "/employees/import/reports/",
	}

	authSvc := service.NewAuthService(db, employeeRepo, roleRepo, service.AuthTokens{
		Activations: activationRepo,
		Resets:      resetRepo,
	}, notifier, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenExpiry:   cfg.Tokens.ResetTTL,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	employeeSvc := service.NewEmployeeService(db, employeeRepo, roleRepo, activationRepo, errorLogRepo, notifier, cacheSvc, validate, logr, importCfg)
	importSvc := service.NewEmployeeImportService(db, employeeRepo, roleRepo, activationRepo, employeeRepo, errorLogRepo, notifier,
		service.ImportReports{Storage: reports, Signer: signer}, metrics, logr, importCfg)
	exportSvc := service.NewExportService(employeeRepo, roleRepo, employeeRepo, logr, nil, nil)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)

	router := newRouter(cfg, routes{
		auth:      handler.NewAuthHandler(authSvc),
		employees: handler.NewEmployeeHandler(employeeSvc),
		imports:   handler.NewEmployeeImportHandler(importSvc, cfg.Import.MaxFileSizeBytes),
		exports:   handler.NewExportHandler(exportSvc),
		metrics: handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
			"database": func(ctx context.Context) error { return database.Ready(ctx, db) },
			"cache": func(ctx context.Context) error {
				if redisClient == nil {
					return nil
				}
				return cache.Ready(ctx, redisClient)
			},
		}),
		tokens:      authSvc,
		audit:       employeeRepo,
		observer:    metrics,
		rateLimiter: rateLimiter,
	}, logr)

	return &application{router: router, mailQueue: mailQueue, reports: reports, rateLimiter: rateLimiter}, nil
}

// runHousekeeping purges expired import reports and idle rate limiter entries.
func runHousekeeping(ctx context.Context, cfg *config.Config, app *application, logr *zap.Logger) {
	interval := cfg.Import.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := app.reports.CleanupOlderThan(cfg.Import.SignedURLTTL)
			if err != nil {
				logr.Warn("import report cleanup failed", zap.Error(err))
			} else if len(removed) > 0 {
				logr.Info("import reports purged", zap.Int("count", len(removed)))
			}
			if n := app.rateLimiter.Sweep(); n > 0 {
				logr.Debug("rate limiter visitors evicted", zap.Int("count", n))
			}
		}
	}
}
