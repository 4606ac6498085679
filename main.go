package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/auth"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/config"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/database"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/handlers"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/llm"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/logging"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/middleware"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/registry"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/render"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/repositories"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/services"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("storage_root", cfg.Storage.Root))

	db, err := database.NewConnection(ctx, database.ConfigFrom(&cfg.Database))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(db.StdDB(), cfg.MigrationsPath, logger); err != nil {
		return err
	}

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	var pollLock services.PollLock
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		pollLock = services.NewPollLock(redisClient, cfg.Cron.PollLockTTL, logger)
	} else {
		logger.Info("Redis not configured, poll cycles run without a lease")
	}

	textGen, err := llm.NewTextGenerator(&llm.Config{
		Provider:       cfg.LLM.Provider,
		Endpoint:       cfg.LLM.Endpoint,
		APIKey:         cfg.LLM.APIKey,
		RequestTimeout: cfg.LLM.RequestTimeout,
	}, logger)
	if err != nil {
		return err
	}
	textGen = llm.NewCircuitBreaker(textGen, llm.DefaultCircuitBreakerConfig())

	blobs, err := storage.NewLocalStore(cfg.Storage.Root, logger)
	if err != nil {
		return err
	}

	if cfg.Render.MemoFontPath != "" {
		ttf, err := os.ReadFile(cfg.Render.MemoFontPath)
		if err != nil {
			return fmt.Errorf("failed to read memo font: %w", err)
		}
		if err := render.SetMemoFont(ttf); err != nil {
			return err
		}
		logger.Info("Memo font loaded", zap.String("path", cfg.Render.MemoFontPath))
	}

	registryCfg := registry.Config{
		BaseURL:     cfg.Registry.BaseURL,
		Timeout:     cfg.Registry.Timeout,
		PDFTimeout:  cfg.Registry.PDFTimeout,
		MaxPDFBytes: cfg.Registry.MaxPDFBytes,
		UserAgent:   cfg.Registry.UserAgent,
	}
	fedRegister := registry.NewFederalRegisterClient(registryCfg, logger)
	feeds := registry.NewFeedClient(registryCfg, logger)

	// Repositories
	agencyRepo := repositories.NewAgencyRepository()
	tenantRepo := repositories.NewTenantRepository()
	clientRepo := repositories.NewClientRepository()
	documentRepo := repositories.NewDocumentRepository()
	baseOutputRepo := repositories.NewBaseOutputRepository()
	clientOutputRepo := repositories.NewClientOutputRepository()
	jobRepo := repositories.NewConversionJobRepository()
	settingsRepo := repositories.NewMonitorSettingsRepository()

	// Services
	generator := services.NewContentGenerator(textGen, services.GeneratorConfigFrom(&cfg.LLM), logger)
	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: cfg.LLM.MaxConcurrent}, logger)

	router := services.NewRouterService(agencyRepo, tenantRepo, baseOutputRepo, clientOutputRepo, logger)
	poller := services.NewPollerService(settingsRepo, agencyRepo, documentRepo, fedRegister, feeds, router, pollLock, logger)
	baseGen := services.NewBaseGenerationService(documentRepo, tenantRepo, baseOutputRepo, settingsRepo, fedRegister, generator, blobs, logger)
	clientGen := services.NewClientCustomizationService(documentRepo, tenantRepo, clientRepo, baseOutputRepo, clientOutputRepo,
		generator, blobs, pool, services.NewTenantContextFunc(db), logger)
	jobs := services.NewConversionJobService(jobRepo, tenantRepo, generator, blobs, logger)
	artifacts := services.NewArtifactService(documentRepo, baseOutputRepo, clientOutputRepo, jobRepo, blobs, logger)
	monitor := services.NewMonitorService(settingsRepo, documentRepo, baseOutputRepo, poller, logger)

	// Auth
	authService := auth.NewAuthService(auth.ServiceConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		Secret:             cfg.Auth.JWTSecret,
		Issuer:             cfg.Auth.Issuer,
	}, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	tenantMiddleware := handlers.TenantMiddleware(database.WithTenantContext(db, logger))
	globalMiddleware := handlers.TenantMiddleware(database.WithGlobalContext(db, logger))

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewCronHandler(poller, baseGen, jobs, cfg.Cron.ProcessBatchSize, logger).
		RegisterRoutes(mux, authMiddleware, cfg.Cron.Secret, globalMiddleware)
	handlers.NewDocumentsHandler(baseGen, clientGen, artifacts, logger).
		RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewJobsHandler(jobs, artifacts, handlers.DefaultMaxUploadBytes, logger).
		RegisterRoutes(mux, authMiddleware, globalMiddleware)
	handlers.NewMonitorHandler(monitor, logger).
		RegisterRoutes(mux, authMiddleware, globalMiddleware)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(middleware.Recoverer(logger)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-regwatch",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
