// serverd is the HomeLend platform process: REST and WebSocket surfaces,
// the extraction worker, and the metrics endpoint, in one binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/homelend/platform/internal/analytics"
	"github.com/homelend/platform/internal/applications"
	"github.com/homelend/platform/internal/audit"
	"github.com/homelend/platform/internal/chat"
	"github.com/homelend/platform/internal/compliance"
	"github.com/homelend/platform/internal/conditions"
	"github.com/homelend/platform/internal/config"
	"github.com/homelend/platform/internal/decisions"
	"github.com/homelend/platform/internal/documents"
	"github.com/homelend/platform/internal/events"
	"github.com/homelend/platform/internal/kb"
	"github.com/homelend/platform/internal/rest"
	"github.com/homelend/platform/internal/seed"
	"github.com/homelend/platform/pkg/auth"
	"github.com/homelend/platform/pkg/blob"
	"github.com/homelend/platform/pkg/llm"
	"github.com/homelend/platform/pkg/observability"
	"github.com/homelend/platform/pkg/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger := observability.InitLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	logger.Info("starting serverd", "http_port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := postgres.RunMigrations(cfg.LendingDB.DSN(), "file://"+cfg.MigrationsDir); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	logger.Info("migrations applied")

	lendingPool, err := postgres.NewPool(ctx, cfg.LendingDB)
	if err != nil {
		return fmt.Errorf("lending pool: %w", err)
	}
	defer lendingPool.Close()

	compliancePool, err := postgres.NewPool(ctx, cfg.ComplianceDB)
	if err != nil {
		return fmt.Errorf("compliance pool: %w", err)
	}
	defer compliancePool.Close()

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	blobs, err := blob.NewStore(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	llmClient := llm.Cached("chat", cfg.LLM)

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer cache.Close()
	}

	publisher := events.NewPublisher(cfg.KafkaBrokers, logger)
	defer publisher.Close()

	// Service wiring. The completeness hooks are attached after construction
	// to keep applications/compliance free of a documents import.
	auditSvc := audit.NewService(lendingPool, logger)
	appsSvc := applications.NewService(lendingPool, auditSvc, publisher, logger)
	conditionsSvc := conditions.NewService(lendingPool, auditSvc, logger)
	hmdaSvc := compliance.NewHmdaService(compliancePool, lendingPool, auditSvc, logger)
	runner := compliance.NewRunner(lendingPool, auditSvc, logger)
	docsSvc := documents.NewService(lendingPool, blobs, llmClient, hmdaSvc, auditSvc, publisher, logger)
	decisionsSvc := decisions.NewService(lendingPool, auditSvc, publisher, logger)
	analyticsSvc := analytics.NewService(lendingPool, cache, logger)
	kbSvc := kb.NewService(lendingPool, llmClient, logger)
	seeder := seed.NewSeeder(lendingPool, auditSvc, kbSvc, logger)

	appsSvc.AttachCompleteness(documents.StatusChecker{Docs: docsSvc})
	runner.AttachDocEvaluator(docsSvc)

	if cfg.SeedOnStart {
		if result, err := seeder.Run(ctx); err != nil {
			logger.Error("seeding failed", "error", err)
		} else {
			logger.Info("seeding done", "status", result.Status)
		}
	}

	registry := chat.NewRegistry(appsSvc, docsSvc, decisionsSvc, analyticsSvc, kbSvc, auditSvc)
	agent := chat.NewAgent(llmClient, registry, logger)
	chatHandler := chat.NewHandler(verifier, agent, llmClient, logger)

	restServer := rest.NewServer(appsSvc, docsSvc, conditionsSvc, decisionsSvc, runner, hmdaSvc, auditSvc, analyticsSvc, seeder, logger)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := postgres.HealthCheck(r.Context(), lendingPool); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	restServer.Routes(router)
	// Chat authenticates on the socket itself via the token query parameter.
	chatHandler.Routes(router)

	skipPaths := []string{"/health"}
	for _, role := range []string{"admin", "ceo", "underwriter", "loan_officer", "borrower", "prospect"} {
		skipPaths = append(skipPaths, "/api/"+role+"/chat")
	}
	handler := auth.Middleware(verifier, skipPaths)(router)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: "serverd"})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown", "error", err)
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("meter provider shutdown", "error", err)
	}
	logger.Info("serverd stopped")
	return nil
}
