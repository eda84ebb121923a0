package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brickdatalab/clear-scrub-sub001/internal/api/handlers"
	"github.com/brickdatalab/clear-scrub-sub001/internal/api/middleware"
	"github.com/brickdatalab/clear-scrub-sub001/internal/config"
	"github.com/brickdatalab/clear-scrub-sub001/internal/idempotency"
	"github.com/brickdatalab/clear-scrub-sub001/internal/intake"
	"github.com/brickdatalab/clear-scrub-sub001/internal/logger"
	"github.com/brickdatalab/clear-scrub-sub001/internal/refresh"
	"github.com/brickdatalab/clear-scrub-sub001/internal/resolve"
	sqlitestore "github.com/brickdatalab/clear-scrub-sub001/internal/store/sqlite"
)

func main() {
	// Initialize logger
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Open the store and migrate the schema
	db, err := sqlitestore.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	// Refresh infrastructure: queue, background consumer, trigger adapter
	refreshQueue := refresh.NewQueue(cfg.RefreshQueueSize, cfg.RefreshWorkers)
	refresher := refresh.NewRefresher(db, log)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", cfg.RefreshWorkers).Msg("Starting rollup refresh workers")
		if err := refreshQueue.Start(workerCtx, refresher.Handle); err != nil {
			log.Error().Err(err).Msg("Refresh consumer stopped with error")
		}
	}()

	// Intake engine: resolver, pipeline, idempotency guard
	resolver := resolve.New(db)
	pipeline := intake.NewPipeline(db, resolver, refresh.NewTrigger(refreshQueue, log))
	guard := idempotency.New(db, pipeline, log)

	intakeHandler := handlers.NewIntakeHandler(guard, cfg.IntakeTimeout, log)
	readHandler := handlers.NewReadHandler(db, log)

	// API routes, all behind the shared-secret check
	api := http.NewServeMux()
	api.HandleFunc("POST /api/intake/statements", intakeHandler.IngestStatement)
	api.HandleFunc("POST /api/intake/applications", intakeHandler.IngestApplication)
	api.HandleFunc("GET /api/companies", readHandler.ListCompanies)
	api.HandleFunc("GET /api/companies/{id}/statements", readHandler.ListCompanyStatements)
	api.HandleFunc("GET /api/companies/{id}/rollups", readHandler.ListCompanyRollups)
	api.HandleFunc("GET /api/statements/{id}/transactions", readHandler.ListStatementTransactions)

	// Health stays open so probes work without the secret
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handlers.Health)
	mux.Handle("/", middleware.SharedSecret(cfg.SharedSecret)(api))

	// Middleware chain: recovery outermost, then logging
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(mux))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting intake API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	// Drain in-flight refresh jobs before exiting
	if err := refreshQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Refresh queue shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
