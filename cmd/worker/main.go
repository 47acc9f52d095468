// Package main is the entry point for the docplain worker.
// The worker claims queued jobs and drives each one through the translation
// pipeline: OCR extraction, PII redaction, model steps, formatting.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"docplain/internal/config"
	"docplain/internal/llm"
	"docplain/internal/logger"
	"docplain/internal/observability"
	"docplain/internal/ocr"
	"docplain/internal/pii"
	"docplain/internal/pipeline"
	"docplain/internal/progress"
	"docplain/internal/store"
	"docplain/internal/store/postgres"
	"docplain/internal/worker"
)

func main() {
	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New(cfg.LogLevel)
	slog.SetDefault(slogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "docplain-worker", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	// Database
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(db.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	// Model registry and adapter
	if cfg.ModelsFile == "" {
		log.Fatal("MODELS_FILE is required for the worker")
	}
	registry, err := llm.LoadRegistryFile(cfg.ModelsFile)
	if err != nil {
		log.Fatalf("Failed to load model registry: %v", err)
	}
	adapter := llm.NewAdapter(registry, cfg.ModelCallTimeout, slogger)

	// OCR engines
	fast := ocr.NewHTTPEngine("fast", cfg.OCRFastURL, cfg.OCRTimeout, slogger)
	vision := ocr.NewHTTPEngine("vision", cfg.OCRVisionURL, cfg.OCRTimeout, slogger)
	router := ocr.NewRouter(fast, vision, ocr.RouterConfig{
		Mode:                store.OCREngine(cfg.OCRMode),
		ConfidenceThreshold: cfg.OCRConfidenceThreshold,
	}, slogger)

	// PII redaction
	filter := pii.NewClient(cfg.PIIFilterURL, cfg.PIITimeout, slogger)

	// Optional progress callbacks
	var reporter progress.Reporter
	if cfg.ProgressCallbackURL != "" {
		reporter = progress.NewHTTPReporter(cfg.ProgressCallbackURL, slogger)
	}

	hostname, _ := os.Hostname()

	executor := pipeline.NewExecutor(adapter, router, filter, slogger)
	loader := pipeline.NewLoader(db)

	agent := worker.New(db, loader, executor, reporter, worker.AgentConfig{
		ID:           hostname,
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPollInterval,
		MaxBackoff:   cfg.WorkerMaxBackoff,
		JobTimeout:   cfg.JobTimeout,
	}, slogger)

	log.Printf("Worker started with concurrency %d", cfg.WorkerConcurrency)
	go agent.Run(ctx)

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	// Start a dedicated metrics server on port 6162
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		log.Println("Worker metrics listening on :6162")
		if err := http.ListenAndServe(":6162", mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()

	<-agent.Done()
}
