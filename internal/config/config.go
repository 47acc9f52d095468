// Package config handles environment variable loading for ports, database
// strings, service endpoints, etc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the docplain services.
type Config struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port for the controller
	HTTPPort int

	// Worker-specific configuration
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerMaxBackoff   time.Duration

	// Wall-clock ceiling for one job, measured from started_at and
	// checked between steps.
	JobTimeout time.Duration

	// Model registry and invocation
	ModelsFile       string
	ModelCallTimeout time.Duration

	// OCR routing
	OCRMode                string
	OCRConfidenceThreshold float64
	OCRFastURL             string
	OCRVisionURL           string
	OCRTimeout             time.Duration

	// PII redaction service
	PIIFilterURL string
	PIITimeout   time.Duration

	// Optional progress callback for UI/monitoring collaborators
	ProgressCallbackURL string

	// OTLP collector address; empty disables tracing
	OTELEndpoint string

	// Minimum log level: debug, info, warn or error
	LogLevel string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:               8080,
		WorkerConcurrency:      4,
		WorkerPollInterval:     1 * time.Second,
		WorkerMaxBackoff:       30 * time.Second,
		JobTimeout:             15 * time.Minute,
		ModelCallTimeout:       45 * time.Second,
		OCRMode:                "HYBRID",
		OCRConfidenceThreshold: 0.5,
		OCRTimeout:             60 * time.Second,
		PIITimeout:             30 * time.Second,
		LogLevel:               "info",
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.ModelsFile = os.Getenv("MODELS_FILE")
	cfg.OCRFastURL = os.Getenv("OCR_FAST_URL")
	cfg.OCRVisionURL = os.Getenv("OCR_VISION_URL")
	cfg.PIIFilterURL = os.Getenv("PII_FILTER_URL")
	cfg.ProgressCallbackURL = os.Getenv("PROGRESS_CALLBACK_URL")
	cfg.OTELEndpoint = os.Getenv("OTEL_ENDPOINT")
	if mode := os.Getenv("OCR_MODE"); mode != "" {
		cfg.OCRMode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if err := loadInt("PORT", &cfg.HTTPPort); err != nil {
		return nil, err
	}
	if err := loadInt("WORKER_CONCURRENCY", &cfg.WorkerConcurrency); err != nil {
		return nil, err
	}
	if err := loadDuration("WORKER_POLL_INTERVAL", &cfg.WorkerPollInterval); err != nil {
		return nil, err
	}
	if err := loadDuration("WORKER_MAX_BACKOFF", &cfg.WorkerMaxBackoff); err != nil {
		return nil, err
	}
	if err := loadDuration("JOB_TIMEOUT", &cfg.JobTimeout); err != nil {
		return nil, err
	}
	if err := loadDuration("MODEL_CALL_TIMEOUT", &cfg.ModelCallTimeout); err != nil {
		return nil, err
	}
	if err := loadDuration("OCR_TIMEOUT", &cfg.OCRTimeout); err != nil {
		return nil, err
	}
	if err := loadDuration("PII_TIMEOUT", &cfg.PIITimeout); err != nil {
		return nil, err
	}
	if err := loadFloat("OCR_CONFIDENCE_THRESHOLD", &cfg.OCRConfidenceThreshold); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadInt(name string, dst *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}

func loadFloat(name string, dst *float64) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}

func loadDuration(name string, dst *time.Duration) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}
