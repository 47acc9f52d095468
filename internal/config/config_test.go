package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/docplain")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.WorkerConcurrency != 4 {
		t.Errorf("WorkerConcurrency = %d, want 4", cfg.WorkerConcurrency)
	}
	if cfg.JobTimeout != 15*time.Minute {
		t.Errorf("JobTimeout = %v, want 15m", cfg.JobTimeout)
	}
	if cfg.OCRMode != "HYBRID" {
		t.Errorf("OCRMode = %q, want HYBRID", cfg.OCRMode)
	}
	if cfg.OCRConfidenceThreshold != 0.5 {
		t.Errorf("OCRConfidenceThreshold = %v, want 0.5", cfg.OCRConfidenceThreshold)
	}
	if cfg.ModelCallTimeout != 45*time.Second {
		t.Errorf("ModelCallTimeout = %v, want 45s", cfg.ModelCallTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/docplain")
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_CONCURRENCY", "12")
	t.Setenv("JOB_TIMEOUT", "30m")
	t.Setenv("OCR_MODE", "VISION")
	t.Setenv("OCR_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.WorkerConcurrency != 12 {
		t.Errorf("WorkerConcurrency = %d, want 12", cfg.WorkerConcurrency)
	}
	if cfg.JobTimeout != 30*time.Minute {
		t.Errorf("JobTimeout = %v, want 30m", cfg.JobTimeout)
	}
	if cfg.OCRMode != "VISION" {
		t.Errorf("OCRMode = %q, want VISION", cfg.OCRMode)
	}
	if cfg.OCRConfidenceThreshold != 0.75 {
		t.Errorf("OCRConfidenceThreshold = %v, want 0.75", cfg.OCRConfidenceThreshold)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/docplain")

	tests := []struct {
		name, value string
	}{
		{"PORT", "not-a-number"},
		{"WORKER_POLL_INTERVAL", "soon"},
		{"OCR_CONFIDENCE_THRESHOLD", "high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.name, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.name, tt.value)
			}
		})
	}
}
