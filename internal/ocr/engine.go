// Package ocr routes document text extraction to one of several engines
// based on a confidence heuristic.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"docplain/internal/fault"
)

// Result is one extraction outcome. Confidence is in [0,1]; embedded-text
// extraction reports >= 0.95, plain OCR typically 0.50-0.90. Low confidence
// is flagged, never an error: downstream steps decide whether to reject it.
type Result struct {
	Text          string
	Confidence    float64
	ComplexLayout bool
}

// Engine extracts text from a stored document.
type Engine interface {
	Name() string
	Extract(ctx context.Context, documentRef string) (Result, error)
}

// HTTPEngine calls an external OCR service:
// POST {document_ref} -> {text, confidence, complex_layout}.
type HTTPEngine struct {
	name     string
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPEngine creates a client for one OCR service endpoint.
func NewHTTPEngine(name, endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPEngine {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPEngine{
		name:     name,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      logger,
	}
}

func (e *HTTPEngine) Name() string { return e.name }

type extractRequest struct {
	DocumentRef string `json:"document_ref"`
}

type extractResponse struct {
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	ComplexLayout bool    `json:"complex_layout"`
}

// Extract sends the document reference to the engine service. Transport
// failures and non-2xx statuses are external-service errors, subject to the
// job-level retry policy.
func (e *HTTPEngine) Extract(ctx context.Context, documentRef string) (Result, error) {
	op := "ocr." + e.name
	start := time.Now()

	body, err := json.Marshal(extractRequest{DocumentRef: documentRef})
	if err != nil {
		return Result{}, fault.Model(op, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fault.Model(op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fault.Model(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 50<<20))
	if err != nil {
		return Result{}, fault.Model(op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return Result{}, fault.Modelf(op, "status %d", resp.StatusCode)
	}

	var out extractResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fault.Model(op, fmt.Errorf("malformed response: %w", err))
	}

	e.log.Info("ocr.extract.ok",
		"engine", e.name,
		"document_ref", documentRef,
		"confidence", out.Confidence,
		"complex_layout", out.ComplexLayout,
		"text_len", len(out.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Text: out.Text, Confidence: out.Confidence, ComplexLayout: out.ComplexLayout}, nil
}
