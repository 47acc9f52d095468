// Package pii calls the external redaction service that strips personally
// identifiable information from extracted document text.
package pii

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

// Entity is one detected PII span in the input text.
type Entity struct {
	Type string `json:"type"`
	Span string `json:"span"`
}

// Redaction is the service response: the text with PII removed plus the
// entities that were found.
type Redaction struct {
	RedactedText string   `json:"redacted_text"`
	Entities     []Entity `json:"entities"`
}

// Filter is the interface the step executor depends on.
type Filter interface {
	Redact(ctx context.Context, text string) (Redaction, error)
}

// Client is an HTTP client for the redaction service:
// POST {text} -> {redacted_text, entities}.
type Client struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// NewClient creates a redaction service client.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      logger,
	}
}

// Redact sends text to the redaction service. The service is an
// independently operated external dependency, so failures are retryable
// external-service errors.
func (c *Client) Redact(ctx context.Context, text string) (Redaction, error) {
	const op = "pii.redact"
	start := time.Now()

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Redaction{}, fault.Model(op, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Redaction{}, fault.Model(op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Redaction{}, fault.Model(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return Redaction{}, fault.Model(op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		return Redaction{}, fault.Modelf(op, "status %d", resp.StatusCode)
	}

	var out Redaction
	if err := json.Unmarshal(raw, &out); err != nil {
		return Redaction{}, fault.Model(op, fmt.Errorf("malformed response: %w", err))
	}

	c.log.Info("pii.redact.ok",
		"entities", len(out.Entities),
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
