// Package progress emits step-level progress events for external observers.
// Delivery is fire-and-forget; a lost event never affects job control flow.
package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Event is one progress update, emitted after every step transition.
type Event struct {
	JobID    uuid.UUID `json:"job_id"`
	StepName string    `json:"step_name"`
	Percent  int       `json:"percent"`
	Message  string    `json:"message"`
}

// Reporter delivers progress events.
type Reporter interface {
	Report(ctx context.Context, event Event)
}

// NopReporter discards all events. Used when no callback URL is configured.
type NopReporter struct{}

func (NopReporter) Report(context.Context, Event) {}

// HTTPReporter POSTs events to a callback URL. Failures are logged and
// swallowed: the callback is a monitoring collaborator, and failing to
// deliver must not fail the job.
type HTTPReporter struct {
	callbackURL string
	client      *http.Client
	log         *slog.Logger
}

// NewHTTPReporter creates a reporter for the given callback URL.
func NewHTTPReporter(callbackURL string, logger *slog.Logger) *HTTPReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPReporter{
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: 5 * time.Second},
		log:         logger,
	}
}

// Report delivers one event, best effort.
func (r *HTTPReporter) Report(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		r.log.Warn("progress.encode_failed", "job_id", event.JobID, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.callbackURL, bytes.NewReader(body))
	if err != nil {
		r.log.Warn("progress.build_request_failed", "job_id", event.JobID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Warn("progress.delivery_failed", "job_id", event.JobID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		r.log.Warn("progress.delivery_rejected", "job_id", event.JobID, "status", resp.StatusCode)
	}
}
