// Package observability provides OpenTelemetry instrumentation for tracing
// and Prometheus metrics for the docplain engine.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Domain metrics. Registered on the default registry so they share the
// /metrics endpoint returned by InitMetrics.
var (
	// JobsFinished counts jobs per terminal state.
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docplain_jobs_finished_total",
		Help: "Jobs that reached a terminal state, by state.",
	}, []string{"state"})

	// StepDuration observes wall-clock duration of step attempts.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docplain_step_duration_seconds",
		Help:    "Duration of pipeline step attempts.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"kind", "status"})

	// ModelFallbacks counts fallback-chain escalations per primary model.
	ModelFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docplain_model_fallbacks_total",
		Help: "Model invocations that escalated past the primary model.",
	}, []string{"model"})

	// OCREscalations counts hybrid-mode escalations to the vision engine.
	OCREscalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docplain_ocr_vision_escalations_total",
		Help: "Hybrid OCR extractions that re-ran with the vision engine.",
	})
)

// InitMetrics initializes the OpenTelemetry metrics provider with a
// Prometheus exporter. It returns the HTTP handler for the /metrics endpoint
// and a shutdown function to be called on application exit.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}
