package ocr

import (
	"context"
	"log/slog"

	"docplain/internal/fault"
	"docplain/internal/observability"
	"docplain/internal/store"
)

// DefaultConfidenceThreshold is the hybrid-mode cutoff below which the fast
// result is re-checked with the vision engine.
const DefaultConfidenceThreshold = 0.50

// RouterConfig selects the extraction strategy.
type RouterConfig struct {
	Mode                store.OCREngine
	ConfidenceThreshold float64
}

// Router dispatches extraction to the fast engine, the vision engine, or a
// hybrid of the two.
type Router struct {
	fast   Engine
	vision Engine
	cfg    RouterConfig
	log    *slog.Logger
}

// NewRouter creates an OCR router over the two engines.
func NewRouter(fast, vision Engine, cfg RouterConfig, logger *slog.Logger) *Router {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.Mode == "" {
		cfg.Mode = store.OCREngineHybrid
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{fast: fast, vision: vision, cfg: cfg, log: logger}
}

// Overrides are per-step routing overrides taken from an extraction step's
// configuration. Zero fields fall back to the router's configured defaults.
type Overrides struct {
	Engine              store.OCREngine
	ConfidenceThreshold float64
}

// Extract routes the document to the effective engine: the step override when
// set, otherwise the router's configured mode. In HYBRID mode the fast engine
// runs first; if its confidence is below the threshold or the page reports
// complex layout, the vision engine re-runs the extraction and the
// higher-confidence result wins.
func (r *Router) Extract(ctx context.Context, documentRef string, o Overrides) (Result, error) {
	mode := r.cfg.Mode
	if o.Engine != "" {
		mode = o.Engine
	}
	threshold := r.cfg.ConfidenceThreshold
	if o.ConfidenceThreshold > 0 {
		threshold = o.ConfidenceThreshold
	}

	switch mode {
	case store.OCREngineFast:
		return r.fast.Extract(ctx, documentRef)
	case store.OCREngineVision:
		return r.vision.Extract(ctx, documentRef)
	case store.OCREngineHybrid:
		return r.extractHybrid(ctx, documentRef, threshold)
	default:
		return Result{}, fault.Configf("ocr.router", "unknown OCR mode %q", mode)
	}
}

func (r *Router) extractHybrid(ctx context.Context, documentRef string, threshold float64) (Result, error) {
	fastRes, fastErr := r.fast.Extract(ctx, documentRef)
	if fastErr == nil && fastRes.Confidence >= threshold && !fastRes.ComplexLayout {
		return fastRes, nil
	}

	if fastErr != nil {
		r.log.Warn("ocr.hybrid.fast_failed", "document_ref", documentRef, "error", fastErr)
	} else {
		r.log.Info("ocr.hybrid.escalating",
			"document_ref", documentRef,
			"fast_confidence", fastRes.Confidence,
			"complex_layout", fastRes.ComplexLayout,
			"threshold", threshold,
		)
	}
	observability.OCREscalations.Inc()

	visionRes, visionErr := r.vision.Extract(ctx, documentRef)
	if visionErr != nil {
		if fastErr == nil {
			// Keep the low-confidence fast result rather than failing.
			r.log.Warn("ocr.hybrid.vision_failed", "document_ref", documentRef, "error", visionErr)
			return fastRes, nil
		}
		return Result{}, visionErr
	}

	if fastErr == nil && fastRes.Confidence > visionRes.Confidence {
		return fastRes, nil
	}
	return visionRes, nil
}
