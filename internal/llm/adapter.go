package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"docplain/internal/fault"
	"docplain/internal/observability"
	"docplain/internal/store"
)

// Params are the generation parameters passed through to the model endpoint.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// Completion is one successful model response.
type Completion struct {
	Text   string
	Tokens int
	Model  string // model that actually produced the text, after fallbacks
}

// Invoker is the interface the step executor depends on.
type Invoker interface {
	Invoke(ctx context.Context, modelRef, prompt string, params Params) (Completion, error)
}

// Adapter invokes a named model over HTTP, falling back through the model's
// configured chain on external failures. Each individual call is bounded by
// CallTimeout; a call that exceeds it is treated like any other network
// failure.
type Adapter struct {
	registry    *Registry
	httpClient  *http.Client
	callTimeout time.Duration
	log         *slog.Logger
}

// NewAdapter creates a model adapter. callTimeout bounds each individual
// HTTP call, not the whole chain.
func NewAdapter(registry *Registry, callTimeout time.Duration, logger *slog.Logger) *Adapter {
	if callTimeout <= 0 {
		callTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		registry:    registry,
		httpClient:  &http.Client{Timeout: callTimeout},
		callTimeout: callTimeout,
		log:         logger,
	}
}

type invokeRequest struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type invokeResponse struct {
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
	Usage     struct {
		Tokens int `json:"tokens"`
	} `json:"usage"`
}

// Invoke tries the primary model, then each fallback in order, each attempt
// with the same prompt and parameters. External failures advance the chain;
// a truncated completion is a validation error and is surfaced immediately,
// never silently accepted. An exhausted chain returns the last external
// error.
func (a *Adapter) Invoke(ctx context.Context, modelRef, prompt string, params Params) (Completion, error) {
	chain, err := a.registry.Chain(modelRef)
	if err != nil {
		return Completion{}, err
	}

	var lastErr error
	for i, model := range chain {
		if i > 0 {
			observability.ModelFallbacks.WithLabelValues(modelRef).Inc()
			a.log.Warn("llm.invoke.fallback",
				"primary", modelRef,
				"model", model.Name,
				"chain_position", i,
				"cause", lastErr,
			)
		}

		completion, err := a.call(ctx, model, prompt, params)
		if err == nil {
			return completion, nil
		}
		if fault.KindOf(err) != fault.KindModel {
			// Truncation and the like: falling back will not help.
			return Completion{}, err
		}
		lastErr = err

		// Respect caller cancellation between chain attempts.
		if ctx.Err() != nil {
			break
		}
	}

	return Completion{}, fault.Model("llm.invoke",
		fmt.Errorf("fallback chain for %q exhausted after %d models: %w", modelRef, len(chain), lastErr))
}

func (a *Adapter) call(ctx context.Context, model store.ModelDescriptor, prompt string, params Params) (Completion, error) {
	op := "llm." + model.Name
	start := time.Now()

	body, err := json.Marshal(invokeRequest{
		Prompt:      prompt,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return Completion{}, fault.Model(op, fmt.Errorf("encode request: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, model.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, fault.Model(op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.log.Error("llm.call.send_error", "model", model.Name, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Completion{}, fault.Model(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return Completion{}, fault.Model(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode/100 != 2 {
		a.log.Error("llm.call.status_error",
			"model", model.Name,
			"status", resp.StatusCode,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Completion{}, fault.Modelf(op, "status %d: %s", resp.StatusCode, excerptBody(raw))
	}

	var out invokeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Completion{}, fault.Model(op, fmt.Errorf("malformed response body: %w", err))
	}
	if strings.TrimSpace(out.Text) == "" {
		return Completion{}, fault.Modelf(op, "empty completion text")
	}
	if out.Truncated {
		return Completion{}, fault.Validationf(op,
			"completion truncated at %d tokens (max_tokens=%d)", out.Usage.Tokens, params.MaxTokens)
	}

	a.log.Info("llm.call.ok",
		"model", model.Name,
		"tokens", out.Usage.Tokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Completion{Text: out.Text, Tokens: out.Usage.Tokens, Model: model.Name}, nil
}

func excerptBody(raw []byte) string {
	const max = 256
	s := strings.TrimSpace(string(raw))
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
