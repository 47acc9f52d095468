package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"docplain/pkg/api"
)

// ListSteps returns the full pipeline configuration, enabled or not.
func (h *Handlers) ListSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := h.store.ListSteps(r.Context())
	if err != nil {
		h.httpError(w, "Failed to list pipeline steps", http.StatusInternalServerError)
		return
	}

	out := make([]api.PipelineStepResponse, 0, len(steps))
	for _, step := range steps {
		out = append(out, api.PipelineStepResponse{
			ID:          step.ID.String(),
			Order:       step.Order,
			Name:        step.Name,
			Kind:        string(step.Kind),
			Enabled:     step.Enabled,
			ModelRef:    step.ModelRef,
			Temperature: step.Temperature,
			MaxTokens:   step.MaxTokens,
			OutputKey:   step.OutputKey,
		})
	}
	h.respondJson(w, http.StatusOK, out)
}

// SetStepEnabled toggles one pipeline step. Jobs already claimed keep their
// snapshot; only future jobs see the change.
func (h *Handlers) SetStepEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid step id", http.StatusBadRequest)
		return
	}

	var req api.SetStepEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.SetStepEnabled(r.Context(), id, req.Enabled); err != nil {
		h.httpError(w, "Failed to update step", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}
