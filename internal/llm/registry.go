// Package llm invokes external AI models over HTTP with per-model fallback
// chains.
package llm

import (
	"encoding/json"
	"fmt"
	"os"

	"docplain/internal/fault"
	"docplain/internal/store"
)

// Registry resolves model names to descriptors.
type Registry struct {
	models map[string]store.ModelDescriptor
}

// NewRegistry builds a registry from a list of descriptors.
func NewRegistry(descriptors []store.ModelDescriptor) (*Registry, error) {
	models := make(map[string]store.ModelDescriptor, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" || d.Endpoint == "" {
			return nil, fault.Configf("llm.registry", "model descriptor requires name and endpoint, got %+v", d)
		}
		if _, ok := models[d.Name]; ok {
			return nil, fault.Configf("llm.registry", "duplicate model name %q", d.Name)
		}
		models[d.Name] = d
	}
	return &Registry{models: models}, nil
}

// LoadRegistryFile reads model descriptors from a JSON file of the shape
// [{"name": ..., "endpoint": ..., "fallback_order": [...]}, ...].
func LoadRegistryFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Config("llm.registry", fmt.Errorf("read models file: %w", err))
	}
	var entries []struct {
		Name          string   `json:"name"`
		Endpoint      string   `json:"endpoint"`
		FallbackOrder []string `json:"fallback_order"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fault.Config("llm.registry", fmt.Errorf("parse models file: %w", err))
	}
	descriptors := make([]store.ModelDescriptor, 0, len(entries))
	for _, e := range entries {
		descriptors = append(descriptors, store.ModelDescriptor{
			Name:          e.Name,
			Endpoint:      e.Endpoint,
			FallbackOrder: e.FallbackOrder,
		})
	}
	return NewRegistry(descriptors)
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (store.ModelDescriptor, error) {
	d, ok := r.models[name]
	if !ok {
		return store.ModelDescriptor{}, fault.Configf("llm.registry", "unknown model %q", name)
	}
	return d, nil
}

// Chain returns the primary descriptor for name followed by its fallbacks,
// in order. A fallback name that does not resolve is a configuration error;
// a chain must be fully known before the first call is made.
func (r *Registry) Chain(name string) ([]store.ModelDescriptor, error) {
	primary, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	chain := []store.ModelDescriptor{primary}
	for _, alt := range primary.FallbackOrder {
		d, err := r.Lookup(alt)
		if err != nil {
			return nil, fault.Configf("llm.registry", "model %q lists unknown fallback %q", name, alt)
		}
		chain = append(chain, d)
	}
	return chain, nil
}
