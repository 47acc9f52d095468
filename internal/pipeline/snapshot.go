package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"docplain/internal/fault"
	"docplain/internal/store"
)

// Per-kind step configuration schemas. Validated when the snapshot is built
// so a bad definition fails the job before any external call is made.
var stepConfigSchemas = map[store.StepKind]*jsonschema.Schema{
	store.StepKindExtraction: jsonschema.MustCompileString("extraction.json", `{
		"type": "object",
		"properties": {
			"engine": {"enum": ["FAST", "VISION", "HYBRID"]},
			"confidence_threshold": {"type": "number", "minimum": 0, "maximum": 1},
			"pii_removal_enabled": {"type": "boolean"}
		},
		"additionalProperties": false
	}`),
	store.StepKindClassification: jsonschema.MustCompileString("classification.json", `{
		"type": "object",
		"required": ["allowed_labels"],
		"properties": {
			"allowed_labels": {
				"type": "array",
				"items": {"type": "string", "minLength": 1},
				"minItems": 1
			}
		},
		"additionalProperties": false
	}`),
	store.StepKindRedaction:   emptyObjectSchema("redaction.json"),
	store.StepKindGeneration:  emptyObjectSchema("generation.json"),
	store.StepKindValidation:  emptyObjectSchema("validation.json"),
	store.StepKindTranslation: emptyObjectSchema("translation.json"),
	store.StepKindFormatting:  emptyObjectSchema("formatting.json"),
}

func emptyObjectSchema(name string) *jsonschema.Schema {
	return jsonschema.MustCompileString(name, `{"type": "object", "additionalProperties": false}`)
}

// Snapshot is the immutable ordered list of enabled steps fixed at job claim
// time. It may be shared across jobs without locking; configuration edits
// made while a job runs never reach it.
type Snapshot struct {
	steps []store.PipelineStep
}

// NewSnapshot validates and orders the enabled steps. The sequence sorted by
// (Order, ID) must be deterministic: duplicate order values among enabled
// steps are rejected, and an empty pipeline can never run a job.
func NewSnapshot(enabled []store.PipelineStep) (*Snapshot, error) {
	if len(enabled) == 0 {
		return nil, fault.Configf("pipeline.snapshot", "no enabled pipeline steps")
	}

	steps := make([]store.PipelineStep, len(enabled))
	copy(steps, enabled)
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Order != steps[j].Order {
			return steps[i].Order < steps[j].Order
		}
		return bytes.Compare(steps[i].ID[:], steps[j].ID[:]) < 0
	})

	seen := make(map[int]string, len(steps))
	for _, s := range steps {
		if prev, ok := seen[s.Order]; ok {
			return nil, fault.Configf("pipeline.snapshot",
				"steps %q and %q share order %d", prev, s.Name, s.Order)
		}
		seen[s.Order] = s.Name

		if err := validateStepConfig(s); err != nil {
			return nil, err
		}
	}

	return &Snapshot{steps: steps}, nil
}

func validateStepConfig(s store.PipelineStep) error {
	schema, ok := stepConfigSchemas[s.Kind]
	if !ok {
		return fault.Configf("pipeline.snapshot", "step %q has unknown kind %q", s.Name, s.Kind)
	}

	raw := s.Config
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fault.Config("pipeline.snapshot", fmt.Errorf("step %q: config is not valid JSON: %w", s.Name, err))
	}
	if err := schema.Validate(v); err != nil {
		return fault.Config("pipeline.snapshot", fmt.Errorf("step %q: invalid %s config: %w", s.Name, s.Kind, err))
	}
	return nil
}

// Len returns the number of steps in the snapshot.
func (s *Snapshot) Len() int { return len(s.steps) }

// Step returns the step at position i in execution order.
func (s *Snapshot) Step(i int) store.PipelineStep { return s.steps[i] }

// Steps returns a copy of the ordered steps.
func (s *Snapshot) Steps() []store.PipelineStep {
	out := make([]store.PipelineStep, len(s.steps))
	copy(out, s.steps)
	return out
}

// ExtractionConfig is the typed configuration of an extraction step. Zero
// fields defer to the worker-level OCR configuration; PIIRemovalEnabled runs
// the PII filter over the extracted text before it enters the document state.
type ExtractionConfig struct {
	Engine              store.OCREngine `json:"engine"`
	ConfidenceThreshold float64         `json:"confidence_threshold"`
	PIIRemovalEnabled   bool            `json:"pii_removal_enabled"`
}

// ParseExtractionConfig decodes an extraction step's config. The snapshot has
// already schema-validated it; an absent config means all defaults.
func ParseExtractionConfig(s store.PipelineStep) (ExtractionConfig, error) {
	var cfg ExtractionConfig
	if len(s.Config) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(s.Config, &cfg); err != nil {
		return ExtractionConfig{}, fault.Config("pipeline.config",
			fmt.Errorf("step %q: decode extraction config: %w", s.Name, err))
	}
	return cfg, nil
}

// ClassificationConfig is the typed configuration of a classification step.
type ClassificationConfig struct {
	AllowedLabels []string `json:"allowed_labels"`
}

// ParseClassificationConfig decodes a classification step's config. The
// snapshot has already schema-validated it.
func ParseClassificationConfig(s store.PipelineStep) (ClassificationConfig, error) {
	var cfg ClassificationConfig
	if err := json.Unmarshal(s.Config, &cfg); err != nil {
		return ClassificationConfig{}, fault.Config("pipeline.config",
			fmt.Errorf("step %q: decode classification config: %w", s.Name, err))
	}
	return cfg, nil
}

// Loader reads the current step configuration into immutable snapshots.
type Loader struct {
	steps store.StepStore
}

// NewLoader creates a snapshot loader over the step store.
func NewLoader(steps store.StepStore) *Loader {
	return &Loader{steps: steps}
}

// Load takes a snapshot of the currently enabled steps. Pure read; the
// returned snapshot is never mutated by a running job.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	enabled, err := l.steps.ListEnabledSteps(ctx)
	if err != nil {
		return nil, fault.Fatalf("pipeline.loader", "list enabled steps: %v", err)
	}
	return NewSnapshot(enabled)
}
