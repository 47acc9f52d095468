package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"docplain/internal/fault"
	"docplain/internal/llm"
	"docplain/internal/ocr"
	"docplain/internal/pii"
	"docplain/internal/store"
)

// Extractor is the OCR routing interface the executor depends on.
type Extractor interface {
	Extract(ctx context.Context, documentRef string, o ocr.Overrides) (ocr.Result, error)
}

// Outcome is the result of one successful step attempt. State is the merged
// document state the next step will observe; the input state passed to
// Execute is never mutated.
type Outcome struct {
	State     DocState
	Input     string // what was sent out: rendered prompt, text, or document ref
	Output    string
	ModelUsed string
}

// Executor runs a single pipeline step against the current document state.
// It produces typed errors and leaves retry decisions to the orchestrator.
type Executor struct {
	models llm.Invoker
	ocr    Extractor
	pii    pii.Filter
	log    *slog.Logger
}

// NewExecutor wires the executor to its external collaborators.
func NewExecutor(models llm.Invoker, extractor Extractor, filter pii.Filter, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{models: models, ocr: extractor, pii: filter, log: logger}
}

// Execute dispatches on the step kind, validates the result, and returns the
// next document state. The kind set is closed; dispatch is one exhaustive
// switch. On any error the input state is untouched.
func (e *Executor) Execute(ctx context.Context, step store.PipelineStep, state DocState) (Outcome, error) {
	switch step.Kind {
	case store.StepKindExtraction:
		return e.runExtraction(ctx, step, state)
	case store.StepKindRedaction:
		return e.runRedaction(ctx, step, state)
	case store.StepKindClassification:
		return e.runClassification(ctx, step, state)
	case store.StepKindGeneration, store.StepKindValidation, store.StepKindTranslation, store.StepKindFormatting:
		return e.runGenerative(ctx, step, state)
	default:
		return Outcome{}, fault.Configf("pipeline.executor", "step %q has unknown kind %q", step.Name, step.Kind)
	}
}

func (e *Executor) runExtraction(ctx context.Context, step store.PipelineStep, state DocState) (Outcome, error) {
	documentRef, ok := state[KeyDocumentRef]
	if !ok || documentRef == "" {
		return Outcome{}, fault.Fatalf("pipeline.executor", "step %q: job state has no document reference", step.Name)
	}

	cfg, err := ParseExtractionConfig(step)
	if err != nil {
		return Outcome{}, err
	}

	res, err := e.ocr.Extract(ctx, documentRef, ocr.Overrides{
		Engine:              cfg.Engine,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	})
	if err != nil {
		return Outcome{}, err
	}

	text := res.Text
	if cfg.PIIRemovalEnabled {
		red, err := e.pii.Redact(ctx, text)
		if err != nil {
			return Outcome{}, err
		}
		text = red.RedactedText
		e.log.Info("pipeline.step.extraction_redacted", "step", step.Name, "entities", len(red.Entities))
	}

	next := state.Merge(step.OutputKey, text)
	next[KeyOCRConfidence] = strconv.FormatFloat(res.Confidence, 'f', 2, 64)
	return Outcome{State: next, Input: documentRef, Output: text}, nil
}

func (e *Executor) runRedaction(ctx context.Context, step store.PipelineStep, state DocState) (Outcome, error) {
	text, err := RenderTemplate(step.Name, step.PromptTemplate, state)
	if err != nil {
		return Outcome{}, err
	}

	red, err := e.pii.Redact(ctx, text)
	if err != nil {
		return Outcome{}, err
	}

	e.log.Info("pipeline.step.redacted", "step", step.Name, "entities", len(red.Entities))
	return Outcome{
		State:  state.Merge(step.OutputKey, red.RedactedText),
		Input:  text,
		Output: red.RedactedText,
	}, nil
}

func (e *Executor) runGenerative(ctx context.Context, step store.PipelineStep, state DocState) (Outcome, error) {
	prompt, err := RenderTemplate(step.Name, step.PromptTemplate, state)
	if err != nil {
		return Outcome{}, err
	}

	completion, err := e.models.Invoke(ctx, step.ModelRef, prompt, llm.Params{
		Temperature: step.Temperature,
		MaxTokens:   step.MaxTokens,
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		State:     state.Merge(step.OutputKey, completion.Text),
		Input:     prompt,
		Output:    completion.Text,
		ModelUsed: completion.Model,
	}, nil
}

func (e *Executor) runClassification(ctx context.Context, step store.PipelineStep, state DocState) (Outcome, error) {
	cfg, err := ParseClassificationConfig(step)
	if err != nil {
		return Outcome{}, err
	}

	prompt, err := RenderTemplate(step.Name, step.PromptTemplate, state)
	if err != nil {
		return Outcome{}, err
	}

	completion, err := e.models.Invoke(ctx, step.ModelRef, prompt, llm.Params{
		Temperature: step.Temperature,
		MaxTokens:   step.MaxTokens,
	})
	if err != nil {
		return Outcome{}, err
	}

	label := strings.TrimSpace(completion.Text)
	matched := ""
	for _, allowed := range cfg.AllowedLabels {
		if strings.EqualFold(label, allowed) {
			matched = allowed
			break
		}
	}
	if matched == "" {
		// Same prompt, same model: a structurally wrong answer is not
		// worth a retry.
		return Outcome{}, fault.Validationf("pipeline.executor",
			"step %q: model %s returned label %q, not one of %v",
			step.Name, completion.Model, label, cfg.AllowedLabels)
	}

	return Outcome{
		State:     state.Merge(step.OutputKey, matched),
		Input:     prompt,
		Output:    matched,
		ModelUsed: completion.Model,
	}, nil
}
