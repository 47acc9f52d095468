// Package store contains the database layer for docplain.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a translation job.
type JobState string

const (
	JobStateQueued    JobState = "QUEUED"
	JobStateRunning   JobState = "RUNNING"
	JobStateCompleted JobState = "COMPLETED"
	JobStateFailed    JobState = "FAILED"
	JobStateCancelled JobState = "CANCELLED"
	JobStateTimeout   JobState = "TIMEOUT"
)

// Terminal reports whether s is a final state. A job in a terminal state
// never re-enters RUNNING; it must be re-enqueued as a new claim attempt.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled, JobStateTimeout:
		return true
	}
	return false
}

// Job is one request to translate a medical document into
// patient-friendly language.
type Job struct {
	ID               uuid.UUID
	DocumentRef      string
	State            JobState
	CurrentStepIndex int
	TargetLanguage   *string
	Attempt          int
	CancelRequested  bool
	ErrorKind        *string
	ErrorMessage     *string
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// StepKind is the closed set of processing step kinds. Dispatch in the
// executor is a single exhaustive switch over these values.
type StepKind string

const (
	StepKindExtraction     StepKind = "extraction"
	StepKindRedaction      StepKind = "redaction"
	StepKindGeneration     StepKind = "generation"
	StepKindClassification StepKind = "classification"
	StepKindValidation     StepKind = "validation"
	StepKindTranslation    StepKind = "translation"
	StepKindFormatting     StepKind = "formatting"
)

// PipelineStep is one configured unit of pipeline work. The ordered set of
// enabled steps, sorted by (Order, ID), forms the pipeline snapshot taken
// at job claim time.
type PipelineStep struct {
	ID             uuid.UUID
	Order          int
	Name           string
	Kind           StepKind
	Enabled        bool
	PromptTemplate string
	ModelRef       string
	Temperature    float64
	MaxTokens      int
	OutputKey      string
	Config         json.RawMessage
	CreatedAt      time.Time
}

// ExecutionStatus is the outcome of one step attempt.
type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusFailed  ExecutionStatus = "FAILED"
	ExecutionStatusSkipped ExecutionStatus = "SKIPPED"
)

// StepExecution is an append-only audit record of one attempt to run one
// step for one job. Rows for a job are strictly ordered by
// (Attempt, StepOrder) and are never mutated or deleted.
type StepExecution struct {
	ID            int64
	JobID         uuid.UUID
	StepID        uuid.UUID
	StepName      string
	StepOrder     int
	Attempt       int
	Status        ExecutionStatus
	ModelUsed     string
	InputExcerpt  string
	OutputExcerpt string
	Duration      time.Duration
	ErrorMessage  *string
	CreatedAt     time.Time
}

// OCREngine selects the extraction strategy.
type OCREngine string

const (
	OCREngineFast   OCREngine = "FAST"
	OCREngineVision OCREngine = "VISION"
	OCREngineHybrid OCREngine = "HYBRID"
)

// ModelDescriptor names one AI model endpoint and the ordered list of
// alternates to try when a call to it fails.
type ModelDescriptor struct {
	Name          string
	Endpoint      string
	FallbackOrder []string
}
