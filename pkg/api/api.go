// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import "time"

// EnqueueJobRequest is the request body for enqueueing a translation job.
type EnqueueJobRequest struct {
	DocumentRef    string `json:"document_ref"`
	TargetLanguage string `json:"target_language,omitempty"`
}

// EnqueueJobResponse is the response body after enqueueing a job.
type EnqueueJobResponse struct {
	JobID string `json:"job_id"`
}

// JobResponse is the response body for job status queries.
type JobResponse struct {
	ID               string     `json:"id"`
	DocumentRef      string     `json:"document_ref"`
	State            string     `json:"state"`
	CurrentStepIndex int        `json:"current_step_index"`
	TargetLanguage   string     `json:"target_language,omitempty"`
	Attempt          int        `json:"attempt"`
	ErrorKind        string     `json:"error_kind,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// StepExecutionResponse is one audit row of the step execution trail.
type StepExecutionResponse struct {
	StepName      string    `json:"step_name"`
	StepOrder     int       `json:"step_order"`
	Attempt       int       `json:"attempt"`
	Status        string    `json:"status"`
	ModelUsed     string    `json:"model_used,omitempty"`
	InputExcerpt  string    `json:"input_excerpt,omitempty"`
	OutputExcerpt string    `json:"output_excerpt,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PipelineStepResponse describes one configured pipeline step.
type PipelineStepResponse struct {
	ID          string  `json:"id"`
	Order       int     `json:"order"`
	Name        string  `json:"name"`
	Kind        string  `json:"kind"`
	Enabled     bool    `json:"enabled"`
	ModelRef    string  `json:"model_ref,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	OutputKey   string  `json:"output_key"`
}

// SetStepEnabledRequest toggles a pipeline step.
type SetStepEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
