package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx.
// This allows us to pass either a connection pool or an active transaction
// to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// JobStore owns the persistence of jobs and their lifecycle transitions.
// Only the orchestrator calls the transition methods; no other component
// writes Job.State.
type JobStore interface {
	// CreateJob inserts a new job in state QUEUED.
	CreateJob(ctx context.Context, tx DBTransaction, job *Job) error

	// GetJobByID returns a job by its ID.
	GetJobByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// ListJobs returns jobs, newest first, optionally filtered by state.
	ListJobs(ctx context.Context, state *JobState, limit, offset int) ([]Job, error)

	// ClaimBatch atomically claims up to 'limit' QUEUED jobs whose
	// visibility window has opened, transitioning them to RUNNING and
	// incrementing their attempt counter. A job that is already RUNNING
	// is never returned. Claiming is the only QUEUED -> RUNNING path.
	ClaimBatch(ctx context.Context, limit int) ([]Job, error)

	// Complete marks a RUNNING job COMPLETED.
	Complete(ctx context.Context, tx DBTransaction, jobID uuid.UUID) error

	// Fail records a job failure. If retryable is true and the attempt
	// budget is not exhausted, the job is returned to QUEUED with an
	// exponential backoff visibility window and requeued=true is
	// returned; otherwise the job becomes terminally FAILED.
	Fail(ctx context.Context, tx DBTransaction, jobID uuid.UUID, errKind, errMsg string, retryable bool) (requeued bool, err error)

	// MarkTimeout marks a RUNNING job TIMEOUT.
	MarkTimeout(ctx context.Context, tx DBTransaction, jobID uuid.UUID, errMsg string) error

	// MarkCancelled marks a job CANCELLED.
	MarkCancelled(ctx context.Context, tx DBTransaction, jobID uuid.UUID) error

	// RequestCancel flags a job for cooperative cancellation. A QUEUED
	// job is cancelled immediately; a RUNNING job is cancelled by its
	// worker at the next step boundary. Returns false if the job is
	// already terminal.
	RequestCancel(ctx context.Context, jobID uuid.UUID) (bool, error)

	// CancelRequested reports whether cancellation has been requested.
	CancelRequested(ctx context.Context, jobID uuid.UUID) (bool, error)

	// SetCurrentStepIndex records pipeline progress for observers.
	SetCurrentStepIndex(ctx context.Context, jobID uuid.UUID, index int) error
}

// StepStore reads and manages the pipeline step configuration.
type StepStore interface {
	// ListEnabledSteps returns the enabled steps ordered by
	// (step_order, id). The caller snapshots the result; later edits to
	// the configuration never affect a job already claimed.
	ListEnabledSteps(ctx context.Context) ([]PipelineStep, error)

	// ListSteps returns all steps, enabled or not, ordered by
	// (step_order, id).
	ListSteps(ctx context.Context) ([]PipelineStep, error)

	// SetStepEnabled toggles a step. Affects only future snapshots.
	SetStepEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// ExecutionStore persists the append-only step execution audit trail.
type ExecutionStore interface {
	// AppendExecution inserts one attempt record. Rows are never
	// updated or deleted.
	AppendExecution(ctx context.Context, tx DBTransaction, exec *StepExecution) error

	// ListExecutions returns all execution rows for a job ordered by
	// (attempt, step_order).
	ListExecutions(ctx context.Context, jobID uuid.UUID) ([]StepExecution, error)
}
