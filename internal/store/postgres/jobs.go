package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"docplain/internal/store"
)

// Retry policy for external-service failures. A job that keeps failing on
// model errors is requeued with exponential backoff until the attempt budget
// runs out, then becomes terminally FAILED.
const (
	MaxAttempts    = 3
	BackoffBase    = 10 * time.Second
	jobColumns     = "id, document_ref, state, current_step_index, target_language, attempt, cancel_requested, error_kind, error_message, created_at, started_at, completed_at"
	errJobNotFound = "job %s not found"
)

func scanJob(row interface {
	Scan(dest ...interface{}) error
}) (*store.Job, error) {
	var job store.Job
	err := row.Scan(
		&job.ID, &job.DocumentRef, &job.State, &job.CurrentStepIndex,
		&job.TargetLanguage, &job.Attempt, &job.CancelRequested,
		&job.ErrorKind, &job.ErrorMessage,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJob inserts a new job in state QUEUED.
func (s *Store) CreateJob(ctx context.Context, tx store.DBTransaction, job *store.Job) error {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO jobs (id, document_ref, state, target_language, created_at, visible_after)
		VALUES ($1, $2, $3, $4, $5, $5)
	`
	_, err := executor.ExecContext(ctx, query,
		job.ID, job.DocumentRef, store.JobStateQueued, job.TargetLanguage, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.ID, err)
	}
	return nil
}

// GetJobByID returns a job by its ID.
func (s *Store) GetJobByID(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE id = $1"
	return scanJob(s.db.QueryRowContext(ctx, query, id))
}

// ListJobs returns jobs, newest first, optionally filtered by state.
func (s *Store) ListJobs(ctx context.Context, state *store.JobState, limit, offset int) ([]store.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + jobColumns + " FROM jobs"
	args := []interface{}{}
	if state != nil {
		query += " WHERE state = $1"
		args = append(args, *state)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs query failed: %w", err)
	}
	defer rows.Close()

	var jobs []store.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs scan failed: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ClaimBatch atomically claims up to 'limit' QUEUED jobs whose visibility
// window has opened, using SELECT ... FOR UPDATE SKIP LOCKED. Claimed jobs
// transition to RUNNING with attempt incremented; started_at is set exactly
// once. A RUNNING job never matches the selection, so a second concurrent
// claim of the same job always comes back empty.
func (s *Store) ClaimBatch(ctx context.Context, limit int) ([]store.Job, error) {
	if limit <= 0 {
		limit = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	selectQuery := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE state = $1 AND visible_after <= NOW()
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`
	rows, err := tx.QueryContext(ctx, selectQuery, store.JobStateQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("claim query failed: %w", err)
	}
	defer rows.Close()

	var jobs []store.Job
	var ids []uuid.UUID
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("claim scan failed: %w", err)
		}
		jobs = append(jobs, *job)
		ids = append(ids, job.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim rows error: %w", err)
	}

	if len(jobs) == 0 {
		return nil, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET state = $1, started_at = COALESCE(started_at, NOW()), attempt = attempt + 1, current_step_index = 0
		WHERE id = ANY($2)
	`, store.JobStateRunning, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("claim update failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// Reflect the claim in the returned records.
	now := time.Now().UTC()
	for i := range jobs {
		jobs[i].State = store.JobStateRunning
		jobs[i].Attempt++
		jobs[i].CurrentStepIndex = 0
		if jobs[i].StartedAt == nil {
			startedAt := now
			jobs[i].StartedAt = &startedAt
		}
	}
	return jobs, nil
}

// Complete marks a RUNNING job COMPLETED.
func (s *Store) Complete(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID) error {
	executor := s.getExecutor(tx)
	res, err := executor.ExecContext(ctx, `
		UPDATE jobs
		SET state = $1, completed_at = NOW()
		WHERE id = $2 AND state = $3
	`, store.JobStateCompleted, jobID, store.JobStateRunning)
	if err != nil {
		return err
	}
	return requireOneRow(res, jobID)
}

// Fail records a job failure. Retryable failures within the attempt budget
// return the job to QUEUED with an exponential backoff visibility window;
// everything else is terminal FAILED.
func (s *Store) Fail(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, errKind, errMsg string, retryable bool) (bool, error) {
	executor := s.getExecutor(tx)

	var attempt int
	err := executor.QueryRowContext(ctx,
		"SELECT attempt FROM jobs WHERE id = $1 AND state = $2",
		jobID, store.JobStateRunning).Scan(&attempt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf(errJobNotFound+" in state RUNNING", jobID)
		}
		return false, err
	}

	if retryable && attempt < MaxAttempts {
		backoff := BackoffBase * (1 << attempt)
		_, err = executor.ExecContext(ctx, `
			UPDATE jobs
			SET state = $1, visible_after = NOW() + ($2 * INTERVAL '1 second'), error_kind = $3, error_message = $4
			WHERE id = $5 AND state = $6
		`, store.JobStateQueued, backoff.Seconds(), errKind, errMsg, jobID, store.JobStateRunning)
		if err != nil {
			return false, err
		}
		return true, nil
	}

	_, err = executor.ExecContext(ctx, `
		UPDATE jobs
		SET state = $1, error_kind = $2, error_message = $3, completed_at = NOW()
		WHERE id = $4 AND state = $5
	`, store.JobStateFailed, errKind, errMsg, jobID, store.JobStateRunning)
	return false, err
}

// MarkTimeout marks a RUNNING job TIMEOUT.
func (s *Store) MarkTimeout(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, errMsg string) error {
	executor := s.getExecutor(tx)
	res, err := executor.ExecContext(ctx, `
		UPDATE jobs
		SET state = $1, error_kind = 'timeout', error_message = $2, completed_at = NOW()
		WHERE id = $3 AND state = $4
	`, store.JobStateTimeout, errMsg, jobID, store.JobStateRunning)
	if err != nil {
		return err
	}
	return requireOneRow(res, jobID)
}

// MarkCancelled marks a RUNNING job CANCELLED.
func (s *Store) MarkCancelled(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID) error {
	executor := s.getExecutor(tx)
	res, err := executor.ExecContext(ctx, `
		UPDATE jobs
		SET state = $1, completed_at = NOW()
		WHERE id = $2 AND state = $3
	`, store.JobStateCancelled, jobID, store.JobStateRunning)
	if err != nil {
		return err
	}
	return requireOneRow(res, jobID)
}

// RequestCancel flags a job for cancellation. A QUEUED job is cancelled
// immediately; a RUNNING job keeps its flag until the worker observes it at
// the next step boundary. Returns false when the job is already terminal.
func (s *Store) RequestCancel(ctx context.Context, jobID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET state = $1, cancel_requested = TRUE, completed_at = NOW()
		WHERE id = $2 AND state = $3
	`, store.JobStateCancelled, jobID, store.JobStateQueued)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	res, err = s.db.ExecContext(ctx, `
		UPDATE jobs
		SET cancel_requested = TRUE
		WHERE id = $1 AND state = $2
	`, jobID, store.JobStateRunning)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// CancelRequested reports whether cancellation has been requested for a job.
func (s *Store) CancelRequested(ctx context.Context, jobID uuid.UUID) (bool, error) {
	var requested bool
	err := s.db.QueryRowContext(ctx,
		"SELECT cancel_requested FROM jobs WHERE id = $1", jobID).Scan(&requested)
	if err != nil {
		return false, err
	}
	return requested, nil
}

// SetCurrentStepIndex records pipeline progress for observers.
func (s *Store) SetCurrentStepIndex(ctx context.Context, jobID uuid.UUID, index int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET current_step_index = $1 WHERE id = $2", index, jobID)
	return err
}

// CountQueued returns the number of jobs currently waiting to be claimed.
func (s *Store) CountQueued(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM jobs WHERE state = $1 AND visible_after <= NOW()",
		store.JobStateQueued).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func requireOneRow(res sql.Result, jobID uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf(errJobNotFound+" in state RUNNING", jobID)
	}
	return nil
}
