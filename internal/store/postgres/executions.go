package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docplain/internal/store"
)

// AppendExecution inserts one step attempt record. The table is append-only;
// there is no update or delete path.
func (s *Store) AppendExecution(ctx context.Context, tx store.DBTransaction, exec *store.StepExecution) error {
	executor := s.getExecutor(tx)

	query := `
		INSERT INTO step_executions
			(job_id, step_id, step_name, step_order, attempt, status, model_used, input_excerpt, output_excerpt, duration_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	err := executor.QueryRowContext(ctx, query,
		exec.JobID, exec.StepID, exec.StepName, exec.StepOrder, exec.Attempt,
		exec.Status, exec.ModelUsed, exec.InputExcerpt, exec.OutputExcerpt,
		exec.Duration.Milliseconds(), exec.ErrorMessage,
	).Scan(&exec.ID, &exec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append execution for job %s: %w", exec.JobID, err)
	}
	return nil
}

// ListExecutions returns all execution rows for a job, strictly ordered by
// (attempt, step_order).
func (s *Store) ListExecutions(ctx context.Context, jobID uuid.UUID) ([]store.StepExecution, error) {
	query := `
		SELECT id, job_id, step_id, step_name, step_order, attempt, status, model_used, input_excerpt, output_excerpt, duration_ms, error_message, created_at
		FROM step_executions
		WHERE job_id = $1
		ORDER BY attempt, step_order, id
	`
	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list executions query failed: %w", err)
	}
	defer rows.Close()

	var executions []store.StepExecution
	for rows.Next() {
		var exec store.StepExecution
		var durationMS int64
		if err := rows.Scan(
			&exec.ID, &exec.JobID, &exec.StepID, &exec.StepName, &exec.StepOrder,
			&exec.Attempt, &exec.Status, &exec.ModelUsed, &exec.InputExcerpt,
			&exec.OutputExcerpt, &durationMS, &exec.ErrorMessage, &exec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("execution scan failed: %w", err)
		}
		exec.Duration = time.Duration(durationMS) * time.Millisecond
		executions = append(executions, exec)
	}
	return executions, rows.Err()
}
