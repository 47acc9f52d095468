package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"docplain/internal/store"
)

const stepColumns = "id, step_order, name, kind, enabled, prompt_template, model_ref, temperature, max_tokens, output_key, config, created_at"

func (s *Store) scanSteps(rows *sql.Rows) ([]store.PipelineStep, error) {
	var steps []store.PipelineStep
	for rows.Next() {
		var step store.PipelineStep
		if err := rows.Scan(
			&step.ID, &step.Order, &step.Name, &step.Kind, &step.Enabled,
			&step.PromptTemplate, &step.ModelRef, &step.Temperature,
			&step.MaxTokens, &step.OutputKey, &step.Config, &step.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("step scan failed: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// ListEnabledSteps returns the enabled steps ordered by (step_order, id).
func (s *Store) ListEnabledSteps(ctx context.Context) ([]store.PipelineStep, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+stepColumns+" FROM pipeline_steps WHERE enabled ORDER BY step_order, id")
	if err != nil {
		return nil, fmt.Errorf("list enabled steps query failed: %w", err)
	}
	defer rows.Close()
	return s.scanSteps(rows)
}

// ListSteps returns all steps ordered by (step_order, id).
func (s *Store) ListSteps(ctx context.Context) ([]store.PipelineStep, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+stepColumns+" FROM pipeline_steps ORDER BY step_order, id")
	if err != nil {
		return nil, fmt.Errorf("list steps query failed: %w", err)
	}
	defer rows.Close()
	return s.scanSteps(rows)
}

// SetStepEnabled toggles a step. Snapshots already taken are unaffected.
func (s *Store) SetStepEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE pipeline_steps SET enabled = $1 WHERE id = $2", enabled, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("pipeline step %s not found", id)
	}
	return nil
}
