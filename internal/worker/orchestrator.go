package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docplain/internal/fault"
	"docplain/internal/observability"
	"docplain/internal/pipeline"
	"docplain/internal/progress"
	"docplain/internal/store"
)

// runJob drives one claimed job through its pipeline snapshot. The agent is
// the only component that writes Job.State; the executor only produces
// document state and typed errors. Cancellation and the wall-clock ceiling
// are checked at step boundaries, never inside an in-flight external call.
func (a *Agent) runJob(ctx context.Context, job store.Job) {
	tracer := otel.Tracer("docplain-worker")
	ctx, span := tracer.Start(ctx, "run_job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID.String()),
			attribute.String("job.document_ref", job.DocumentRef),
			attribute.Int("job.attempt", job.Attempt),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	log := a.log.With("job_id", job.ID, "attempt", job.Attempt)
	log.Info("job.started", "document_ref", job.DocumentRef)

	// Snapshot once, at job start. Later configuration edits are invisible
	// to this job.
	snapshot, err := a.loader.Load(ctx)
	if err != nil {
		a.failJob(ctx, log, span, job, "", 0, err)
		return
	}
	span.SetAttributes(attribute.Int("pipeline.steps", snapshot.Len()))

	targetLanguage := ""
	if job.TargetLanguage != nil {
		targetLanguage = *job.TargetLanguage
	}
	state := pipeline.NewDocState(job.DocumentRef, targetLanguage)

	total := snapshot.Len()
	for i := 0; i < total; i++ {
		step := snapshot.Step(i)
		percent := i * 100 / total

		if job.StartedAt != nil && time.Since(*job.StartedAt) > a.config.JobTimeout {
			msg := fmt.Sprintf("job exceeded %s ceiling before step %q", a.config.JobTimeout, step.Name)
			if err := a.jobs.MarkTimeout(ctx, nil, job.ID, msg); err != nil {
				log.Error("job.timeout_mark_failed", "error", err)
				return
			}
			observability.JobsFinished.WithLabelValues(string(store.JobStateTimeout)).Inc()
			a.reporter.Report(ctx, progress.Event{JobID: job.ID, StepName: step.Name, Percent: percent, Message: msg})
			log.Error("job.timeout", "step", step.Name)
			return
		}

		cancelRequested, err := a.jobs.CancelRequested(ctx, job.ID)
		if err != nil {
			// Cancellation is cooperative; a failed check falls through to
			// the next boundary.
			log.Warn("job.cancel_check_failed", "error", err)
		}
		if cancelRequested {
			if err := a.jobs.MarkCancelled(ctx, nil, job.ID); err != nil {
				log.Error("job.cancel_mark_failed", "error", err)
				return
			}
			observability.JobsFinished.WithLabelValues(string(store.JobStateCancelled)).Inc()
			a.reporter.Report(ctx, progress.Event{JobID: job.ID, StepName: step.Name, Percent: percent, Message: "cancelled"})
			log.Info("job.cancelled", "step", step.Name)
			return
		}

		if err := a.jobs.SetCurrentStepIndex(ctx, job.ID, i); err != nil {
			log.Warn("job.step_index_update_failed", "error", err)
		}

		start := time.Now()
		outcome, stepErr := a.executor.Execute(ctx, step, state)
		duration := time.Since(start)

		status := store.ExecutionStatusSuccess
		var errMsg *string
		if stepErr != nil {
			status = store.ExecutionStatusFailed
			msg := stepErr.Error()
			errMsg = &msg
		}
		observability.StepDuration.WithLabelValues(string(step.Kind), string(status)).Observe(duration.Seconds())

		exec := store.StepExecution{
			JobID:         job.ID,
			StepID:        step.ID,
			StepName:      step.Name,
			StepOrder:     step.Order,
			Attempt:       job.Attempt,
			Status:        status,
			ModelUsed:     outcome.ModelUsed,
			InputExcerpt:  pipeline.Excerpt(outcome.Input),
			OutputExcerpt: pipeline.Excerpt(outcome.Output),
			Duration:      duration,
			ErrorMessage:  errMsg,
		}
		if err := a.jobs.AppendExecution(ctx, nil, &exec); err != nil {
			// The audit trail is part of the engine's durability contract;
			// a job we cannot account for must not claim success.
			log.Error("job.execution_append_failed", "step", step.Name, "error", err)
			a.failJob(ctx, log, span, job, step.Name, percent,
				fault.Fatalf("worker", "persist step execution for %q: %v", step.Name, err))
			return
		}

		if stepErr != nil {
			a.failJob(ctx, log, span, job, step.Name, percent, stepErr)
			return
		}

		state = outcome.State
		percent = (i + 1) * 100 / total
		a.reporter.Report(ctx, progress.Event{
			JobID:    job.ID,
			StepName: step.Name,
			Percent:  percent,
			Message:  fmt.Sprintf("step %q completed", step.Name),
		})
		log.Info("job.step_completed", "step", step.Name, "kind", step.Kind, "duration_ms", duration.Milliseconds())
	}

	if err := a.jobs.Complete(ctx, nil, job.ID); err != nil {
		log.Error("job.complete_mark_failed", "error", err)
		return
	}
	observability.JobsFinished.WithLabelValues(string(store.JobStateCompleted)).Inc()
	a.reporter.Report(ctx, progress.Event{JobID: job.ID, StepName: "", Percent: 100, Message: "completed"})
	log.Info("job.completed", "steps", total)
}

// failJob maps a typed error onto the retry policy: external-service errors
// burn the attempt budget and requeue with backoff, everything else is
// terminal FAILED.
func (a *Agent) failJob(ctx context.Context, log *slog.Logger, span trace.Span, job store.Job, stepName string, percent int, jobErr error) {
	span.RecordError(jobErr)
	kind := fault.KindOf(jobErr)

	requeued, err := a.jobs.Fail(ctx, nil, job.ID, string(kind), jobErr.Error(), fault.Retryable(jobErr))
	if err != nil {
		log.Error("job.fail_mark_failed", "error", err)
		return
	}

	if requeued {
		log.Warn("job.requeued", "step", stepName, "kind", kind, "error", jobErr)
		return
	}

	observability.JobsFinished.WithLabelValues(string(store.JobStateFailed)).Inc()
	a.reporter.Report(ctx, progress.Event{
		JobID:    job.ID,
		StepName: stepName,
		Percent:  percent,
		Message:  fmt.Sprintf("failed: %s", jobErr),
	})
	log.Error("job.failed", "step", stepName, "kind", kind, "error", jobErr)
}
