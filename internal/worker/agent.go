// Package worker contains the job orchestrator: the pull loop that claims
// jobs and the state machine that drives each job through its pipeline
// snapshot.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"docplain/internal/pipeline"
	"docplain/internal/progress"
	"docplain/internal/store"
)

// Store combines the persistence interfaces the worker depends on.
type Store interface {
	store.JobStore
	store.ExecutionStore
}

// AgentConfig holds configuration for the worker agent.
type AgentConfig struct {
	ID           string
	Concurrency  int
	PollInterval time.Duration
	MaxBackoff   time.Duration // Maximum backoff when queue is empty (default: 30s)
	JobTimeout   time.Duration // Wall-clock ceiling per job, from started_at
}

// Agent runs the pull-loop: claim QUEUED jobs, drive each through the
// pipeline on its own goroutine, bounded by a concurrency semaphore.
type Agent struct {
	jobs     Store
	loader   *pipeline.Loader
	executor *pipeline.Executor
	reporter progress.Reporter
	config   AgentConfig
	log      *slog.Logger
	done     chan struct{}
}

// New creates a new worker agent.
func New(jobs Store, loader *pipeline.Loader, executor *pipeline.Executor, reporter progress.Reporter, config AgentConfig, logger *slog.Logger) *Agent {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 15 * time.Minute
	}
	if reporter == nil {
		reporter = progress.NopReporter{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		jobs:     jobs,
		loader:   loader,
		executor: executor,
		reporter: reporter,
		config:   config,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// Run starts the main pull-loop. It blocks until the context is cancelled.
// On SIGTERM, it stops claiming new work and allows in-flight jobs to finish.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("agent.starting", "agent_id", a.config.ID, "concurrency", a.config.Concurrency)

	// Semaphore to limit concurrency
	sem := make(chan struct{}, a.config.Concurrency)
	var wg sync.WaitGroup

	// Channel to signal when a slot becomes available (adaptive polling)
	pollNow := make(chan struct{}, 1)

	// Current backoff duration (increases on empty queue, resets on work found)
	currentBackoff := a.config.PollInterval

	// Helper to trigger immediate non-blocking re-poll
	triggerPoll := func() {
		select {
		case pollNow <- struct{}{}:
		default:
			// Already a poll pending
		}
	}

	// Initial poll
	triggerPoll()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("agent.draining", "agent_id", a.config.ID)
			wg.Wait()
			close(a.done)
			return ctx.Err()

		case <-time.After(currentBackoff):
			// Timer-based poll (with backoff)
			triggerPoll()

		case <-pollNow:
			availableSlots := a.config.Concurrency - len(sem)
			if availableSlots <= 0 {
				continue
			}

			jobs, err := a.jobs.ClaimBatch(ctx, availableSlots)
			if err != nil {
				a.log.Error("agent.claim_failed", "error", err)
				continue
			}

			if len(jobs) == 0 {
				// Empty queue - increase backoff (exponential, capped at MaxBackoff)
				currentBackoff = currentBackoff * 2
				if currentBackoff > a.config.MaxBackoff {
					currentBackoff = a.config.MaxBackoff
				}
				continue
			}

			// Found work - reset backoff to minimum
			currentBackoff = a.config.PollInterval

			a.log.Info("agent.claimed", "count", len(jobs))

			for _, job := range jobs {
				// Acquire semaphore slot
				sem <- struct{}{}

				wg.Add(1)
				go func(job store.Job) {
					defer wg.Done()
					defer func() {
						<-sem
						// Slot free again - trigger immediate re-poll
						triggerPoll()
					}()
					// Detach from the poll context so SIGTERM drains
					// in-flight jobs instead of aborting them.
					a.runJob(context.WithoutCancel(ctx), job)
				}(job)
			}

			// If we got jobs and there are still slots available, poll again immediately
			if len(jobs) < availableSlots {
				triggerPoll()
			}
		}
	}
}

// Done returns a channel that is closed when the agent has fully stopped.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}
