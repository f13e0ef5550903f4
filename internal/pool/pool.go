// Package pool implements the atomic task pool: claiming, failure backoff
// and completion. Readiness is data-driven; there is no scheduler thread.
package pool

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pbc1017/hollon-ai-sub003/internal/config"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// ErrTaskNotFound indicates the referenced task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// ErrWorkerNotFound indicates the referenced worker does not exist.
var ErrWorkerNotFound = errors.New("worker not found")

// Pull reasons returned when no task could be claimed. These are expected
// conditions, not errors.
const (
	ReasonNoEligibleTasks = "no eligible tasks for this worker"
	ReasonAllClaimed      = "all eligible tasks were claimed by other workers"
	ReasonFileConflicts   = "all eligible tasks touch files already in progress"
)

// PullResult is the outcome of a PullNextTask call. Task is nil when nothing
// qualified; Reason then says why in human-readable form.
type PullResult struct {
	// Task is the claimed task, or nil.
	Task *models.Task
	// Reason explains a nil Task.
	Reason string
}

// Pool coordinates claiming, failing and completing tasks against the store.
type Pool struct {
	tasks   store.TaskStore
	workers store.WorkerStore
	cfg     config.PoolConfig

	// failureCeiling is the consecutive-failure count at which
	// onFailureCeiling fires instead of yet another backoff round.
	failureCeiling   int
	onFailureCeiling func(task *models.Task)

	// now is swappable for tests.
	now func() time.Time
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock overrides the pool's time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithFailureCeiling installs the escalation policy hook: fn fires when a
// task's consecutive failures reach ceiling.
func WithFailureCeiling(ceiling int, fn func(task *models.Task)) Option {
	return func(p *Pool) {
		p.failureCeiling = ceiling
		p.onFailureCeiling = fn
	}
}

// New creates a Pool over the given stores.
func New(tasks store.TaskStore, workers store.WorkerStore, cfg config.PoolConfig, opts ...Option) *Pool {
	p := &Pool{
		tasks:   tasks,
		workers: workers,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PullNextTask claims the best eligible task for the worker. Candidates are
// ordered by priority then age; the claim itself is a conditional update, so
// a caller that loses a race simply falls through to the next candidate.
func (p *Pool) PullNextTask(workerID string) (*PullResult, error) {
	worker, err := p.workers.GetWorker(workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrWorkerNotFound, workerID)
		}
		return nil, fmt.Errorf("load worker: %w", err)
	}

	now := p.now()
	candidates, err := p.tasks.ListClaimCandidates(workerID, worker.TeamID, now)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return &PullResult{Reason: ReasonNoEligibleTasks}, nil
	}

	var busyFiles map[string]bool
	if p.cfg.EnforceFileAffinity {
		busyFiles, err = p.tasks.InProgressAffectedFiles()
		if err != nil {
			return nil, fmt.Errorf("list in-progress files: %w", err)
		}
	}

	skippedForFiles := 0
	for _, candidate := range candidates {
		if p.cfg.EnforceFileAffinity && overlaps(candidate.AffectedFiles, busyFiles) {
			skippedForFiles++
			continue
		}

		claimed, err := p.tasks.ClaimTask(candidate.ID, workerID, now)
		if err != nil {
			return nil, fmt.Errorf("claim task %s: %w", candidate.ID, err)
		}
		if !claimed {
			// Lost the race; try the next candidate.
			continue
		}

		if err := p.workers.SetWorkerStatus(workerID, models.WorkerStatusWorking, now); err != nil {
			log.Printf("[pool] mark worker %s working: %v", workerID, err)
		}

		fresh, err := p.tasks.GetTask(candidate.ID)
		if err != nil {
			return nil, fmt.Errorf("reload claimed task: %w", err)
		}
		return &PullResult{Task: fresh}, nil
	}

	if skippedForFiles == len(candidates) {
		return &PullResult{Reason: ReasonFileConflicts}, nil
	}
	return &PullResult{Reason: ReasonAllClaimed}, nil
}

// FailTask records a failure: consecutive failures are incremented, the task
// goes back to READY, and blockedUntil is pushed out by a geometric backoff.
// This is the guard against infinite retry loops.
func (p *Pool) FailTask(taskID, reason string) error {
	task, err := p.tasks.GetTask(taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return fmt.Errorf("load task: %w", err)
	}

	now := p.now()
	task.ConsecutiveFailures++
	task.LastFailedAt = &now
	task.Status = models.TaskStatusReady
	task.Error = reason

	deadline := now.Add(p.Backoff(task.ConsecutiveFailures))
	task.BlockedUntil = &deadline

	if err := p.tasks.UpdateTask(task); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}

	log.Printf("[pool] task %s failed (%d consecutive): %s; blocked until %s",
		taskID, task.ConsecutiveFailures, reason, deadline.Format(time.RFC3339))

	if task.AssignedHollonID != "" {
		if err := p.workers.SetWorkerStatus(task.AssignedHollonID, models.WorkerStatusIdle, now); err != nil {
			log.Printf("[pool] mark worker %s idle: %v", task.AssignedHollonID, err)
		}
	}

	if p.onFailureCeiling != nil && p.failureCeiling > 0 && task.ConsecutiveFailures >= p.failureCeiling {
		p.onFailureCeiling(task)
	}

	return nil
}

// CompleteTask marks a task COMPLETED and clears its failure bookkeeping.
func (p *Pool) CompleteTask(taskID string) error {
	task, err := p.tasks.GetTask(taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return fmt.Errorf("load task: %w", err)
	}

	now := p.now()
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	task.ConsecutiveFailures = 0
	task.BlockedUntil = nil
	task.Error = ""

	if err := p.tasks.UpdateTask(task); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}

	if task.AssignedHollonID != "" {
		if err := p.workers.SetWorkerStatus(task.AssignedHollonID, models.WorkerStatusIdle, now); err != nil {
			log.Printf("[pool] mark worker %s idle: %v", task.AssignedHollonID, err)
		}
	}

	return nil
}

// Backoff returns the delay imposed after the nth consecutive failure.
// The delay grows geometrically from the base; a step whose successor would
// exceed the cap snaps to the cap, so with the defaults the progression is
// 5m, 15m, 60m, 60m, ... for failures 1, 2, 3, 4+.
func (p *Pool) Backoff(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}

	factor := time.Duration(p.cfg.BackoffFactor)
	backoff := p.cfg.BackoffBase
	for i := 1; i < failures; i++ {
		backoff *= factor
		if backoff >= p.cfg.BackoffCap || backoff*factor > p.cfg.BackoffCap {
			return p.cfg.BackoffCap
		}
	}
	if backoff > p.cfg.BackoffCap {
		return p.cfg.BackoffCap
	}
	return backoff
}

// overlaps reports whether any of files is present in busy.
func overlaps(files []string, busy map[string]bool) bool {
	for _, f := range files {
		if busy[f] {
			return true
		}
	}
	return false
}
