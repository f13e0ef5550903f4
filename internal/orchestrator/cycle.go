package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/pbc1017/hollon-ai-sub003/internal/brain"
	"github.com/pbc1017/hollon-ai-sub003/internal/delegate"
	"github.com/pbc1017/hollon-ai-sub003/internal/depgraph"
	"github.com/pbc1017/hollon-ai-sub003/internal/pool"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/internal/workspace"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// Cycle is one worker's control-loop body: pull a task, then execute or
// delegate it, and record the outcome. Team epics never reach a cycle;
// the Runner distributes them before they become claimable.
type Cycle struct {
	pool       *pool.Pool
	resolver   *depgraph.Resolver
	delegator  *delegate.Engine
	provider   brain.Provider
	tasks      store.TaskStore
	workers    store.WorkerStore
	workspaces workspace.Provider
	emitter    *EventEmitter
}

// CycleConfig collects a Cycle's collaborators.
type CycleConfig struct {
	Pool       *pool.Pool
	Resolver   *depgraph.Resolver
	Delegator  *delegate.Engine
	Provider   brain.Provider
	Tasks      store.TaskStore
	Workers    store.WorkerStore
	Workspaces workspace.Provider
	Emitter    *EventEmitter
}

// NewCycle creates a Cycle.
func NewCycle(cfg CycleConfig) *Cycle {
	return &Cycle{
		pool:       cfg.Pool,
		resolver:   cfg.Resolver,
		delegator:  cfg.Delegator,
		provider:   cfg.Provider,
		tasks:      cfg.Tasks,
		workers:    cfg.Workers,
		workspaces: cfg.Workspaces,
		emitter:    cfg.Emitter,
	}
}

// RunOnce executes one iteration for the given worker. It returns true
// when a task was claimed and handled, false when the worker found
// nothing to do.
func (c *Cycle) RunOnce(ctx context.Context, workerID string) (bool, error) {
	res, err := c.pool.PullNextTask(workerID)
	if err != nil {
		return false, err
	}
	if res.Task == nil {
		return false, nil
	}
	task := res.Task

	c.emit(Event{Type: EventTaskClaimed, TaskID: task.ID, TaskTitle: task.Title, WorkerID: workerID})

	worker, err := c.workers.GetWorker(workerID)
	if err != nil {
		return true, fmt.Errorf("load worker %s: %w", workerID, err)
	}

	if c.delegator.IsComplex(task) && worker.Depth == 0 {
		return true, c.delegateTask(ctx, task, workerID)
	}
	return true, c.executeTask(ctx, task, worker)
}

// delegateTask splits a complex task across temporary sub-workers.
func (c *Cycle) delegateTask(ctx context.Context, task *models.Task, workerID string) error {
	result, err := c.delegator.Delegate(ctx, task.ID, workerID)
	if err != nil {
		return c.fail(task, workerID, err)
	}

	for _, w := range result.Workers {
		c.emit(Event{Type: EventWorkerCreated, WorkerID: w.ID, Message: w.Name})
	}
	c.emit(Event{
		Type: EventTaskDelegated, TaskID: task.ID, TaskTitle: task.Title, WorkerID: workerID,
		Message: fmt.Sprintf("%d subtasks", len(result.Subtasks)),
	})
	return nil
}

// executeTask runs the task in an isolated workspace via the provider.
func (c *Cycle) executeTask(ctx context.Context, task *models.Task, worker *models.Worker) error {
	var ws *workspace.Workspace
	if c.workspaces != nil {
		var err error
		ws, err = c.workspaces.Create(worker.ID, task.ID)
		if err != nil {
			return c.fail(task, worker.ID, fmt.Errorf("create workspace: %w", err))
		}
		defer func() {
			if err := c.workspaces.Remove(ws.Path); err != nil {
				log.Printf("[orchestrator] remove workspace %s: %v", ws.Path, err)
			}
		}()
	}

	result, err := c.provider.Execute(ctx, task, worker)
	if err != nil {
		return c.fail(task, worker.ID, err)
	}
	if !result.Success {
		reason := result.FailureReason
		if reason == "" {
			reason = result.Summary
		}
		return c.fail(task, worker.ID, fmt.Errorf("%s", reason))
	}

	// Persist the files the provider touched before completion, which
	// rereads the row.
	if len(result.FilesChanged) > 0 {
		task.AffectedFiles = result.FilesChanged
		if err := c.tasks.UpdateTask(task); err != nil {
			return fmt.Errorf("record affected files of %s: %w", task.ID, err)
		}
	}

	if err := c.pool.CompleteTask(task.ID); err != nil {
		return fmt.Errorf("complete task %s: %w", task.ID, err)
	}
	c.emit(Event{Type: EventTaskCompleted, TaskID: task.ID, TaskTitle: task.Title, WorkerID: worker.ID, Message: result.Summary})

	// Completion may unblock siblings and complete the parent chain.
	if task.ParentTaskID != "" {
		if _, err := c.resolver.CheckAndUnblockDependencies(task.ParentTaskID); err != nil {
			return fmt.Errorf("unblock dependents of %s: %w", task.ID, err)
		}
	}
	if err := c.resolver.UpdateParentTaskStatus(task.ID); err != nil {
		return fmt.Errorf("roll up parent of %s: %w", task.ID, err)
	}
	return nil
}

// fail routes any handling error through the pool's backoff path.
// The original error is reported via events, not returned: a failed
// task is an expected condition for the loop.
func (c *Cycle) fail(task *models.Task, workerID string, cause error) error {
	if err := c.pool.FailTask(task.ID, cause.Error()); err != nil {
		return fmt.Errorf("fail task %s: %w (cause: %v)", task.ID, err, cause)
	}
	c.emit(Event{Type: EventTaskFailed, TaskID: task.ID, TaskTitle: task.Title, WorkerID: workerID, Error: cause})
	return nil
}

func (c *Cycle) emit(e Event) {
	if c.emitter != nil {
		c.emitter.Emit(e)
	}
}
