// Package depgraph resolves task dependencies: it unblocks tasks whose
// dependencies have completed and rolls completion up the parent tree.
// Both operations recompute from current child state, so redundant
// concurrent triggers are harmless.
package depgraph

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// Resolver flips BLOCKED tasks to READY and rolls parent status up.
type Resolver struct {
	tasks store.TaskStore

	// onParentCompleted fires when a parent task is completed by rollup.
	// The delegation engine hooks its sub-worker cleanup here.
	onParentCompleted func(parentID string)

	now func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the resolver's time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithParentCompletedHook installs the callback fired after a parent task
// is completed by rollup.
func WithParentCompletedHook(fn func(parentID string)) Option {
	return func(r *Resolver) { r.onParentCompleted = fn }
}

// New creates a Resolver over the given task store.
func New(tasks store.TaskStore, opts ...Option) *Resolver {
	r := &Resolver{
		tasks: tasks,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckAndUnblockDependencies walks every BLOCKED descendant of the given
// task and flips it to READY when all of its declared dependencies are
// COMPLETED. Independent dependents unblock together; a task with several
// dependencies stays BLOCKED until the last one completes.
// Returns the IDs of tasks that were unblocked.
func (r *Resolver) CheckAndUnblockDependencies(parentTaskID string) ([]string, error) {
	descendants, err := r.descendants(parentTaskID)
	if err != nil {
		return nil, err
	}

	var unblocked []string
	for _, task := range descendants {
		if task.Status != models.TaskStatusBlocked {
			continue
		}

		ready, err := r.dependenciesSatisfied(task)
		if err != nil {
			return unblocked, err
		}
		if !ready {
			continue
		}

		task.Status = models.TaskStatusReady
		if err := r.tasks.UpdateTask(task); err != nil {
			return unblocked, fmt.Errorf("unblock task %s: %w", task.ID, err)
		}
		log.Printf("[depgraph] task %s unblocked", task.ID)
		unblocked = append(unblocked, task.ID)
	}

	return unblocked, nil
}

// UpdateParentTaskStatus recomputes the parent of the given task from its
// children: when every child is COMPLETED, the parent becomes COMPLETED and
// the rollup continues upward. The recomputation reads current child rows,
// never counters, so racing completions may each call this safely.
func (r *Resolver) UpdateParentTaskStatus(taskID string) error {
	task, err := r.tasks.GetTask(taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %s not found", taskID)
		}
		return fmt.Errorf("load task: %w", err)
	}
	if task.ParentTaskID == "" {
		return nil
	}

	parent, err := r.tasks.GetTask(task.ParentTaskID)
	if err != nil {
		return fmt.Errorf("load parent %s: %w", task.ParentTaskID, err)
	}
	if parent.Status == models.TaskStatusCompleted {
		return nil
	}

	children, err := r.tasks.ListTasksByParent(parent.ID)
	if err != nil {
		return fmt.Errorf("list children of %s: %w", parent.ID, err)
	}
	for _, child := range children {
		if child.Status != models.TaskStatusCompleted {
			return nil
		}
	}

	now := r.now()
	parent.Status = models.TaskStatusCompleted
	parent.CompletedAt = &now
	parent.ConsecutiveFailures = 0
	parent.BlockedUntil = nil
	parent.Error = ""
	if err := r.tasks.UpdateTask(parent); err != nil {
		return fmt.Errorf("complete parent %s: %w", parent.ID, err)
	}
	log.Printf("[depgraph] parent %s completed (%d children done)", parent.ID, len(children))

	if r.onParentCompleted != nil {
		r.onParentCompleted(parent.ID)
	}

	// A completed parent may itself unblock siblings and complete its own parent.
	if parent.ParentTaskID != "" {
		if _, err := r.CheckAndUnblockDependencies(parent.ParentTaskID); err != nil {
			return err
		}
	}
	return r.UpdateParentTaskStatus(parent.ID)
}

// CancelSubtree marks a task and all of its non-terminal descendants
// CANCELLED and drops their assignments. Administrative operation used for
// epic cancellation.
func (r *Resolver) CancelSubtree(taskID string) error {
	task, err := r.tasks.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}

	descendants, err := r.descendants(taskID)
	if err != nil {
		return err
	}

	for _, t := range append([]*models.Task{task}, descendants...) {
		if t.Status.Terminal() {
			continue
		}
		t.Status = models.TaskStatusCancelled
		t.AssignedHollonID = ""
		t.AssignedTeamID = ""
		if err := r.tasks.UpdateTask(t); err != nil {
			return fmt.Errorf("cancel task %s: %w", t.ID, err)
		}
	}
	return nil
}

// dependenciesSatisfied reports whether every dependency of the task is COMPLETED.
func (r *Resolver) dependenciesSatisfied(task *models.Task) (bool, error) {
	for _, depID := range task.Dependencies {
		dep, err := r.tasks.GetTask(depID)
		if err != nil {
			return false, fmt.Errorf("load dependency %s: %w", depID, err)
		}
		if dep.Status != models.TaskStatusCompleted {
			return false, nil
		}
	}
	return true, nil
}

// descendants returns every task below the given one, breadth-first.
func (r *Resolver) descendants(taskID string) ([]*models.Task, error) {
	var all []*models.Task
	queue := []string{taskID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		children, err := r.tasks.ListTasksByParent(id)
		if err != nil {
			return nil, fmt.Errorf("list children of %s: %w", id, err)
		}
		for _, child := range children {
			all = append(all, child)
			queue = append(queue, child.ID)
		}
	}
	return all, nil
}
