// Package delegate implements bounded hierarchical delegation: a root
// worker breaks a complex task into a subtask tree executed by
// temporary sub-workers it owns.
package delegate

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pbc1017/hollon-ai-sub003/internal/brain"
	"github.com/pbc1017/hollon-ai-sub003/internal/config"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// Result reports what a delegation created.
type Result struct {
	// Subtasks are the created subtask rows, in plan order.
	Subtasks []*models.Task
	// Workers are the temporary workers spawned for the subtasks.
	Workers []*models.Worker
}

// Engine turns complex tasks into subtask trees run by temporary workers.
type Engine struct {
	tasks    store.TaskStore
	workers  store.WorkerStore
	provider brain.Provider
	fallback brain.Provider
	cfg      config.DelegationConfig
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithFallback sets the provider used when the primary one fails to
// produce a plan. Defaults to the built-in role templates, or the
// templates loaded from cfg.RoleTemplatePath when set.
func WithFallback(p brain.Provider) Option {
	return func(e *Engine) { e.fallback = p }
}

// New creates a delegation engine.
func New(tasks store.TaskStore, workers store.WorkerStore, provider brain.Provider, cfg config.DelegationConfig, opts ...Option) *Engine {
	e := &Engine{
		tasks:    tasks,
		workers:  workers,
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fallback == nil {
		e.fallback = defaultFallback(cfg.RoleTemplatePath)
	}
	return e
}

func defaultFallback(templatePath string) brain.Provider {
	if templatePath != "" {
		roles, err := brain.LoadRoleTemplates(templatePath)
		if err == nil {
			return brain.NewTemplateProvider(roles)
		}
		log.Printf("[delegate] role template %s unusable, using built-ins: %v", templatePath, err)
	}
	return brain.NewTemplateProvider(nil)
}

// IsComplex reports whether a task should be delegated rather than
// executed directly: high complexity, or story points above the
// threshold, or more required skills than the threshold.
func (e *Engine) IsComplex(t *models.Task) bool {
	if t.EstimatedComplexity == models.ComplexityHigh {
		return true
	}
	if t.StoryPoints > e.cfg.StoryPointThreshold {
		return true
	}
	return len(t.RequiredSkills) > e.cfg.SkillCountThreshold
}

// Delegate decomposes the parent task and spawns its subtask tree.
// Only depth-0 workers may delegate; the spawned workers sit at depth 1
// and are owned by the delegator. The subtask tree is created atomically
// so a failed decomposition never strands the parent.
func (e *Engine) Delegate(ctx context.Context, parentTaskID, delegatorID string) (*Result, error) {
	parent, err := e.tasks.GetTask(parentTaskID)
	if err != nil {
		return nil, fmt.Errorf("load parent task %s: %w", parentTaskID, err)
	}
	delegator, err := e.workers.GetWorker(delegatorID)
	if err != nil {
		return nil, fmt.Errorf("load delegator %s: %w", delegatorID, err)
	}
	if delegator.Depth != 0 {
		return nil, models.ErrNotRootWorker
	}

	plan, err := e.decompose(ctx, parent)
	if err != nil {
		return nil, err
	}

	workers, byRole, err := e.spawnWorkers(plan, parent, delegator)
	if err != nil {
		return nil, err
	}

	subtasks := e.buildSubtasks(plan, parent, byRole)
	if err := e.tasks.CreateTasks(subtasks); err != nil {
		// Unwind the spawned workers so a failed insert leaves nothing behind.
		for _, w := range workers {
			if derr := e.workers.DeleteTemporaryWorker(w.ID); derr != nil {
				log.Printf("[delegate] cleanup of worker %s after failed delegation: %v", w.ID, derr)
			}
		}
		return nil, fmt.Errorf("create subtasks for %s: %w", parentTaskID, err)
	}

	parent.Status = models.TaskStatusInProgress
	parent.AssignedHollonID = delegatorID
	parent.AssignedTeamID = ""
	if err := e.tasks.UpdateTask(parent); err != nil {
		return nil, fmt.Errorf("mark parent %s in progress: %w", parentTaskID, err)
	}

	// The delegator is free again; subtasks proceed on their own workers.
	if err := e.workers.SetWorkerStatus(delegatorID, models.WorkerStatusIdle, e.now()); err != nil {
		return nil, fmt.Errorf("idle delegator %s: %w", delegatorID, err)
	}

	log.Printf("[delegate] task %s split into %d subtasks across %d workers by %s",
		parentTaskID, len(subtasks), len(workers), delegatorID)

	return &Result{Subtasks: subtasks, Workers: workers}, nil
}

// decompose asks the primary provider for a plan, falling back to role
// templates when it fails. Provider failures are expected conditions.
func (e *Engine) decompose(ctx context.Context, parent *models.Task) (*brain.Plan, error) {
	req := brain.DecomposeRequest{Task: parent, MaxSubtasks: e.cfg.MaxSubWorkers}

	plan, err := e.provider.Decompose(ctx, req)
	if err == nil {
		return plan, nil
	}
	log.Printf("[delegate] decomposition of %s failed, using fallback: %v", parent.ID, err)

	plan, ferr := e.fallback.Decompose(ctx, req)
	if ferr != nil {
		return nil, fmt.Errorf("decompose %s: %w (fallback: %v)", parent.ID, err, ferr)
	}
	return plan, nil
}

// spawnWorkers creates one temporary worker per distinct role in the plan.
func (e *Engine) spawnWorkers(plan *brain.Plan, parent *models.Task, delegator *models.Worker) ([]*models.Worker, map[string]*models.Worker, error) {
	byRole := make(map[string]*models.Worker)
	var created []*models.Worker

	for _, spec := range plan.Subtasks {
		role := strings.TrimSpace(spec.RoleName)
		if role == "" {
			role = "worker"
		}
		if byRole[role] != nil {
			continue
		}

		w := &models.Worker{
			ID:                uuid.New().String(),
			OrganizationID:    parent.OrganizationID,
			TeamID:            delegator.TeamID,
			RoleID:            role,
			Name:              fmt.Sprintf("%s-%s", role, shortID()),
			Status:            models.WorkerStatusIdle,
			Lifecycle:         models.LifecycleTemporary,
			Depth:             delegator.Depth + 1,
			CreatedByHollonID: delegator.ID,
			ManagerID:         delegator.ID,
			Skills:            spec.Skills,
			CreatedAt:         e.now(),
		}
		if err := e.workers.CreateWorker(w); err != nil {
			for _, prev := range created {
				if derr := e.workers.DeleteTemporaryWorker(prev.ID); derr != nil {
					log.Printf("[delegate] cleanup of worker %s after failed spawn: %v", prev.ID, derr)
				}
			}
			return nil, nil, fmt.Errorf("spawn worker for role %s: %w", role, err)
		}
		byRole[role] = w
		created = append(created, w)
	}
	return created, byRole, nil
}

// buildSubtasks turns plan specs into task rows, resolving title
// dependencies to generated IDs. Rows are laid down in dependency
// order. Dependency-free subtasks start READY, the rest BLOCKED.
func (e *Engine) buildSubtasks(plan *brain.Plan, parent *models.Task, byRole map[string]*models.Worker) []*models.Task {
	idByTitle := make(map[string]string, len(plan.Subtasks))
	for _, spec := range plan.Subtasks {
		idByTitle[strings.TrimSpace(spec.Title)] = uuid.New().String()
	}

	now := e.now()
	subtasks := make([]*models.Task, 0, len(plan.Subtasks))
	for _, spec := range plan.Ordered() {
		role := strings.TrimSpace(spec.RoleName)
		if role == "" {
			role = "worker"
		}

		deps := make([]string, 0, len(spec.DependsOn))
		for _, title := range spec.DependsOn {
			deps = append(deps, idByTitle[strings.TrimSpace(title)])
		}

		status := models.TaskStatusReady
		if len(deps) > 0 {
			status = models.TaskStatusBlocked
		}

		taskType := spec.Type
		if taskType == "" {
			taskType = models.TaskTypeImplementation
		}
		priority := spec.Priority
		if priority == 0 {
			priority = parent.Priority
		}

		subtasks = append(subtasks, &models.Task{
			ID:                  idByTitle[strings.TrimSpace(spec.Title)],
			OrganizationID:      parent.OrganizationID,
			ProjectID:           parent.ProjectID,
			ParentTaskID:        parent.ID,
			Depth:               parent.Depth + 1,
			Type:                taskType,
			Title:               spec.Title,
			Description:         spec.Description,
			Status:              status,
			Priority:            priority,
			AssignedHollonID:    byRole[role].ID,
			Dependencies:        deps,
			EstimatedComplexity: spec.EstimatedComplexity,
			StoryPoints:         spec.StoryPoints,
			RequiredSkills:      spec.Skills,
			CreatedAt:           now,
		})
	}
	return subtasks
}

// CleanupForParent removes the temporary workers whose subtasks under
// the given parent are all finished and who hold no other open work.
// Safe to call repeatedly; intended as a parent-completed hook.
func (e *Engine) CleanupForParent(parentTaskID string) ([]string, error) {
	subtasks, err := e.tasks.ListTasksByParent(parentTaskID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks of %s: %w", parentTaskID, err)
	}

	seen := make(map[string]bool)
	var removed []string
	for _, st := range subtasks {
		id := st.AssignedHollonID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		w, err := e.workers.GetWorker(id)
		if err != nil {
			continue // already gone
		}
		if w.Lifecycle != models.LifecycleTemporary {
			continue
		}

		open, err := e.tasks.ListOpenTasksByAssignee(id)
		if err != nil {
			return removed, fmt.Errorf("check open tasks of %s: %w", id, err)
		}
		if len(open) > 0 {
			continue
		}

		if err := e.workers.DeleteTemporaryWorker(id); err != nil {
			return removed, fmt.Errorf("delete temporary worker %s: %w", id, err)
		}
		removed = append(removed, id)
	}

	// Escalation can move a subtask off the worker spawned for it, so
	// the delegator's idle leftovers are swept by creator as well.
	parent, err := e.tasks.GetTask(parentTaskID)
	if err == nil && parent.AssignedHollonID != "" {
		spawned, err := e.workers.ListWorkersByCreator(parent.AssignedHollonID)
		if err != nil {
			return removed, fmt.Errorf("list workers spawned by %s: %w", parent.AssignedHollonID, err)
		}
		for _, w := range spawned {
			if seen[w.ID] || w.Lifecycle != models.LifecycleTemporary {
				continue
			}
			seen[w.ID] = true

			open, err := e.tasks.ListOpenTasksByAssignee(w.ID)
			if err != nil {
				return removed, fmt.Errorf("check open tasks of %s: %w", w.ID, err)
			}
			if len(open) > 0 {
				continue
			}

			if err := e.workers.DeleteTemporaryWorker(w.ID); err != nil {
				return removed, fmt.Errorf("delete temporary worker %s: %w", w.ID, err)
			}
			removed = append(removed, w.ID)
		}
	}

	if len(removed) > 0 {
		log.Printf("[delegate] reclaimed %d temporary workers under %s", len(removed), parentTaskID)
	}
	return removed, nil
}

func shortID() string {
	return uuid.New().String()[:8]
}
