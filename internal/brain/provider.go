// Package brain provides the reasoning layer hollons use to decompose
// work and execute tasks. Implementations range from the Anthropic API
// to deterministic role templates used when no API is available.
package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/pbc1017/hollon-ai-sub003/internal/depgraph"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// Provider produces decomposition plans and executes individual tasks.
type Provider interface {
	// Decompose breaks a task into subtasks. For delegation the member
	// list is empty and the plan describes roles to spawn; for team
	// distribution the plan assigns subtasks to the given members.
	Decompose(ctx context.Context, req DecomposeRequest) (*Plan, error)

	// Execute performs the work of a single task on behalf of a worker.
	Execute(ctx context.Context, task *models.Task, worker *models.Worker) (*ExecutionResult, error)
}

// DecomposeRequest carries everything a provider needs to plan subtasks.
type DecomposeRequest struct {
	// Task is the parent task being broken down.
	Task *models.Task
	// MaxSubtasks caps the plan size. Zero means no cap.
	MaxSubtasks int
	// Members lists the team members available for assignment.
	// Empty when decomposing for delegation to new temporary workers.
	Members []Member
}

// Member describes a team member available to receive distributed work.
type Member struct {
	// HollonID is the member's worker ID.
	HollonID string
	// Name is the member's display name.
	Name string
	// Skills lists the member's declared skills.
	Skills []string
}

// Plan is the result of decomposing a task.
type Plan struct {
	// Subtasks lists the planned units of work in plan order.
	Subtasks []SubtaskSpec
}

// SubtaskSpec describes one planned subtask before it becomes a task row.
type SubtaskSpec struct {
	// Title is a short unique name; dependencies reference it.
	Title string `json:"title"`
	// Description explains the work to be done.
	Description string `json:"description"`
	// DependsOn lists titles of subtasks that must complete first.
	DependsOn []string `json:"depends_on"`
	// Type is the task type of the planned subtask.
	Type models.TaskType `json:"type"`
	// Priority is the planned subtask's priority, P1 highest.
	Priority models.Priority `json:"priority"`
	// RoleName names the worker role suited to this subtask.
	RoleName string `json:"role"`
	// AssigneeHollonID is set for team distribution plans only.
	AssigneeHollonID string `json:"assignee_hollon_id"`
	// Skills lists the skills the subtask requires.
	Skills []string `json:"skills"`
	// EstimatedComplexity is low, medium, or high.
	EstimatedComplexity models.Complexity `json:"estimated_complexity"`
	// StoryPoints estimates effort on the team's scale.
	StoryPoints int `json:"story_points"`
}

// ExecutionResult reports what happened when a worker executed a task.
type ExecutionResult struct {
	// Success indicates the task's acceptance criteria were met.
	Success bool
	// Summary describes the outcome in one or two sentences.
	Summary string
	// FilesChanged lists files modified during execution.
	FilesChanged []string
	// FailureReason is set when Success is false.
	FailureReason string
}

// Validate checks a plan for structural problems: empty plans, duplicate
// titles, dependencies on unknown titles, and dependency cycles.
func (p *Plan) Validate(maxSubtasks int) error {
	if len(p.Subtasks) == 0 {
		return fmt.Errorf("plan has no subtasks")
	}
	if maxSubtasks > 0 && len(p.Subtasks) > maxSubtasks {
		return fmt.Errorf("plan has %d subtasks, limit is %d", len(p.Subtasks), maxSubtasks)
	}

	seen := make(map[string]bool, len(p.Subtasks))
	for _, st := range p.Subtasks {
		title := strings.TrimSpace(st.Title)
		if title == "" {
			return fmt.Errorf("subtask with empty title")
		}
		if seen[title] {
			return fmt.Errorf("duplicate subtask title %q", title)
		}
		seen[title] = true
	}

	edges := make(map[string][]string, len(p.Subtasks))
	for _, st := range p.Subtasks {
		title := strings.TrimSpace(st.Title)
		edges[title] = nil
		for _, dep := range st.DependsOn {
			dep = strings.TrimSpace(dep)
			if !seen[dep] {
				return fmt.Errorf("subtask %q depends on unknown title %q", title, dep)
			}
			edges[title] = append(edges[title], dep)
		}
	}

	if err := depgraph.ValidateAcyclic(edges); err != nil {
		return fmt.Errorf("plan dependencies: %w", err)
	}
	return nil
}

// Ordered returns the subtask specs in dependency order, every spec
// after the specs it depends on. Plans that fail Validate come back in
// plan order unchanged.
func (p *Plan) Ordered() []SubtaskSpec {
	byTitle := make(map[string]SubtaskSpec, len(p.Subtasks))
	edges := make(map[string][]string, len(p.Subtasks))
	for _, st := range p.Subtasks {
		title := strings.TrimSpace(st.Title)
		byTitle[title] = st
		edges[title] = nil
		for _, dep := range st.DependsOn {
			edges[title] = append(edges[title], strings.TrimSpace(dep))
		}
	}

	order, err := depgraph.TopologicalOrder(edges)
	if err != nil || len(order) != len(p.Subtasks) {
		return p.Subtasks
	}
	out := make([]SubtaskSpec, 0, len(order))
	for _, title := range order {
		out = append(out, byTitle[title])
	}
	return out
}
