// Package distribute fans a Team Epic out to the team's existing
// members. Unlike delegation it never spawns workers; it only assigns
// planned subtasks among the current roster.
package distribute

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pbc1017/hollon-ai-sub003/internal/brain"
	"github.com/pbc1017/hollon-ai-sub003/internal/directory"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

var (
	// ErrNotTeamEpic is returned when the task is not a distributable
	// depth-0 team epic.
	ErrNotTeamEpic = errors.New("task is not a team epic")
	// ErrEmptyTeam is returned when the epic's team has no members.
	ErrEmptyTeam = errors.New("team has no members to distribute to")
)

// Result reports what a distribution created.
type Result struct {
	// Tasks are the created member tasks, in plan order.
	Tasks []*models.Task
}

// Distributor turns team epics into member-assigned task graphs.
type Distributor struct {
	tasks    store.TaskStore
	dir      *directory.Directory
	provider brain.Provider
	now      func() time.Time
}

// Option customizes a Distributor.
type Option func(*Distributor)

// WithClock overrides the distributor's time source.
func WithClock(now func() time.Time) Option {
	return func(d *Distributor) { d.now = now }
}

// New creates a Distributor.
func New(tasks store.TaskStore, dir *directory.Directory, provider brain.Provider, opts ...Option) *Distributor {
	d := &Distributor{
		tasks:    tasks,
		dir:      dir,
		provider: provider,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DistributeToTeam plans the epic against the team's member skills and
// creates one depth-1 task per plan spec, each assigned to a member.
// The epic moves to IN_PROGRESS. Provider failures are returned to the
// caller for the usual backoff path.
func (d *Distributor) DistributeToTeam(ctx context.Context, epicID string) (*Result, error) {
	epic, err := d.tasks.GetTask(epicID)
	if err != nil {
		return nil, fmt.Errorf("load epic %s: %w", epicID, err)
	}
	if epic.Depth != 0 || epic.AssignedTeamID == "" || epic.AssignedHollonID != "" {
		return nil, ErrNotTeamEpic
	}

	members, err := d.dir.MembersOf(epic.AssignedTeamID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrEmptyTeam
	}

	// The manager fronts the planning call; its skills are not offered
	// for assignment unless it is also a member.
	if _, err := d.dir.TeamManager(epic.AssignedTeamID); err != nil && !errors.Is(err, directory.ErrNoManager) {
		return nil, err
	}

	planMembers := make([]brain.Member, len(members))
	memberByID := make(map[string]*models.Worker, len(members))
	for i, m := range members {
		planMembers[i] = brain.Member{HollonID: m.ID, Name: m.Name, Skills: m.Skills}
		memberByID[m.ID] = m
	}

	plan, err := d.provider.Decompose(ctx, brain.DecomposeRequest{
		Task:    epic,
		Members: planMembers,
	})
	if err != nil {
		return nil, fmt.Errorf("plan epic %s: %w", epicID, err)
	}

	tasks, err := d.buildTasks(plan, epic, memberByID)
	if err != nil {
		return nil, err
	}

	if err := d.tasks.CreateTasks(tasks); err != nil {
		return nil, fmt.Errorf("create member tasks for %s: %w", epicID, err)
	}

	epic.Status = models.TaskStatusInProgress
	if err := d.tasks.UpdateTask(epic); err != nil {
		return nil, fmt.Errorf("mark epic %s in progress: %w", epicID, err)
	}

	log.Printf("[distribute] epic %s fanned out to %d tasks across team %s",
		epicID, len(tasks), epic.AssignedTeamID)

	return &Result{Tasks: tasks}, nil
}

// buildTasks resolves plan specs into member-assigned task rows.
// Exclusivity holds: member tasks carry assignedHollonID only, never
// the epic's team.
func (d *Distributor) buildTasks(plan *brain.Plan, epic *models.Task, memberByID map[string]*models.Worker) ([]*models.Task, error) {
	idByTitle := make(map[string]string, len(plan.Subtasks))
	for _, spec := range plan.Subtasks {
		idByTitle[strings.TrimSpace(spec.Title)] = uuid.New().String()
	}

	now := d.now()
	tasks := make([]*models.Task, 0, len(plan.Subtasks))
	for i, spec := range plan.Subtasks {
		assignee := strings.TrimSpace(spec.AssigneeHollonID)
		if _, ok := memberByID[assignee]; !ok {
			if assignee != "" {
				return nil, fmt.Errorf("plan assigns %q to unknown member %q", spec.Title, assignee)
			}
			// Unassigned specs rotate through the roster.
			assignee = rosterAt(memberByID, i)
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
			priority = epic.Priority
		}

		tasks = append(tasks, &models.Task{
			ID:                  idByTitle[strings.TrimSpace(spec.Title)],
			OrganizationID:      epic.OrganizationID,
			ProjectID:           epic.ProjectID,
			ParentTaskID:        epic.ID,
			Depth:               1,
			Type:                taskType,
			Title:               spec.Title,
			Description:         spec.Description,
			Status:              status,
			Priority:            priority,
			AssignedHollonID:    assignee,
			Dependencies:        deps,
			EstimatedComplexity: spec.EstimatedComplexity,
			StoryPoints:         spec.StoryPoints,
			RequiredSkills:      spec.Skills,
			CreatedAt:           now,
		})
	}
	return tasks, nil
}

// rosterAt returns a stable member for the i-th unassigned spec.
func rosterAt(memberByID map[string]*models.Worker, i int) string {
	ids := make([]string, 0, len(memberByID))
	for id := range memberByID {
		ids = append(ids, id)
	}
	// Map order is random; sort for determinism.
	sort.Strings(ids)
	return ids[i%len(ids)]
}
