// Package escalate implements the five-level escalation ladder a
// worker climbs when it cannot make progress on a task.
package escalate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pbc1017/hollon-ai-sub003/internal/directory"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// Level identifies a rung on the escalation ladder.
type Level int

const (
	// LevelSelf is self-resolution; the worker keeps the task.
	LevelSelf Level = 1
	// LevelTeam hands the task back to the worker's team.
	LevelTeam Level = 2
	// LevelLeader assigns the task to the team's manager for review.
	LevelLeader Level = 3
	// LevelOrganization promotes the task to the organization owner.
	LevelOrganization Level = 4
	// LevelHuman halts automated progress and notifies a human.
	LevelHuman Level = 5
)

// Action optionally redirects an escalation.
type Action string

// ActionDecompose routes the task through decomposition instead of
// climbing the ladder.
const ActionDecompose Action = "decompose"

// ErrUnknownLevel is returned for a level outside 1..5.
var ErrUnknownLevel = errors.New("unknown escalation level")

// Request is a worker's "cannot make progress" signal.
type Request struct {
	// TaskID is the stuck task.
	TaskID string
	// WorkerID is the worker raising the escalation.
	WorkerID string
	// Level is the requested rung, 1 through 5.
	Level Level
	// Reason describes why the worker is stuck.
	Reason string
	// Action optionally redirects the escalation (only "decompose").
	Action Action
}

// Outcome reports how an escalation was resolved.
type Outcome struct {
	// Level is the rung that handled the request.
	Level Level
	// Task is the task after the escalation, nil for level 1.
	Task *models.Task
	// Decomposed is true when an ActionDecompose request was rerouted.
	Decomposed bool
	// HumanNotified is true when level 5 raised its notification.
	HumanNotified bool
}

// Decomposer routes decompose-action escalations for worker-held tasks.
type Decomposer interface {
	Delegate(ctx context.Context, parentTaskID, delegatorID string) error
}

// EpicDistributor routes decompose-action escalations for team epics.
type EpicDistributor interface {
	DistributeToTeam(ctx context.Context, epicID string) error
}

// Ladder executes escalation requests.
type Ladder struct {
	tasks       store.TaskStore
	workers     store.WorkerStore
	dir         *directory.Directory
	decomposer  Decomposer
	distributor EpicDistributor
	notify      func(r Request)
	now         func() time.Time
}

// Option customizes a Ladder.
type Option func(*Ladder)

// WithClock overrides the ladder's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ladder) { l.now = now }
}

// WithDecomposer wires the delegation path for decompose actions.
func WithDecomposer(d Decomposer) Option {
	return func(l *Ladder) { l.decomposer = d }
}

// WithDistributor wires the team distribution path for decompose
// actions against team epics.
func WithDistributor(d EpicDistributor) Option {
	return func(l *Ladder) { l.distributor = d }
}

// WithHumanNotifier replaces the level-5 notification hook.
// Delivery is fire-and-forget; the ladder never blocks on it.
func WithHumanNotifier(fn func(r Request)) Option {
	return func(l *Ladder) { l.notify = fn }
}

// New creates an escalation ladder.
func New(tasks store.TaskStore, workers store.WorkerStore, dir *directory.Directory, opts ...Option) *Ladder {
	l := &Ladder{
		tasks:   tasks,
		workers: workers,
		dir:     dir,
		now:     time.Now,
		notify: func(r Request) {
			log.Printf("[escalate] HUMAN INTERVENTION needed for task %s: %s", r.TaskID, r.Reason)
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Escalate handles one escalation request. Every transition preserves
// the rule that a task never carries both a worker and a team assignee.
func (l *Ladder) Escalate(ctx context.Context, req Request) (*Outcome, error) {
	if req.Action == ActionDecompose {
		return l.decompose(ctx, req)
	}

	switch req.Level {
	case LevelSelf:
		// The worker resolves it locally; nothing changes here.
		return &Outcome{Level: LevelSelf}, nil
	case LevelTeam:
		return l.toTeam(req)
	case LevelLeader:
		return l.toLeader(req)
	case LevelOrganization:
		return l.toOrganization(req)
	case LevelHuman:
		return l.toHuman(req)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, req.Level)
	}
}

// toTeam releases the task to the whole team: any teammate may claim it.
func (l *Ladder) toTeam(req Request) (*Outcome, error) {
	task, worker, err := l.load(req)
	if err != nil {
		return nil, err
	}
	if worker.TeamID == "" {
		return nil, fmt.Errorf("worker %s has no team to escalate to", req.WorkerID)
	}

	task.AssignedHollonID = ""
	task.AssignedTeamID = worker.TeamID
	task.Status = models.TaskStatusReady
	task.Error = req.Reason
	// A fresh owner starts with a clean slate: the failing worker's
	// backoff must not keep teammates from claiming the task.
	task.BlockedUntil = nil
	task.ConsecutiveFailures = 0
	if err := l.apply(task, req.WorkerID); err != nil {
		return nil, err
	}

	log.Printf("[escalate] task %s released to team %s by %s: %s",
		req.TaskID, worker.TeamID, req.WorkerID, req.Reason)
	return &Outcome{Level: LevelTeam, Task: task}, nil
}

// toLeader hands the task to the team manager for review.
func (l *Ladder) toLeader(req Request) (*Outcome, error) {
	task, worker, err := l.load(req)
	if err != nil {
		return nil, err
	}

	var manager *models.Worker
	if worker.TeamID != "" {
		manager, err = l.dir.TeamManager(worker.TeamID)
	} else {
		manager, err = l.dir.ManagerOf(worker.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve manager for %s: %w", req.WorkerID, err)
	}

	task.AssignedHollonID = manager.ID
	task.AssignedTeamID = ""
	task.Status = models.TaskStatusInReview
	task.Error = req.Reason
	if err := l.apply(task, req.WorkerID); err != nil {
		return nil, err
	}

	log.Printf("[escalate] task %s sent to manager %s for review: %s",
		req.TaskID, manager.ID, req.Reason)
	return &Outcome{Level: LevelLeader, Task: task}, nil
}

// toOrganization promotes the task to the organization owner.
func (l *Ladder) toOrganization(req Request) (*Outcome, error) {
	task, _, err := l.load(req)
	if err != nil {
		return nil, err
	}

	owner, err := l.dir.OrganizationOwner(task.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("resolve owner of org %s: %w", task.OrganizationID, err)
	}

	task.AssignedHollonID = owner.ID
	task.AssignedTeamID = ""
	task.Status = models.TaskStatusInReview
	task.Error = req.Reason
	if err := l.apply(task, req.WorkerID); err != nil {
		return nil, err
	}

	log.Printf("[escalate] task %s promoted to org owner %s: %s",
		req.TaskID, owner.ID, req.Reason)
	return &Outcome{Level: LevelOrganization, Task: task}, nil
}

// toHuman parks the task unassigned and raises the operator notification.
func (l *Ladder) toHuman(req Request) (*Outcome, error) {
	task, _, err := l.load(req)
	if err != nil {
		return nil, err
	}

	task.AssignedHollonID = ""
	task.AssignedTeamID = ""
	task.Status = models.TaskStatusInReview
	task.Error = req.Reason
	if err := l.apply(task, req.WorkerID); err != nil {
		return nil, err
	}

	l.notify(req)
	return &Outcome{Level: LevelHuman, Task: task, HumanNotified: true}, nil
}

// decompose reroutes the task through the decomposition paths: team
// epics fan out to their team, worker tasks delegate to sub-workers.
func (l *Ladder) decompose(ctx context.Context, req Request) (*Outcome, error) {
	task, err := l.tasks.GetTask(req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", req.TaskID, err)
	}

	if task.Depth == 0 && task.AssignedTeamID != "" && task.AssignedHollonID == "" {
		if l.distributor == nil {
			return nil, fmt.Errorf("no distributor wired for epic decomposition")
		}
		if err := l.distributor.DistributeToTeam(ctx, req.TaskID); err != nil {
			return nil, err
		}
	} else {
		if l.decomposer == nil {
			return nil, fmt.Errorf("no decomposer wired for task decomposition")
		}
		if err := l.decomposer.Delegate(ctx, req.TaskID, req.WorkerID); err != nil {
			return nil, err
		}
	}

	fresh, err := l.tasks.GetTask(req.TaskID)
	if err != nil {
		return nil, err
	}
	return &Outcome{Level: req.Level, Task: fresh, Decomposed: true}, nil
}

func (l *Ladder) load(req Request) (*models.Task, *models.Worker, error) {
	task, err := l.tasks.GetTask(req.TaskID)
	if err != nil {
		return nil, nil, fmt.Errorf("load task %s: %w", req.TaskID, err)
	}
	worker, err := l.workers.GetWorker(req.WorkerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load worker %s: %w", req.WorkerID, err)
	}
	return task, worker, nil
}

// apply persists the escalated task and idles the raising worker.
func (l *Ladder) apply(task *models.Task, workerID string) error {
	if err := l.tasks.UpdateTask(task); err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	if err := l.workers.SetWorkerStatus(workerID, models.WorkerStatusIdle, l.now()); err != nil {
		return fmt.Errorf("idle worker %s: %w", workerID, err)
	}
	return nil
}
