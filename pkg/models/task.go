package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has been created but not yet scheduled.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady indicates the task is eligible to be claimed by a worker.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusBlocked indicates the task is waiting on unmet dependencies.
	TaskStatusBlocked TaskStatus = "blocked"
	// TaskStatusInProgress indicates the task has been claimed and is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusInReview indicates the task output is awaiting review.
	TaskStatusInReview TaskStatus = "in_review"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed terminally.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled administratively.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusBlocked, TaskStatusInProgress,
		TaskStatusInReview, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// TaskType categorizes the kind of work a task represents.
type TaskType string

const (
	// TaskTypeTeamEpic is a depth-0 task assigned to a whole team.
	TaskTypeTeamEpic TaskType = "team_epic"
	// TaskTypeImplementation is a concrete coding task.
	TaskTypeImplementation TaskType = "implementation"
	// TaskTypeResearch is an investigation task.
	TaskTypeResearch TaskType = "research"
	// TaskTypeReview is a review of another task's output.
	TaskTypeReview TaskType = "review"
	// TaskTypeBugFix is a defect-correction task.
	TaskTypeBugFix TaskType = "bug_fix"
	// TaskTypeDocumentation is a documentation task.
	TaskTypeDocumentation TaskType = "documentation"
)

// Valid returns true if the type is a known value.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeTeamEpic, TaskTypeImplementation, TaskTypeResearch,
		TaskTypeReview, TaskTypeBugFix, TaskTypeDocumentation:
		return true
	default:
		return false
	}
}

// Priority is the scheduling priority of a task. P1 is the most urgent.
type Priority int

const (
	// PriorityP1 is the highest priority.
	PriorityP1 Priority = 1
	// PriorityP2 is high priority.
	PriorityP2 Priority = 2
	// PriorityP3 is normal priority.
	PriorityP3 Priority = 3
	// PriorityP4 is the lowest priority.
	PriorityP4 Priority = 4
)

// Valid returns true if the priority is in the P1..P4 range.
func (p Priority) Valid() bool {
	return p >= PriorityP1 && p <= PriorityP4
}

// Complexity is the estimated complexity of a task.
type Complexity string

const (
	// ComplexityLow means the task is straightforward.
	ComplexityLow Complexity = "low"
	// ComplexityMedium means the task requires moderate effort.
	ComplexityMedium Complexity = "medium"
	// ComplexityHigh means the task should be decomposed before execution.
	ComplexityHigh Complexity = "high"
)

// Task represents a unit of work in the system.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// OrganizationID is the organization this task belongs to.
	OrganizationID string `json:"organization_id"`
	// ProjectID is the project this task belongs to, if any.
	ProjectID string `json:"project_id,omitempty"`
	// ParentTaskID is the ID of the parent task, if any.
	ParentTaskID string `json:"parent_task_id,omitempty"`
	// Depth is the distance from the root of the task tree (0 = root).
	Depth int `json:"depth"`
	// Type categorizes the work.
	Type TaskType `json:"type"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// AcceptanceCriteria defines the criteria for task completion.
	AcceptanceCriteria string `json:"acceptance_criteria,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority is the scheduling priority (P1..P4).
	Priority Priority `json:"priority"`
	// AssignedHollonID is the worker this task is assigned to.
	// Mutually exclusive with AssignedTeamID.
	AssignedHollonID string `json:"assigned_hollon_id,omitempty"`
	// AssignedTeamID is the team this task is assigned to.
	// Mutually exclusive with AssignedHollonID.
	AssignedTeamID string `json:"assigned_team_id,omitempty"`
	// Dependencies lists task IDs that must complete before this task.
	Dependencies []string `json:"dependencies,omitempty"`
	// EstimatedComplexity is the complexity estimate used for delegation.
	EstimatedComplexity Complexity `json:"estimated_complexity,omitempty"`
	// StoryPoints is the effort estimate.
	StoryPoints int `json:"story_points,omitempty"`
	// RequiredSkills lists the skills needed to execute this task.
	RequiredSkills []string `json:"required_skills,omitempty"`
	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures,omitempty"`
	// LastFailedAt is when the task last failed, if ever.
	LastFailedAt *time.Time `json:"last_failed_at,omitempty"`
	// BlockedUntil is the backoff deadline before the task may be reclaimed.
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	// AffectedFiles lists paths the task is expected to modify.
	AffectedFiles []string `json:"affected_files,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task was completed, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Error contains the most recent failure reason, if any.
	Error string `json:"error,omitempty"`
}

// Validate checks the task's structural invariants.
func (t *Task) Validate() error {
	if t.AssignedHollonID != "" && t.AssignedTeamID != "" {
		return ErrBothAssignees
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if t.ParentTaskID == "" && t.Depth != 0 {
		return ErrDepthMismatch
	}
	return nil
}

// Claimable returns true if the task may be claimed at the given time.
// Only READY tasks whose backoff deadline has passed qualify.
func (t *Task) Claimable(now time.Time) bool {
	if t.Status != TaskStatusReady {
		return false
	}
	if t.BlockedUntil != nil && t.BlockedUntil.After(now) {
		return false
	}
	return true
}
