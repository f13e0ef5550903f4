package models

import "time"

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

const (
	// WorkerStatusIdle indicates the worker has no claimed task.
	WorkerStatusIdle WorkerStatus = "idle"
	// WorkerStatusWorking indicates the worker is executing a task.
	WorkerStatusWorking WorkerStatus = "working"
	// WorkerStatusReviewing indicates the worker is reviewing another task's output.
	WorkerStatusReviewing WorkerStatus = "reviewing"
	// WorkerStatusWaiting indicates the worker is blocked on an external event.
	WorkerStatusWaiting WorkerStatus = "waiting"
)

// Valid returns true if the status is a known value.
func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerStatusIdle, WorkerStatusWorking, WorkerStatusReviewing, WorkerStatusWaiting:
		return true
	default:
		return false
	}
}

// Lifecycle distinguishes long-lived workers from delegation-spawned ones.
type Lifecycle string

const (
	// LifecyclePermanent marks an org-provisioned, long-lived worker.
	LifecyclePermanent Lifecycle = "permanent"
	// LifecycleTemporary marks a worker spawned for a single delegation.
	LifecycleTemporary Lifecycle = "temporary"
)

// Valid returns true if the lifecycle is a known value.
func (l Lifecycle) Valid() bool {
	return l == LifecyclePermanent || l == LifecycleTemporary
}

// Worker represents an autonomous task-executing agent (a Hollon).
type Worker struct {
	// ID is the unique identifier for this worker.
	ID string `json:"id"`
	// OrganizationID is the organization this worker belongs to.
	OrganizationID string `json:"organization_id"`
	// TeamID is the team this worker belongs to.
	TeamID string `json:"team_id,omitempty"`
	// RoleID identifies the worker's role (backend, frontend, ...).
	RoleID string `json:"role_id,omitempty"`
	// Name is the human-readable worker name.
	Name string `json:"name"`
	// Status is the current state of the worker.
	Status WorkerStatus `json:"status"`
	// Lifecycle is permanent or temporary.
	Lifecycle Lifecycle `json:"lifecycle"`
	// Depth is 0 for permanent roots; temporary workers are always depth 1.
	Depth int `json:"depth"`
	// CreatedByHollonID is the worker that spawned this one, for temporary workers.
	// The creator owns the temporary worker's lifecycle.
	CreatedByHollonID string `json:"created_by_hollon_id,omitempty"`
	// ManagerID is the worker's direct manager, if any.
	ManagerID string `json:"manager_id,omitempty"`
	// Skills lists the worker's skills, used for task matching.
	Skills []string `json:"skills,omitempty"`
	// LastActiveAt is updated on every pull, completion or failure.
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	// CreatedAt is when the worker was provisioned or spawned.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the worker's structural invariants.
func (w *Worker) Validate() error {
	if !w.Status.Valid() {
		return ErrInvalidStatus
	}
	if !w.Lifecycle.Valid() {
		return ErrInvalidLifecycle
	}
	if w.Lifecycle == LifecyclePermanent && w.Depth != 0 {
		return ErrDepthMismatch
	}
	if w.Lifecycle == LifecycleTemporary {
		if w.Depth != 1 {
			return ErrDepthLimit
		}
		if w.CreatedByHollonID == "" {
			return ErrOrphanTemporary
		}
	}
	return nil
}

// Team groups workers under a manager.
type Team struct {
	// ID is the unique identifier for this team.
	ID string `json:"id"`
	// OrganizationID is the organization this team belongs to.
	OrganizationID string `json:"organization_id"`
	// Name is the human-readable team name.
	Name string `json:"name"`
	// ManagerHollonID decomposes team epics for this team.
	ManagerHollonID string `json:"manager_hollon_id,omitempty"`
	// LeaderHollonID drives member manager-id sync.
	LeaderHollonID string `json:"leader_hollon_id,omitempty"`
}
