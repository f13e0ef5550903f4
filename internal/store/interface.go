// Package store provides SQLite-based persistence for the Hollon engine.
package store

import (
	"io"
	"time"

	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// TaskStore handles task persistence, including dependency edges and the
// atomic claim primitive the Task Pool is built on.
type TaskStore interface {
	CreateTask(t *models.Task) error
	CreateTasks(tasks []*models.Task) error
	GetTask(id string) (*models.Task, error)
	UpdateTask(t *models.Task) error
	ClaimTask(taskID, workerID string, now time.Time) (bool, error)
	ListClaimCandidates(workerID, teamID string, now time.Time) ([]*models.Task, error)
	ListTasksByParent(parentID string) ([]*models.Task, error)
	ListTasksByStatus(status models.TaskStatus) ([]*models.Task, error)
	ListOpenTasksByAssignee(hollonID string) ([]*models.Task, error)
	ListDependents(taskID string) ([]*models.Task, error)
	InProgressAffectedFiles() (map[string]bool, error)
	CountTasksByStatus() (map[models.TaskStatus]int, error)
}

// WorkerStore handles worker-registry persistence operations.
type WorkerStore interface {
	CreateWorker(w *models.Worker) error
	GetWorker(id string) (*models.Worker, error)
	UpdateWorker(w *models.Worker) error
	SetWorkerStatus(id string, status models.WorkerStatus, now time.Time) error
	DeleteTemporaryWorker(id string) error
	ListWorkersByTeam(teamID string) ([]*models.Worker, error)
	ListWorkersByCreator(creatorID string) ([]*models.Worker, error)
	ListWorkersByOrg(orgID string) ([]*models.Worker, error)
	ListOrganizationIDs() ([]string, error)
}

// TeamStore handles team persistence operations.
type TeamStore interface {
	CreateTeam(t *models.Team) error
	GetTeam(id string) (*models.Team, error)
	UpdateTeam(t *models.Team) error
	ListTeamsByOrg(orgID string) ([]*models.Team, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the full persistence surface the engine packages depend on.
// It composes focused sub-interfaces so components can declare exactly the
// slice of storage they need.
type Store interface {
	io.Closer
	Migrator
	TaskStore
	WorkerStore
	TeamStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store       = (*DB)(nil)
	_ Migrator    = (*DB)(nil)
	_ TaskStore   = (*DB)(nil)
	_ WorkerStore = (*DB)(nil)
	_ TeamStore   = (*DB)(nil)
)
