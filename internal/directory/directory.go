// Package directory resolves the organizational structure around a
// worker: its team, its manager, team membership, and the organization
// owner at the top of the reporting chain.
package directory

import (
	"errors"
	"fmt"

	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

var (
	// ErrNoManager is returned when a worker has no manager to escalate to.
	ErrNoManager = errors.New("worker has no manager")
	// ErrNoOwner is returned when the organization has no owner worker.
	ErrNoOwner = errors.New("organization has no owner")
)

// Directory answers structural questions over the worker and team stores.
type Directory struct {
	workers store.WorkerStore
	teams   store.TeamStore
}

// New creates a Directory over the given stores.
func New(workers store.WorkerStore, teams store.TeamStore) *Directory {
	return &Directory{workers: workers, teams: teams}
}

// ManagerOf returns the manager of the given worker. For temporary
// workers with no explicit manager, the creating hollon acts as manager.
func (d *Directory) ManagerOf(workerID string) (*models.Worker, error) {
	w, err := d.workers.GetWorker(workerID)
	if err != nil {
		return nil, fmt.Errorf("load worker %s: %w", workerID, err)
	}

	managerID := w.ManagerID
	if managerID == "" && w.Lifecycle == models.LifecycleTemporary {
		managerID = w.CreatedByHollonID
	}
	if managerID == "" {
		return nil, ErrNoManager
	}

	mgr, err := d.workers.GetWorker(managerID)
	if err != nil {
		return nil, fmt.Errorf("load manager %s: %w", managerID, err)
	}
	return mgr, nil
}

// TeamOf returns the team the worker belongs to, or nil if it has none.
func (d *Directory) TeamOf(workerID string) (*models.Team, error) {
	w, err := d.workers.GetWorker(workerID)
	if err != nil {
		return nil, fmt.Errorf("load worker %s: %w", workerID, err)
	}
	if w.TeamID == "" {
		return nil, nil
	}

	team, err := d.teams.GetTeam(w.TeamID)
	if err != nil {
		return nil, fmt.Errorf("load team %s: %w", w.TeamID, err)
	}
	return team, nil
}

// MembersOf returns the permanent members of a team. Temporary workers
// are excluded: they belong to their creator, not to the team roster.
func (d *Directory) MembersOf(teamID string) ([]*models.Worker, error) {
	all, err := d.workers.ListWorkersByTeam(teamID)
	if err != nil {
		return nil, fmt.Errorf("list team %s members: %w", teamID, err)
	}

	members := make([]*models.Worker, 0, len(all))
	for _, w := range all {
		if w.Lifecycle == models.LifecyclePermanent {
			members = append(members, w)
		}
	}
	return members, nil
}

// TeamManager returns the manager hollon of a team.
func (d *Directory) TeamManager(teamID string) (*models.Worker, error) {
	team, err := d.teams.GetTeam(teamID)
	if err != nil {
		return nil, fmt.Errorf("load team %s: %w", teamID, err)
	}
	if team.ManagerHollonID == "" {
		return nil, ErrNoManager
	}

	mgr, err := d.workers.GetWorker(team.ManagerHollonID)
	if err != nil {
		return nil, fmt.Errorf("load manager %s: %w", team.ManagerHollonID, err)
	}
	return mgr, nil
}

// OrganizationOwner returns the top of the reporting chain: the first
// permanent root-level worker with no manager of its own.
func (d *Directory) OrganizationOwner(orgID string) (*models.Worker, error) {
	all, err := d.workers.ListWorkersByOrg(orgID)
	if err != nil {
		return nil, fmt.Errorf("list org %s workers: %w", orgID, err)
	}

	for _, w := range all {
		if w.Lifecycle == models.LifecyclePermanent && w.Depth == 0 && w.ManagerID == "" {
			return w, nil
		}
	}
	return nil, ErrNoOwner
}
