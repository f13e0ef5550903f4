package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// workerColumns is the column list used by every worker SELECT.
const workerColumns = `id, organization_id, team_id, role_id, name, status,
	lifecycle, depth, created_by_hollon_id, manager_id, skills,
	last_active_at, created_at`

// CreateWorker inserts a new worker after validating its invariants.
func (db *DB) CreateWorker(w *models.Worker) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("validate worker: %w", err)
	}

	_, err := db.Exec(`
		INSERT INTO workers (
			id, organization_id, team_id, role_id, name, status,
			lifecycle, depth, created_by_hollon_id, manager_id, skills,
			last_active_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		w.ID, w.OrganizationID, w.TeamID, w.RoleID, w.Name, string(w.Status),
		string(w.Lifecycle), w.Depth, w.CreatedByHollonID, w.ManagerID,
		encodeStrings(w.Skills), nullableTime(w.LastActiveAt), formatTime(w.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert worker %s: %w", w.ID, err)
	}
	return nil
}

// GetWorker returns the worker with the given ID, or sql.ErrNoRows if absent.
func (db *DB) GetWorker(id string) (*models.Worker, error) {
	row := db.QueryRow("SELECT "+workerColumns+" FROM workers WHERE id = ?", id)
	return scanWorker(row)
}

// UpdateWorker rewrites the mutable columns of the worker row.
func (db *DB) UpdateWorker(w *models.Worker) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("validate worker: %w", err)
	}

	res, err := db.Exec(`
		UPDATE workers SET
			team_id = ?, role_id = ?, status = ?, manager_id = ?,
			skills = ?, last_active_at = ?
		WHERE id = ?
	`,
		w.TeamID, w.RoleID, string(w.Status), w.ManagerID,
		encodeStrings(w.Skills), nullableTime(w.LastActiveAt),
		w.ID,
	)
	if err != nil {
		return fmt.Errorf("update worker %s: %w", w.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetWorkerStatus updates a worker's status and activity timestamp.
func (db *DB) SetWorkerStatus(id string, status models.WorkerStatus, now time.Time) error {
	if !status.Valid() {
		return models.ErrInvalidStatus
	}
	res, err := db.Exec(
		"UPDATE workers SET status = ?, last_active_at = ? WHERE id = ?",
		string(status), formatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("set worker status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteTemporaryWorker removes a temporary worker. It refuses to delete a
// permanent worker: that path is only for delegation cleanup.
func (db *DB) DeleteTemporaryWorker(id string) error {
	w, err := db.GetWorker(id)
	if err != nil {
		return fmt.Errorf("load worker %s: %w", id, err)
	}
	if w.Lifecycle != models.LifecycleTemporary {
		return models.ErrPermanentWorker
	}

	if _, err := db.Exec("DELETE FROM workers WHERE id = ? AND lifecycle = ?",
		id, string(models.LifecycleTemporary)); err != nil {
		return fmt.Errorf("delete worker %s: %w", id, err)
	}
	return nil
}

// ListWorkersByTeam returns all workers in the given team.
func (db *DB) ListWorkersByTeam(teamID string) ([]*models.Worker, error) {
	rows, err := db.Query(
		"SELECT "+workerColumns+" FROM workers WHERE team_id = ? ORDER BY created_at ASC",
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list workers by team: %w", err)
	}
	return collectWorkers(rows)
}

// ListWorkersByCreator returns the temporary workers spawned by a worker.
func (db *DB) ListWorkersByCreator(creatorID string) ([]*models.Worker, error) {
	rows, err := db.Query(
		"SELECT "+workerColumns+" FROM workers WHERE created_by_hollon_id = ? ORDER BY created_at ASC",
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list workers by creator: %w", err)
	}
	return collectWorkers(rows)
}

// ListWorkersByOrg returns all workers in the organization.
func (db *DB) ListWorkersByOrg(orgID string) ([]*models.Worker, error) {
	rows, err := db.Query(
		"SELECT "+workerColumns+" FROM workers WHERE organization_id = ? ORDER BY created_at ASC",
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list workers by org: %w", err)
	}
	return collectWorkers(rows)
}

// ListOrganizationIDs returns the distinct organization IDs that have
// at least one registered worker.
func (db *DB) ListOrganizationIDs() ([]string, error) {
	rows, err := db.Query("SELECT DISTINCT organization_id FROM workers ORDER BY organization_id ASC")
	if err != nil {
		return nil, fmt.Errorf("list organization ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan organization id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanWorker reads one worker row.
func scanWorker(s scanner) (*models.Worker, error) {
	var w models.Worker
	var teamID, roleID, createdBy, managerID, skills sql.NullString
	var lastActiveAt, createdAt sql.NullString
	var status, lifecycle string

	err := s.Scan(
		&w.ID, &w.OrganizationID, &teamID, &roleID, &w.Name, &status,
		&lifecycle, &w.Depth, &createdBy, &managerID, &skills,
		&lastActiveAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	w.TeamID = teamID.String
	w.RoleID = roleID.String
	w.Status = models.WorkerStatus(status)
	w.Lifecycle = models.Lifecycle(lifecycle)
	w.CreatedByHollonID = createdBy.String
	w.ManagerID = managerID.String
	w.Skills = decodeStrings(skills)
	w.LastActiveAt = parseNullableTime(lastActiveAt)
	if createdAt.Valid {
		if ts, err := parseTime(createdAt.String); err == nil {
			w.CreatedAt = ts
		}
	}

	return &w, nil
}

// collectWorkers drains rows into workers.
func collectWorkers(rows *sql.Rows) ([]*models.Worker, error) {
	defer rows.Close()

	var workers []*models.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}
