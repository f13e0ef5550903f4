package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// taskColumns is the column list used by every task SELECT.
const taskColumns = `id, organization_id, project_id, parent_task_id, depth, type,
	title, description, acceptance_criteria, status, priority,
	assigned_hollon_id, assigned_team_id, estimated_complexity, story_points,
	required_skills, consecutive_failures, last_failed_at, blocked_until,
	affected_files, created_at, completed_at, error`

// CreateTask inserts a new task and its dependency edges in one transaction.
// The task is validated first; an invalid task leaves no partial state.
func (db *DB) CreateTask(t *models.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate task: %w", err)
	}

	return db.Transaction(func(tx *sql.Tx) error {
		return insertTaskTx(tx, t)
	})
}

// CreateTasks inserts a batch of tasks and their dependency edges atomically.
// Either every task lands or none does; this is what keeps a partial
// decomposition from stranding a delegated parent.
func (db *DB) CreateTasks(tasks []*models.Task) error {
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("validate task %s: %w", t.ID, err)
		}
	}

	return db.Transaction(func(tx *sql.Tx) error {
		for _, t := range tasks {
			if err := insertTaskTx(tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// insertTaskTx inserts one task row plus its dependency edges.
func insertTaskTx(tx *sql.Tx, t *models.Task) error {
	_, err := tx.Exec(`
		INSERT INTO tasks (
			id, organization_id, project_id, parent_task_id, depth, type,
			title, description, acceptance_criteria, status, priority,
			assigned_hollon_id, assigned_team_id, estimated_complexity, story_points,
			required_skills, consecutive_failures, last_failed_at, blocked_until,
			affected_files, created_at, completed_at, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.OrganizationID, t.ProjectID, t.ParentTaskID, t.Depth, string(t.Type),
		t.Title, t.Description, t.AcceptanceCriteria, string(t.Status), int(t.Priority),
		t.AssignedHollonID, t.AssignedTeamID, string(t.EstimatedComplexity), t.StoryPoints,
		encodeStrings(t.RequiredSkills), t.ConsecutiveFailures, nullableTime(t.LastFailedAt),
		nullableTime(t.BlockedUntil), encodeStrings(t.AffectedFiles),
		formatTime(t.CreatedAt), nullableTime(t.CompletedAt), t.Error,
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}

	for _, depID := range t.Dependencies {
		if _, err := tx.Exec(
			"INSERT INTO task_deps (task_id, depends_on) VALUES (?, ?)",
			t.ID, depID,
		); err != nil {
			return fmt.Errorf("insert dependency %s -> %s: %w", t.ID, depID, err)
		}
	}

	return nil
}

// GetTask returns the task with the given ID, or sql.ErrNoRows if absent.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	deps, err := db.taskDependencies(id)
	if err != nil {
		return nil, err
	}
	t.Dependencies = deps
	return t, nil
}

// UpdateTask rewrites every mutable column of the task row.
// Dependency edges are not touched; they are immutable once created.
func (db *DB) UpdateTask(t *models.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate task: %w", err)
	}

	res, err := db.Exec(`
		UPDATE tasks SET
			status = ?, priority = ?, assigned_hollon_id = ?, assigned_team_id = ?,
			estimated_complexity = ?, story_points = ?, required_skills = ?,
			consecutive_failures = ?, last_failed_at = ?, blocked_until = ?,
			affected_files = ?, completed_at = ?, error = ?
		WHERE id = ?
	`,
		string(t.Status), int(t.Priority), t.AssignedHollonID, t.AssignedTeamID,
		string(t.EstimatedComplexity), t.StoryPoints, encodeStrings(t.RequiredSkills),
		t.ConsecutiveFailures, nullableTime(t.LastFailedAt), nullableTime(t.BlockedUntil),
		encodeStrings(t.AffectedFiles), nullableTime(t.CompletedAt), t.Error,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
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

// ClaimTask atomically transitions a READY task to IN_PROGRESS for the given
// worker. The conditional UPDATE only matches an unclaimed row, so among
// arbitrarily many concurrent callers exactly one wins; everyone else gets
// claimed=false and should move on to the next candidate.
func (db *DB) ClaimTask(taskID, workerID string, now time.Time) (bool, error) {
	res, err := db.Exec(`
		UPDATE tasks SET
			status = ?, assigned_hollon_id = ?, assigned_team_id = ''
		WHERE id = ?
		  AND status = ?
		  AND (blocked_until IS NULL OR blocked_until <= ?)
		  AND (assigned_hollon_id = ? OR (assigned_hollon_id = '' AND assigned_team_id != ''))
	`,
		string(models.TaskStatusInProgress), workerID,
		taskID,
		string(models.TaskStatusReady),
		formatTime(now),
		workerID,
	)
	if err != nil {
		return false, fmt.Errorf("claim task %s: %w", taskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ListClaimCandidates returns READY, non-backed-off tasks visible to the
// worker: directly assigned, or assigned to its team with no more specific
// assignee. Team epics are excluded; they are distributed, never claimed.
// Ordered by priority, then age.
func (db *DB) ListClaimCandidates(workerID, teamID string, now time.Time) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE status = ?
		  AND type != ?
		  AND (blocked_until IS NULL OR blocked_until <= ?)
		  AND (assigned_hollon_id = ? OR (assigned_team_id = ? AND assigned_hollon_id = ''))
		ORDER BY priority ASC, created_at ASC
	`, string(models.TaskStatusReady), string(models.TaskTypeTeamEpic), formatTime(now), workerID, teamID)
	if err != nil {
		return nil, fmt.Errorf("list claim candidates: %w", err)
	}
	return collectTasks(db, rows)
}

// ListTasksByParent returns the direct children of the given task.
func (db *DB) ListTasksByParent(parentID string) ([]*models.Task, error) {
	rows, err := db.Query(
		"SELECT "+taskColumns+" FROM tasks WHERE parent_task_id = ? ORDER BY created_at ASC",
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by parent: %w", err)
	}
	return collectTasks(db, rows)
}

// ListTasksByStatus returns all tasks with the given status.
func (db *DB) ListTasksByStatus(status models.TaskStatus) ([]*models.Task, error) {
	rows, err := db.Query(
		"SELECT "+taskColumns+" FROM tasks WHERE status = ? ORDER BY created_at ASC",
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	return collectTasks(db, rows)
}

// ListOpenTasksByAssignee returns the non-terminal tasks assigned to the
// given hollon. Used to decide whether a temporary worker is still needed.
func (db *DB) ListOpenTasksByAssignee(hollonID string) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE assigned_hollon_id = ?
		  AND status NOT IN (?, ?, ?)
		ORDER BY created_at ASC
	`, hollonID,
		string(models.TaskStatusCompleted),
		string(models.TaskStatusFailed),
		string(models.TaskStatusCancelled),
	)
	if err != nil {
		return nil, fmt.Errorf("list open tasks by assignee: %w", err)
	}
	return collectTasks(db, rows)
}

// ListDependents returns the tasks that declare a dependency on the given task.
func (db *DB) ListDependents(taskID string) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE id IN (SELECT task_id FROM task_deps WHERE depends_on = ?)
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	return collectTasks(db, rows)
}

// InProgressAffectedFiles returns the union of affected_files across all
// IN_PROGRESS tasks, used for file-affinity checks at claim time.
func (db *DB) InProgressAffectedFiles() (map[string]bool, error) {
	rows, err := db.Query(
		"SELECT affected_files FROM tasks WHERE status = ?",
		string(models.TaskStatusInProgress),
	)
	if err != nil {
		return nil, fmt.Errorf("list in-progress files: %w", err)
	}
	defer rows.Close()

	files := make(map[string]bool)
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan affected files: %w", err)
		}
		for _, f := range decodeStrings(raw) {
			files[f] = true
		}
	}
	return files, rows.Err()
}

// CountTasksByStatus returns a status -> count map over all tasks.
func (db *DB) CountTasksByStatus() (map[models.TaskStatus]int, error) {
	rows, err := db.Query("SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[models.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}

// taskDependencies returns the dependency IDs for one task.
func (db *DB) taskDependencies(taskID string) ([]string, error) {
	rows, err := db.Query("SELECT depends_on FROM task_deps WHERE task_id = ?", taskID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	var deps []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row.
func scanTask(s scanner) (*models.Task, error) {
	var t models.Task
	var projectID, parentID, taskType, description, criteria, complexity sql.NullString
	var requiredSkills, affectedFiles, taskErr sql.NullString
	var lastFailedAt, blockedUntil, createdAt, completedAt sql.NullString
	var status string
	var priority int

	err := s.Scan(
		&t.ID, &t.OrganizationID, &projectID, &parentID, &t.Depth, &taskType,
		&t.Title, &description, &criteria, &status, &priority,
		&t.AssignedHollonID, &t.AssignedTeamID, &complexity, &t.StoryPoints,
		&requiredSkills, &t.ConsecutiveFailures, &lastFailedAt, &blockedUntil,
		&affectedFiles, &createdAt, &completedAt, &taskErr,
	)
	if err != nil {
		return nil, err
	}

	t.ProjectID = projectID.String
	t.ParentTaskID = parentID.String
	t.Type = models.TaskType(taskType.String)
	t.Description = description.String
	t.AcceptanceCriteria = criteria.String
	t.Status = models.TaskStatus(status)
	t.Priority = models.Priority(priority)
	t.EstimatedComplexity = models.Complexity(complexity.String)
	t.RequiredSkills = decodeStrings(requiredSkills)
	t.AffectedFiles = decodeStrings(affectedFiles)
	t.Error = taskErr.String
	t.LastFailedAt = parseNullableTime(lastFailedAt)
	t.BlockedUntil = parseNullableTime(blockedUntil)
	t.CompletedAt = parseNullableTime(completedAt)
	if createdAt.Valid {
		if ts, err := parseTime(createdAt.String); err == nil {
			t.CreatedAt = ts
		}
	}

	return &t, nil
}

// collectTasks drains rows into tasks and attaches dependency edges.
func collectTasks(db *DB, rows *sql.Rows) ([]*models.Task, error) {
	var tasks []*models.Task
	var scanErr error
	func() {
		defer rows.Close()
		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				scanErr = err
				return
			}
			tasks = append(tasks, t)
		}
	}()
	if scanErr != nil {
		return nil, scanErr
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range tasks {
		deps, err := db.taskDependencies(t.ID)
		if err != nil {
			return nil, err
		}
		t.Dependencies = deps
	}
	return tasks, nil
}

// encodeStrings serializes a string slice as JSON for a TEXT column.
func encodeStrings(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

// decodeStrings deserializes a JSON string slice from a TEXT column.
func decodeStrings(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(s.String), &ss); err != nil {
		return nil
	}
	return ss
}
