package store

import (
	"database/sql"
	"fmt"

	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// CreateTeam inserts a new team.
func (db *DB) CreateTeam(t *models.Team) error {
	_, err := db.Exec(`
		INSERT INTO teams (id, organization_id, name, manager_hollon_id, leader_hollon_id)
		VALUES (?, ?, ?, ?, ?)
	`, t.ID, t.OrganizationID, t.Name, t.ManagerHollonID, t.LeaderHollonID)
	if err != nil {
		return fmt.Errorf("insert team %s: %w", t.ID, err)
	}
	return nil
}

// GetTeam returns the team with the given ID, or sql.ErrNoRows if absent.
func (db *DB) GetTeam(id string) (*models.Team, error) {
	row := db.QueryRow(
		"SELECT id, organization_id, name, manager_hollon_id, leader_hollon_id FROM teams WHERE id = ?",
		id,
	)
	return scanTeam(row)
}

// UpdateTeam rewrites the mutable columns of the team row.
func (db *DB) UpdateTeam(t *models.Team) error {
	res, err := db.Exec(`
		UPDATE teams SET name = ?, manager_hollon_id = ?, leader_hollon_id = ?
		WHERE id = ?
	`, t.Name, t.ManagerHollonID, t.LeaderHollonID, t.ID)
	if err != nil {
		return fmt.Errorf("update team %s: %w", t.ID, err)
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

// ListTeamsByOrg returns all teams in the organization.
func (db *DB) ListTeamsByOrg(orgID string) ([]*models.Team, error) {
	rows, err := db.Query(
		"SELECT id, organization_id, name, manager_hollon_id, leader_hollon_id FROM teams WHERE organization_id = ? ORDER BY name ASC",
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list teams by org: %w", err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// scanTeam reads one team row.
func scanTeam(s scanner) (*models.Team, error) {
	var t models.Team
	var manager, leader sql.NullString

	if err := s.Scan(&t.ID, &t.OrganizationID, &t.Name, &manager, &leader); err != nil {
		return nil, err
	}

	t.ManagerHollonID = manager.String
	t.LeaderHollonID = leader.String
	return &t, nil
}
