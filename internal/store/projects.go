package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.created_by, m.role,
			(SELECT COUNT(*) FROM boards b WHERE b.project_id = p.id),
			p.created_at,
			GREATEST(p.updated_at, COALESCE((SELECT MAX(b.updated_at) FROM boards b WHERE b.project_id = p.id), p.updated_at))
		FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = $1
		ORDER BY 8 DESC, p.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.CreatedBy, &item.Role, &item.BoardCount, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

// CreateProject inserts the project and makes its creator the owner.
func (s *PostgresStore) CreateProject(ctx context.Context, project Project) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, description, created_by) VALUES ($1, $2, $3, $4)
		`, project.ID, project.Name, project.Description, project.CreatedBy); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_members (project_id, user_id, role) VALUES ($1, $2, 'owner')
		`, project.ID, project.CreatedBy); err != nil {
			return fmt.Errorf("insert project owner: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_by,
			(SELECT COUNT(*) FROM boards b WHERE b.project_id = projects.id),
			created_at, updated_at
		FROM projects WHERE id=$1
	`, projectID).Scan(&item.ID, &item.Name, &item.Description, &item.CreatedBy, &item.BoardCount, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, projectID, name, description string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, projectID, name, description)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireAffected(res)
}

// DeleteProject removes the project with its boards and memberships.
func (s *PostgresStore) DeleteProject(ctx context.Context, projectID string) (Removed, error) {
	var removed Removed
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT id FROM projects WHERE id=$1 FOR UPDATE`, projectID).Scan(new(string)); err != nil {
			return err
		}
		var err error
		removed, err = collectRemoved(ctx, tx, `board_id IN (SELECT id FROM boards WHERE project_id=$1)`, projectID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, projectID); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return nil
	})
	if err != nil {
		return Removed{}, err
	}
	return removed, nil
}

// GetMemberRole returns sql.ErrNoRows when the user is not a member.
func (s *PostgresStore) GetMemberRole(ctx context.Context, projectID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM project_members WHERE project_id=$1 AND user_id=$2
	`, projectID, userID).Scan(&role)
	if err != nil {
		return "", err
	}
	return role, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, projectID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.project_id, m.user_id, u.display_name, u.email, m.role, m.created_at
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1
		ORDER BY m.created_at ASC, u.display_name ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]Member, 0)
	for rows.Next() {
		var item Member
		if err := rows.Scan(&item.ProjectID, &item.UserID, &item.DisplayName, &item.Email, &item.Role, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

// AddMember fails with ErrDuplicate when the user already belongs to the project.
func (s *PostgresStore) AddMember(ctx context.Context, projectID, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role) VALUES ($1, $2, $3)
	`, projectID, userID, role)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// SetMemberRole refuses to demote the last owner.
func (s *PostgresStore) SetMemberRole(ctx context.Context, projectID, userID, role string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockMember(ctx, tx, projectID, userID)
		if err != nil {
			return err
		}
		if current == "owner" && role != "owner" {
			if err := ensureAnotherOwner(ctx, tx, projectID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE project_members SET role=$3 WHERE project_id=$1 AND user_id=$2
		`, projectID, userID, role); err != nil {
			return fmt.Errorf("update member role: %w", err)
		}
		return nil
	})
}

// RemoveMember refuses to remove the last owner.
func (s *PostgresStore) RemoveMember(ctx context.Context, projectID, userID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockMember(ctx, tx, projectID, userID)
		if err != nil {
			return err
		}
		if current == "owner" {
			if err := ensureAnotherOwner(ctx, tx, projectID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM project_members WHERE project_id=$1 AND user_id=$2
		`, projectID, userID); err != nil {
			return fmt.Errorf("remove member: %w", err)
		}
		return nil
	})
}

func lockMember(ctx context.Context, tx *sql.Tx, projectID, userID string) (string, error) {
	// Serialise membership changes per project.
	if _, err := tx.ExecContext(ctx, `SELECT id FROM projects WHERE id=$1 FOR UPDATE`, projectID); err != nil {
		return "", fmt.Errorf("lock project: %w", err)
	}
	var role string
	err := tx.QueryRowContext(ctx, `
		SELECT role FROM project_members WHERE project_id=$1 AND user_id=$2
	`, projectID, userID).Scan(&role)
	if err != nil {
		return "", err
	}
	return role, nil
}

func ensureAnotherOwner(ctx context.Context, tx *sql.Tx, projectID string) error {
	var owners int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM project_members WHERE project_id=$1 AND role='owner'
	`, projectID).Scan(&owners); err != nil {
		return fmt.Errorf("count owners: %w", err)
	}
	if owners <= 1 {
		return ErrLastOwner
	}
	return nil
}

// ProjectIDsForUser lists every project the user can read.
func (s *PostgresStore) ProjectIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id FROM project_members WHERE user_id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list project ids: %w", err)
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
