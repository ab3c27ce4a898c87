package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/pkg/constants"
)

// ProjectRepository persists project rows
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project
func (r *ProjectRepository) Create(ctx context.Context, project *schema.Project) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`, constants.TableProject)

	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.UserID, project.Name, project.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// Get returns the project with the given id, or nil
func (r *ProjectRepository) Get(ctx context.Context, id string) (*schema.Project, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, name, created_at FROM %s WHERE id = $1
	`, constants.TableProject)

	var project schema.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.UserID, &project.Name, &project.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return &project, nil
}

// ListByUser returns all projects owned by a user, newest first
func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]*schema.Project, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, name, created_at FROM %s
		WHERE user_id = $1 ORDER BY created_at DESC
	`, constants.TableProject)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*schema.Project
	for rows.Next() {
		var p schema.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}
