package services

import (
	"context"
	"strings"
	"time"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/internal/infrastructure/persistence"
	apperrors "github.com/promptcrm/backend/pkg/errors"
	"github.com/promptcrm/backend/pkg/utils"
)

// ProjectService manages project ownership. Every schema operation is scoped
// to a project, and only the owner may touch it.
type ProjectService struct {
	projects *persistence.ProjectRepository
}

// NewProjectService creates a new ProjectService
func NewProjectService(projects *persistence.ProjectRepository) *ProjectService {
	return &ProjectService{projects: projects}
}

// Create makes a new empty project owned by the user
func (s *ProjectService) Create(ctx context.Context, userID, name string) (*schema.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name", "project name is required")
	}

	project := &schema.Project{
		ID:        utils.GenerateID(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, apperrors.NewInternalError("failed to create project", err)
	}
	return project, nil
}

// RequireOwned returns the project iff it exists and the user owns it.
// A project owned by someone else reads as not found, not forbidden, so
// project IDs can't be probed.
func (s *ProjectService) RequireOwned(ctx context.Context, projectID, userID string) (*schema.Project, error) {
	if !utils.IsValidUUID(projectID) {
		return nil, apperrors.NewValidationError("projectId", "must be a valid UUID")
	}

	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query project", err)
	}
	if project == nil || project.UserID != userID {
		return nil, apperrors.NewNotFoundError("Project", projectID)
	}
	return project, nil
}

// List returns the user's projects, newest first
func (s *ProjectService) List(ctx context.Context, userID string) ([]*schema.Project, error) {
	return s.projects.ListByUser(ctx, userID)
}
