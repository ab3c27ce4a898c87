package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/promptcrm/backend/internal/domain/schema"
	apperrors "github.com/promptcrm/backend/pkg/errors"
	"github.com/promptcrm/backend/pkg/utils"
)

// VersionStore is the persistence port for schema version rows. Activate
// must perform deactivate-all-then-activate-one atomically so at most one
// row per project is ever active.
type VersionStore interface {
	Activate(ctx context.Context, rec *schema.SchemaVersionRecord) error
	GetActive(ctx context.Context, projectID string) (*schema.SchemaVersionRecord, error)
	GetByVersion(ctx context.Context, projectID, version string) (*schema.SchemaVersionRecord, error)
	VersionExists(ctx context.Context, projectID, version string) (bool, error)
	List(ctx context.Context, projectID string) ([]*schema.SchemaVersionRecord, error)
}

// SchemaProvisioner is the provisioning port. Provision creates every table
// of a schema; Reconcile additively aligns live objects with a newer schema
// (missing tables created, added columns applied, nothing dropped).
type SchemaProvisioner interface {
	Provision(ctx context.Context, projectID string, s *schema.Schema) (*ProvisionResult, error)
	Reconcile(ctx context.Context, projectID string, live, next *schema.Schema) (*ProvisionResult, error)
}

// VersionService maintains the ordered set of schema versions per project
// and implements rollback. History is append-only: rolling back never
// rewrites rows, it activates old content under a new version number.
type VersionService struct {
	store       VersionStore
	provisioner SchemaProvisioner
	traces      *TraceService
}

// NewVersionService creates a new VersionService
func NewVersionService(store VersionStore, provisioner SchemaProvisioner, traces *TraceService) *VersionService {
	return &VersionService{store: store, provisioner: provisioner, traces: traces}
}

// GetActive returns the project's active version record, or nil
func (s *VersionService) GetActive(ctx context.Context, projectID string) (*schema.SchemaVersionRecord, error) {
	return s.store.GetActive(ctx, projectID)
}

// History returns all version rows for a project, newest first
func (s *VersionService) History(ctx context.Context, projectID string) ([]*schema.SchemaVersionRecord, error) {
	return s.store.List(ctx, projectID)
}

// ActivateNew inserts a schema as the new active version for a project. The
// schema's version is adjusted first so activation order stays strictly
// increasing: a candidate at or below the active version (a fresh design on
// a project with history proposes 1.0.0 regardless) is bumped to the next
// major of the active one, and collisions with historical rows are skipped.
func (s *VersionService) ActivateNew(ctx context.Context, projectID, userID string, sch *schema.Schema) (*schema.SchemaVersionRecord, error) {
	version, err := s.nextActivationVersion(ctx, projectID, sch.Version)
	if err != nil {
		return nil, err
	}
	sch.Version = version

	rec := &schema.SchemaVersionRecord{
		ID:            utils.GenerateID(),
		ProjectID:     projectID,
		UserID:        userID,
		SchemaVersion: sch.Version,
		Schema:        sch,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Activate(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Rollback reactivates the stored content of targetVersion under a new
// version number: the target's patch component incremented, skipping forward
// past any version string already taken so interleaved rollbacks can't
// collide. Live objects are additively reconciled against the target: tables
// it declares but the active schema lacks are created, columns it adds to
// shared tables are applied, and live tables absent from the target are left
// untouched (data is never dropped implicitly).
func (s *VersionService) Rollback(ctx context.Context, projectID, userID, targetVersion, reason string) (*schema.SchemaVersionRecord, error) {
	target, err := s.store.GetByVersion(ctx, projectID, targetVersion)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperrors.NewNotFoundError("Schema version", targetVersion)
	}

	current, err := s.store.GetActive(ctx, projectID)
	if err != nil {
		return nil, err
	}

	newVersion, err := s.nextRollbackVersion(ctx, projectID, targetVersion)
	if err != nil {
		return nil, err
	}

	// Restored content, new version number. The schema content of the target
	// row is carried over byte-for-byte apart from the version field.
	restored := *target.Schema
	restored.Version = newVersion

	// Reconcile the gap before activation so a provisioning failure never
	// leaves the new version marked active.
	if current != nil {
		if _, err := s.provisioner.Reconcile(ctx, projectID, current.Schema, &restored); err != nil {
			return nil, err
		}
	}

	rec := &schema.SchemaVersionRecord{
		ID:            utils.GenerateID(),
		ProjectID:     projectID,
		UserID:        userID,
		SchemaVersion: newVersion,
		Schema:        &restored,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Activate(ctx, rec); err != nil {
		return nil, err
	}

	trace := &schema.DecisionTrace{
		ProjectID:   projectID,
		UserID:      userID,
		Kind:        schema.TraceKindRollback,
		Intent:      reason,
		Action:      fmt.Sprintf("Rolled back to version %s as %s", targetVersion, newVersion),
		Precedent:   fmt.Sprintf("Restored stored content of version %s", targetVersion),
		Version:     newVersion,
		SchemaAfter: &restored,
	}
	if current != nil {
		trace.SchemaBefore = current.Schema
	}
	s.traces.Record(ctx, trace)

	log.Printf("↩️  Project %s rolled back to %s (new active version %s)", projectID, targetVersion, newVersion)
	return rec, nil
}

// nextActivationVersion keeps the per-project activation sequence advancing:
// candidates not strictly above the active version are replaced with the
// active version's next major, then walked past any collision with history.
func (s *VersionService) nextActivationVersion(ctx context.Context, projectID, candidate string) (string, error) {
	active, err := s.store.GetActive(ctx, projectID)
	if err != nil {
		return "", err
	}
	if active != nil && utils.CompareSemver(candidate, active.SchemaVersion) <= 0 {
		candidate, err = utils.BumpMajor(active.SchemaVersion)
		if err != nil {
			return "", apperrors.NewValidationError("version", err.Error())
		}
	}
	if !utils.IsValidSemver(candidate) {
		return "", apperrors.NewValidationError("version", fmt.Sprintf("'%s' is not a semver string", candidate))
	}
	return s.firstFreeVersion(ctx, projectID, candidate)
}

// nextRollbackVersion bumps the target's patch, then walks forward past any
// version string already present for the project.
func (s *VersionService) nextRollbackVersion(ctx context.Context, projectID, targetVersion string) (string, error) {
	candidate, err := utils.BumpPatch(targetVersion)
	if err != nil {
		return "", apperrors.NewValidationError("target_version", err.Error())
	}
	return s.firstFreeVersion(ctx, projectID, candidate)
}

// firstFreeVersion patch-bumps the candidate until it collides with nothing
// already recorded for the project.
func (s *VersionService) firstFreeVersion(ctx context.Context, projectID, candidate string) (string, error) {
	for {
		exists, err := s.store.VersionExists(ctx, projectID, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate, err = utils.BumpPatch(candidate)
		if err != nil {
			return "", err
		}
	}
}
