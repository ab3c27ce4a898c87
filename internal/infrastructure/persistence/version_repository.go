package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/pkg/constants"
)

// VersionRepository persists schema version rows. History is append-only:
// rows are inserted and flipped active/inactive, never rewritten.
type VersionRepository struct {
	db        *sql.DB
	txManager *TransactionManager
}

// NewVersionRepository creates a new VersionRepository
func NewVersionRepository(db *sql.DB, txManager *TransactionManager) *VersionRepository {
	return &VersionRepository{db: db, txManager: txManager}
}

// Activate inserts rec as the active version after deactivating all other
// rows for the project. Both writes happen in one transaction so the
// single-active invariant holds under concurrency.
func (r *VersionRepository) Activate(ctx context.Context, rec *schema.SchemaVersionRecord) error {
	schemaJSON, err := json.Marshal(rec.Schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	return r.txManager.WithTransaction(ctx, func(tx *sql.Tx) error {
		deactivate := fmt.Sprintf(
			`UPDATE %s SET is_active = FALSE WHERE project_id = $1 AND is_active = TRUE`,
			constants.TableSchemaVersion)
		if _, err := tx.ExecContext(ctx, deactivate, rec.ProjectID); err != nil {
			return fmt.Errorf("failed to deactivate versions: %w", err)
		}

		insert := fmt.Sprintf(`
			INSERT INTO %s (id, project_id, user_id, schema_version, schema_json, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		`, constants.TableSchemaVersion)
		if _, err := tx.ExecContext(ctx, insert,
			rec.ID, rec.ProjectID, rec.UserID, rec.SchemaVersion, schemaJSON, rec.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert version %s: %w", rec.SchemaVersion, err)
		}
		return nil
	})
}

// GetActive returns the project's active version, or nil when none exists
func (r *VersionRepository) GetActive(ctx context.Context, projectID string) (*schema.SchemaVersionRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, user_id, schema_version, schema_json, is_active, created_at
		FROM %s WHERE project_id = $1 AND is_active = TRUE
	`, constants.TableSchemaVersion)

	rec, err := r.scanOne(r.db.QueryRowContext(ctx, query, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// GetByVersion returns the row holding an exact version string, or nil
func (r *VersionRepository) GetByVersion(ctx context.Context, projectID, version string) (*schema.SchemaVersionRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, user_id, schema_version, schema_json, is_active, created_at
		FROM %s WHERE project_id = $1 AND schema_version = $2
		ORDER BY created_at DESC LIMIT 1
	`, constants.TableSchemaVersion)

	rec, err := r.scanOne(r.db.QueryRowContext(ctx, query, projectID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// VersionExists reports whether any row carries the exact version string
func (r *VersionRepository) VersionExists(ctx context.Context, projectID, version string) (bool, error) {
	query := fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE project_id = $1 AND schema_version = $2`,
		constants.TableSchemaVersion)

	var count int
	if err := r.db.QueryRowContext(ctx, query, projectID, version).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check version existence: %w", err)
	}
	return count > 0, nil
}

// List returns all version rows for a project, newest first
func (r *VersionRepository) List(ctx context.Context, projectID string) ([]*schema.SchemaVersionRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, user_id, schema_version, schema_json, is_active, created_at
		FROM %s WHERE project_id = $1 ORDER BY created_at DESC
	`, constants.TableSchemaVersion)

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*schema.SchemaVersionRecord
	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *VersionRepository) scanOne(row *sql.Row) (*schema.SchemaVersionRecord, error) {
	return r.scanRow(row)
}

func (r *VersionRepository) scanRow(row rowScanner) (*schema.SchemaVersionRecord, error) {
	var rec schema.SchemaVersionRecord
	var schemaJSON []byte
	if err := row.Scan(&rec.ID, &rec.ProjectID, &rec.UserID, &rec.SchemaVersion,
		&schemaJSON, &rec.IsActive, &rec.CreatedAt); err != nil {
		return nil, err
	}

	var s schema.Schema
	if err := json.Unmarshal(schemaJSON, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema_json for version %s: %w", rec.SchemaVersion, err)
	}
	rec.Schema = &s
	return &rec, nil
}
