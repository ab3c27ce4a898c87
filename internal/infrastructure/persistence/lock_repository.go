package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/pkg/constants"
)

// LockRepository persists per-project schema locks
type LockRepository struct {
	db *sql.DB
}

// NewLockRepository creates a new LockRepository
func NewLockRepository(db *sql.DB) *LockRepository {
	return &LockRepository{db: db}
}

// Get returns the lock row for a project, expired or not. Returns nil when
// no row exists.
func (r *LockRepository) Get(ctx context.Context, projectID string) (*schema.SchemaLock, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, user_id, locked_at, expires_at
		FROM %s WHERE project_id = $1
	`, constants.TableSchemaLock)

	var lock schema.SchemaLock
	err := r.db.QueryRowContext(ctx, query, projectID).Scan(
		&lock.ID, &lock.ProjectID, &lock.UserID, &lock.LockedAt, &lock.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query schema lock: %w", err)
	}
	return &lock, nil
}

// Insert creates a new lock row. A unique violation on project_id means a
// concurrent writer won the row; it surfaces as schema.ErrLockExists so the
// service can report the holder instead of a raw SQL error.
func (r *LockRepository) Insert(ctx context.Context, lock *schema.SchemaLock) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, user_id, locked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, constants.TableSchemaLock)

	_, err := r.db.ExecContext(ctx, query,
		lock.ID, lock.ProjectID, lock.UserID, lock.LockedAt, lock.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return schema.ErrLockExists
		}
		return fmt.Errorf("failed to insert schema lock: %w", err)
	}
	return nil
}

// UpdateExpiry extends an existing lock in place (same-owner re-acquire)
func (r *LockRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET expires_at = $1 WHERE id = $2`, constants.TableSchemaLock)
	_, err := r.db.ExecContext(ctx, query, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to extend schema lock: %w", err)
	}
	return nil
}

// DeleteOwned deletes a project's lock iff owned by the given user.
// Deleting a lock you don't own affects zero rows, which is not an error.
func (r *LockRepository) DeleteOwned(ctx context.Context, projectID, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE project_id = $1 AND user_id = $2`, constants.TableSchemaLock)
	_, err := r.db.ExecContext(ctx, query, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to release schema lock: %w", err)
	}
	return nil
}

// DeleteExpired purges all locks whose TTL passed before the given instant
func (r *LockRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, constants.TableSchemaLock)
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired locks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
