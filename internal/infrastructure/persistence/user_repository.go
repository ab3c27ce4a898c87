package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/pkg/constants"
)

// UserRepository persists identity rows
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *schema.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, constants.TableUser)

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByEmail returns the user with the given email, or nil
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*schema.User, error) {
	query := fmt.Sprintf(`
		SELECT id, name, email, password_hash, created_at
		FROM %s WHERE LOWER(email) = LOWER($1)
	`, constants.TableUser)

	var user schema.User
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}
