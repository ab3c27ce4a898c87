package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptcrm/backend/internal/domain/schema"
)

func testLock() *schema.SchemaLock {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &schema.SchemaLock{
		ID:        "lock-1",
		ProjectID: "project-1",
		UserID:    "alice",
		LockedAt:  now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
}

func TestLockInsert(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	lock := testLock()
	mock.ExpectExec(`INSERT INTO _system_schema_lock`).
		WithArgs(lock.ID, lock.ProjectID, lock.UserID, lock.LockedAt, lock.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewLockRepository(db)
	require.NoError(t, repo.Insert(context.Background(), lock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockInsertUniqueViolationIsErrLockExists(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	// Another writer got the project's row first
	mock.ExpectExec(`INSERT INTO _system_schema_lock`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "_system_schema_lock_project_id_key"})

	repo := NewLockRepository(db)
	err = repo.Insert(context.Background(), testLock())
	assert.ErrorIs(t, err, schema.ErrLockExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockInsertOtherErrorsStayWrapped(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO _system_schema_lock`).
		WillReturnError(errors.New("connection reset"))

	repo := NewLockRepository(db)
	err = repo.Insert(context.Background(), testLock())
	require.Error(t, err)
	assert.NotErrorIs(t, err, schema.ErrLockExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
