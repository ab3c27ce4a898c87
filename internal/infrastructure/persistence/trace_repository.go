package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/pkg/constants"
)

// TraceRepository persists decision traces. Rows are append-only: no update
// or delete path exists here on purpose.
type TraceRepository struct {
	db *sql.DB
}

// NewTraceRepository creates a new TraceRepository
func NewTraceRepository(db *sql.DB) *TraceRepository {
	return &TraceRepository{db: db}
}

// Insert appends one decision trace row
func (r *TraceRepository) Insert(ctx context.Context, trace *schema.DecisionTrace) error {
	before, err := marshalNullable(trace.SchemaBefore)
	if err != nil {
		return fmt.Errorf("failed to marshal schema_before: %w", err)
	}
	after, err := marshalNullable(trace.SchemaAfter)
	if err != nil {
		return fmt.Errorf("failed to marshal schema_after: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, user_id, kind, intent, action, precedent, version, schema_before, schema_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, constants.TableDecisionTrace)

	_, err = r.db.ExecContext(ctx, query,
		trace.ID, trace.ProjectID, trace.UserID, trace.Kind, trace.Intent, trace.Action,
		trace.Precedent, trace.Version, before, after, trace.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert decision trace: %w", err)
	}
	return nil
}

// ListByProject returns a project's traces, newest first
func (r *TraceRepository) ListByProject(ctx context.Context, projectID string) ([]*schema.DecisionTrace, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, user_id, kind, intent, action, precedent, version, schema_before, schema_after, created_at
		FROM %s WHERE project_id = $1 ORDER BY created_at DESC
	`, constants.TableDecisionTrace)

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decision traces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var traces []*schema.DecisionTrace
	for rows.Next() {
		var t schema.DecisionTrace
		var before, after []byte
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.UserID, &t.Kind, &t.Intent, &t.Action,
			&t.Precedent, &t.Version, &before, &after, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan decision trace: %w", err)
		}
		if t.SchemaBefore, err = unmarshalNullable(before); err != nil {
			return nil, err
		}
		if t.SchemaAfter, err = unmarshalNullable(after); err != nil {
			return nil, err
		}
		traces = append(traces, &t)
	}
	return traces, rows.Err()
}

// CountByUserSince counts a user's trace rows of one kind created at or
// after the given instant. Used for the daily generation quota.
func (r *TraceRepository) CountByUserSince(ctx context.Context, userID, kind string, since time.Time) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE user_id = $1 AND kind = $2 AND created_at >= $3`,
		constants.TableDecisionTrace)

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, kind, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count traces: %w", err)
	}
	return count, nil
}

func marshalNullable(s *schema.Schema) (interface{}, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func unmarshalNullable(data []byte) (*schema.Schema, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var s schema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace schema: %w", err)
	}
	return &s, nil
}
