package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/promptcrm/backend/pkg/constants"
)

// InitializeSystemTables creates the pipeline's own tables if they do not
// exist. Tenant tables are created later by the Provisioner; these are the
// fixed rows it books its work into.
func InitializeSystemTables(ctx context.Context, db *sql.DB) error {
	statements := []struct {
		name string
		ddl  string
	}{
		{constants.TableUser, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, constants.TableUser)},
		{constants.TableProject, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL REFERENCES %s(id),
				name TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, constants.TableProject, constants.TableUser)},
		{constants.TableSchemaVersion, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				project_id UUID NOT NULL,
				user_id UUID NOT NULL,
				schema_version TEXT NOT NULL,
				schema_json JSONB NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, constants.TableSchemaVersion)},
		{constants.TableSchemaLock, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				project_id UUID NOT NULL UNIQUE,
				user_id UUID NOT NULL,
				locked_at TIMESTAMPTZ NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL
			)`, constants.TableSchemaLock)},
		{constants.TableDecisionTrace, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				project_id UUID NOT NULL,
				user_id UUID NOT NULL,
				kind TEXT NOT NULL DEFAULT 'generation',
				intent TEXT NOT NULL,
				action TEXT NOT NULL DEFAULT '',
				precedent TEXT NOT NULL DEFAULT '',
				version TEXT NOT NULL DEFAULT '',
				schema_before JSONB,
				schema_after JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, constants.TableDecisionTrace)},
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt.ddl); err != nil {
			return fmt.Errorf("failed to create system table %s: %w", stmt.name, err)
		}
	}

	// Supporting indexes for the hot lookup paths
	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_schema_version_project ON %s (project_id, is_active)`, constants.TableSchemaVersion),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_decision_trace_project ON %s (project_id, created_at)`, constants.TableDecisionTrace),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_decision_trace_user ON %s (user_id, created_at)`, constants.TableDecisionTrace),
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create system index: %w", err)
		}
	}

	// Shared trigger function that keeps updated_at current on tenant tables.
	// Tenant table triggers created by the Provisioner reference it.
	triggerFn := `
		CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
		BEGIN
			NEW.updated_at = now();
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`
	if _, err := db.ExecContext(ctx, triggerFn); err != nil {
		return fmt.Errorf("failed to create set_updated_at function: %w", err)
	}

	log.Println("✅ System tables initialized")
	return nil
}
