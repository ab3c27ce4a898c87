package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/promptcrm/backend/internal/domain/schema"
	apperrors "github.com/promptcrm/backend/pkg/errors"
)

// ProvisionResult reports the physical objects a provisioning run created
type ProvisionResult struct {
	TablesCreated []string `json:"tables_created"`
	ColumnsAdded  []string `json:"columns_added,omitempty"`
}

// Provisioner translates a validated schema into live database objects:
// tables, row-level security policies, indexes and updated_at triggers.
// All statements for one call run inside a single transaction, so a
// mid-sequence failure leaves the database unchanged and the failing table
// is reported.
//
// DDL is assembled as text - no parameterized DDL exists in SQL - so every
// identifier is re-sanitized here even though the Validator already checked
// it. The Provisioner must not trust that all callers routed through the
// Validator.
type Provisioner struct {
	db *sql.DB
}

// NewProvisioner creates a new Provisioner
func NewProvisioner(db *sql.DB) *Provisioner {
	return &Provisioner{db: db}
}

// ddlBatch is the statement sequence for one logical table, tagged so a
// failure can name the table it happened on.
type ddlBatch struct {
	table      string
	statements []string
}

// Provision creates all tables of the schema for a project, in foreign-key
// topological order (referenced tables first).
func (p *Provisioner) Provision(ctx context.Context, projectID string, s *schema.Schema) (*ProvisionResult, error) {
	ordered, err := topoSortTables(s)
	if err != nil {
		return nil, apperrors.NewProvisioningError("", err)
	}

	var batches []ddlBatch
	var created []string
	for _, table := range ordered {
		physical, err := physicalTableName(projectID, table.Name)
		if err != nil {
			return nil, apperrors.NewProvisioningError(table.Name, err)
		}

		log.Printf("📐 Provisioning table: %s", physical)
		statements, err := buildTableStatements(projectID, s, table, physical)
		if err != nil {
			return nil, apperrors.NewProvisioningError(table.Name, err)
		}
		batches = append(batches, ddlBatch{table: table.Name, statements: statements})
		created = append(created, physical)
	}

	if err := p.runBatches(ctx, batches); err != nil {
		return nil, err
	}

	log.Printf("✅ Provisioned %d table(s) for project %s", len(created), projectID)
	return &ProvisionResult{TablesCreated: created}, nil
}

// Reconcile brings a project's live objects in line with next, additively:
// tables next declares but live lacks are created in full, and columns next
// adds to shared tables become ALTER TABLE ADD COLUMN. Nothing is ever
// dropped here. Like Provision, the whole sequence is one transaction.
func (p *Provisioner) Reconcile(ctx context.Context, projectID string, live, next *schema.Schema) (*ProvisionResult, error) {
	missing, altered := diffSchemas(live, next)

	sub := &schema.Schema{Version: next.Version, Tables: missing}
	ordered, err := topoSortTables(sub)
	if err != nil {
		return nil, apperrors.NewProvisioningError("", err)
	}

	var batches []ddlBatch
	var created, columnsAdded []string
	for _, table := range ordered {
		physical, err := physicalTableName(projectID, table.Name)
		if err != nil {
			return nil, apperrors.NewProvisioningError(table.Name, err)
		}

		log.Printf("📐 Provisioning table: %s", physical)
		// next, not sub: new tables may reference tables that are already live
		statements, err := buildTableStatements(projectID, next, table, physical)
		if err != nil {
			return nil, apperrors.NewProvisioningError(table.Name, err)
		}
		batches = append(batches, ddlBatch{table: table.Name, statements: statements})
		created = append(created, physical)
	}

	for _, alt := range altered {
		physical, err := physicalTableName(projectID, alt.table.Name)
		if err != nil {
			return nil, apperrors.NewProvisioningError(alt.table.Name, err)
		}

		log.Printf("📐 Altering table: %s (+%d column(s))", physical, len(alt.columns))
		statements, err := buildAddColumnStatements(projectID, next, physical, alt.columns)
		if err != nil {
			return nil, apperrors.NewProvisioningError(alt.table.Name, err)
		}
		batches = append(batches, ddlBatch{table: alt.table.Name, statements: statements})
		for _, col := range alt.columns {
			columnsAdded = append(columnsAdded, physical+"."+col.Name)
		}
	}

	if len(batches) == 0 {
		return &ProvisionResult{}, nil
	}
	if err := p.runBatches(ctx, batches); err != nil {
		return nil, err
	}

	log.Printf("✅ Reconciled project %s: %d new table(s), %d added column(s)", projectID, len(created), len(columnsAdded))
	return &ProvisionResult{TablesCreated: created, ColumnsAdded: columnsAdded}, nil
}

// runBatches executes every batch inside one transaction
func (p *Provisioner) runBatches(ctx context.Context, batches []ddlBatch) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewProvisioningError("", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	for _, batch := range batches {
		for _, stmt := range batch.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				log.Printf("❌ DDL failed for %s: %v", batch.table, err)
				return apperrors.NewProvisioningError(batch.table, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewProvisioningError("", fmt.Errorf("failed to commit provisioning transaction: %w", err))
	}
	return nil
}

// tableAlteration pairs a shared table with the columns next adds to it
type tableAlteration struct {
	table   schema.TableDefinition
	columns []schema.ColumnDefinition
}

// diffSchemas splits next into tables live lacks entirely and column
// additions to tables both sides share. Tables and columns live has but next
// dropped are ignored: reconciliation is strictly additive.
func diffSchemas(live, next *schema.Schema) ([]schema.TableDefinition, []tableAlteration) {
	var missing []schema.TableDefinition
	var altered []tableAlteration
	for _, t := range next.Tables {
		existing := live.Table(t.Name)
		if existing == nil {
			missing = append(missing, t)
			continue
		}
		var added []schema.ColumnDefinition
		for _, col := range t.Columns {
			if existing.Column(col.Name) == nil {
				added = append(added, col)
			}
		}
		if len(added) > 0 {
			altered = append(altered, tableAlteration{table: t, columns: added})
		}
	}
	return missing, altered
}

// Deprovision drops a project's tables in reverse dependency order. Used for
// cleanup of abandoned projects, never as part of normal rollback.
func (p *Provisioner) Deprovision(ctx context.Context, projectID string, s *schema.Schema) error {
	ordered, err := topoSortTables(s)
	if err != nil {
		return apperrors.NewProvisioningError("", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewProvisioningError("", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	// Referencing tables drop before their targets
	for i := len(ordered) - 1; i >= 0; i-- {
		physical, err := physicalTableName(projectID, ordered[i].Name)
		if err != nil {
			return apperrors.NewProvisioningError(ordered[i].Name, err)
		}
		log.Printf("🔥 Dropping table: %s", physical)
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(physical))); err != nil {
			return apperrors.NewProvisioningError(ordered[i].Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewProvisioningError("", fmt.Errorf("failed to commit deprovisioning transaction: %w", err))
	}
	return nil
}

// topoSortTables orders tables so referenced tables come before referencing
// ones. Self-references are ignored; an unresolvable cycle is an error here
// too, defensively - the Validator's cycle check is the primary gate.
func topoSortTables(s *schema.Schema) ([]schema.TableDefinition, error) {
	inSchema := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		inSchema[t.Name] = true
	}

	deps := make(map[string]map[string]bool)
	for _, t := range s.Tables {
		deps[t.Name] = make(map[string]bool)
		for _, col := range t.Columns {
			if col.References == nil {
				continue
			}
			target := col.References.Table
			if target == t.Name || !inSchema[target] {
				continue
			}
			deps[t.Name][target] = true
		}
	}

	var ordered []schema.TableDefinition
	placed := make(map[string]bool)
	remaining := len(s.Tables)

	for remaining > 0 {
		progressed := false
		for _, t := range s.Tables {
			if placed[t.Name] {
				continue
			}
			ready := true
			for dep := range deps[t.Name] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, t)
				placed[t.Name] = true
				remaining--
				progressed = true
			}
		}
		if !progressed {
			return nil, fmt.Errorf("foreign-key dependency cycle prevents provisioning order")
		}
	}

	return ordered, nil
}
