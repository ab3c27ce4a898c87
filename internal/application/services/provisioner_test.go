package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptcrm/backend/internal/domain/schema"
	apperrors "github.com/promptcrm/backend/pkg/errors"
)

const testProjectID = "a1b2c3d4-0000-0000-0000-000000000000"

func TestPhysicalTableName(t *testing.T) {
	name, err := physicalTableName(testProjectID, "properties")
	require.NoError(t, err)
	assert.Equal(t, "ws_a1b2c3d4_properties", name)
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"properties", "properties", false},
		{"  Showings ", "showings", false},
		{"my-table name", "my_table_name", false},
		{"users; DROP TABLE students", "users__drop_table_students", false},
		{"user", "", true}, // reserved
		{"123abc", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := sanitizeIdentifier(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildRLSStatements(t *testing.T) {
	statements := buildRLSStatements("ws_a1b2c3d4_properties")
	require.Len(t, statements, 5)

	assert.Contains(t, statements[0], "ENABLE ROW LEVEL SECURITY")

	// One policy per operation, each scoped to the session user
	operations := []string{"FOR SELECT", "FOR INSERT", "FOR UPDATE", "FOR DELETE"}
	for i, op := range operations {
		stmt := statements[i+1]
		assert.Contains(t, stmt, op)
		assert.Contains(t, stmt, "current_setting('app.current_user_id', true)::uuid")
	}

	// INSERT uses WITH CHECK, UPDATE carries both clauses
	assert.NotContains(t, statements[2], " USING ")
	assert.Contains(t, statements[2], "WITH CHECK")
	assert.Contains(t, statements[3], " USING ")
	assert.Contains(t, statements[3], "WITH CHECK")
}

func TestBuildCreateTableDDL(t *testing.T) {
	s := &schema.Schema{
		Version: "1.0.0",
		Tables: []schema.TableDefinition{
			testTable("properties"),
			testTable("showings",
				schema.ColumnDefinition{Name: "property_id", Type: schema.TypeUUID,
					References: &schema.ReferenceDefinition{Table: "properties", Column: "id", OnDelete: "CASCADE"}},
				schema.ColumnDefinition{Name: "owner_id", Type: schema.TypeUUID,
					References: &schema.ReferenceDefinition{Table: "users", Column: "id"}},
				schema.ColumnDefinition{Name: "status", Type: schema.TypeText, Default: "scheduled"},
			),
		},
	}

	ddl, err := buildCreateTableDDL(testProjectID, s, s.Tables[1], "ws_a1b2c3d4_showings")
	require.NoError(t, err)

	// Synthetic primary key when none was declared
	assert.Contains(t, ddl, "id UUID PRIMARY KEY DEFAULT gen_random_uuid()")

	// In-schema reference resolves to the physical table
	assert.Contains(t, ddl, `REFERENCES "ws_a1b2c3d4_properties"("id") ON DELETE CASCADE`)

	// Whitelisted external reference emits no constraint at all
	assert.NotContains(t, ddl, "ws_a1b2c3d4_users")
	assert.Contains(t, ddl, `"owner_id" UUID NOT NULL`)

	// String default is quoted
	assert.Contains(t, ddl, "DEFAULT 'scheduled'")
}

func TestMapDefault(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"now()", "now()"},
		{"CURRENT_TIMESTAMP", "now()"},
		{"gen_random_uuid()", "gen_random_uuid()"},
		{"true", "true"},
		{"42", "42"},
		{"-3.14", "-3.14"},
		{"active", "'active'"},
		{"O'Brien; DROP TABLE x", "'O''Brien; DROP TABLE x'"},
	}

	for _, tt := range tests {
		got, err := mapDefault(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestBuildIndexStatements(t *testing.T) {
	table := testTable("properties",
		schema.ColumnDefinition{Name: "price", Type: schema.TypeNumeric, Filterable: true},
		schema.ColumnDefinition{Name: "city", Type: schema.TypeText, Sortable: true},
	)

	statements, err := buildIndexStatements(table, "ws_a1b2c3d4_properties")
	require.NoError(t, err)

	joined := strings.Join(statements, "\n")
	assert.Contains(t, joined, `("user_id")`)
	assert.Contains(t, joined, `("created_at")`)
	assert.Contains(t, joined, `("price")`)
	assert.Contains(t, joined, `("city")`)
}

func TestBuildAddColumnStatements(t *testing.T) {
	s := &schema.Schema{Version: "1.1.0", Tables: []schema.TableDefinition{testTable("properties",
		schema.ColumnDefinition{Name: "price", Type: schema.TypeNumeric, Filterable: true},
		schema.ColumnDefinition{Name: "status", Type: schema.TypeText, Default: "active"},
	)}}
	added := []schema.ColumnDefinition{
		{Name: "price", Type: schema.TypeNumeric, Filterable: true},
		{Name: "status", Type: schema.TypeText, Default: "active"},
	}

	statements, err := buildAddColumnStatements(testProjectID, s, "ws_a1b2c3d4_properties", added)
	require.NoError(t, err)
	require.Len(t, statements, 3)

	// A NOT NULL addition without a default is relaxed to nullable so it
	// can apply to a populated table
	assert.Equal(t, `ALTER TABLE "ws_a1b2c3d4_properties" ADD COLUMN IF NOT EXISTS "price" NUMERIC(18,6)`, statements[0])

	// A defaulted column keeps its NOT NULL
	assert.Equal(t, `ALTER TABLE "ws_a1b2c3d4_properties" ADD COLUMN IF NOT EXISTS "status" TEXT NOT NULL DEFAULT 'active'`, statements[1])

	// The filterable addition gets its index
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "idx_ws_a1b2c3d4_properties_price" ON "ws_a1b2c3d4_properties" ("price")`, statements[2])
}

func TestDiffSchemas(t *testing.T) {
	live := &schema.Schema{Version: "1.0.0", Tables: []schema.TableDefinition{
		testTable("properties"),
		testTable("archived"),
	}}
	next := &schema.Schema{Version: "1.1.0", Tables: []schema.TableDefinition{
		testTable("properties", schema.ColumnDefinition{Name: "price", Type: schema.TypeNumeric}),
		testTable("showings"),
	}}

	missing, altered := diffSchemas(live, next)

	require.Len(t, missing, 1)
	assert.Equal(t, "showings", missing[0].Name)

	require.Len(t, altered, 1)
	assert.Equal(t, "properties", altered[0].table.Name)
	require.Len(t, altered[0].columns, 1)
	assert.Equal(t, "price", altered[0].columns[0].Name)
}

func TestBuildUpdatedAtTrigger(t *testing.T) {
	statements := buildUpdatedAtTrigger("ws_a1b2c3d4_properties")
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0], "DROP TRIGGER IF EXISTS")
	assert.Contains(t, statements[1], "BEFORE UPDATE")
	assert.Contains(t, statements[1], "EXECUTE FUNCTION set_updated_at()")
}

func TestTopoSortTables(t *testing.T) {
	s := &schema.Schema{
		Version: "1.0.0",
		Tables: []schema.TableDefinition{
			testTable("showings",
				schema.ColumnDefinition{Name: "property_id", Type: schema.TypeUUID,
					References: &schema.ReferenceDefinition{Table: "properties"}},
				schema.ColumnDefinition{Name: "agent_id", Type: schema.TypeUUID,
					References: &schema.ReferenceDefinition{Table: "agents"}},
			),
			testTable("properties",
				schema.ColumnDefinition{Name: "listing_agent_id", Type: schema.TypeUUID,
					References: &schema.ReferenceDefinition{Table: "agents"}},
			),
			testTable("agents"),
		},
	}

	ordered, err := topoSortTables(s)
	require.NoError(t, err)

	position := map[string]int{}
	for i, tbl := range ordered {
		position[tbl.Name] = i
	}
	assert.Less(t, position["agents"], position["properties"])
	assert.Less(t, position["properties"], position["showings"])
}

func TestTopoSortRejectsCycle(t *testing.T) {
	s := &schema.Schema{
		Version: "1.0.0",
		Tables: []schema.TableDefinition{
			testTable("a", schema.ColumnDefinition{Name: "b_id", Type: schema.TypeUUID,
				References: &schema.ReferenceDefinition{Table: "b"}}),
			testTable("b", schema.ColumnDefinition{Name: "a_id", Type: schema.TypeUUID,
				References: &schema.ReferenceDefinition{Table: "a"}}),
		},
	}

	_, err := topoSortTables(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestProvisionRollsBackAndNamesFailingTable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	// First table succeeds through its full statement sequence
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "ws_a1b2c3d4_properties"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE "ws_a1b2c3d4_properties" ENABLE ROW LEVEL SECURITY`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE POLICY`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE POLICY`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE POLICY`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE POLICY`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TRIGGER IF EXISTS`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TRIGGER`).WillReturnResult(sqlmock.NewResult(0, 0))
	// Second table's CREATE fails; the whole run must roll back
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "ws_a1b2c3d4_showings"`).WillReturnError(errors.New("out of disk"))
	mock.ExpectRollback()

	s := &schema.Schema{
		Version: "1.0.0",
		Tables: []schema.TableDefinition{
			testTable("properties"),
			testTable("showings",
				schema.ColumnDefinition{Name: "property_id", Type: schema.TypeUUID,
					References: &schema.ReferenceDefinition{Table: "properties"}},
			),
		},
	}

	p := NewProvisioner(db)
	_, err = p.Provision(context.Background(), testProjectID, s)
	require.Error(t, err)

	var provErr *apperrors.ProvisioningError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "showings", provErr.Table)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisionCommitsAllTables(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	// 10 statements per table: create, RLS enable, 4 policies, 2 indexes, 2 trigger statements
	for i := 0; i < 10; i++ {
		mock.ExpectExec(`.`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	s := &schema.Schema{Version: "1.0.0", Tables: []schema.TableDefinition{testTable("contacts")}}

	p := NewProvisioner(db)
	result, err := p.Provision(context.Background(), testProjectID, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"ws_a1b2c3d4_contacts"}, result.TablesCreated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileCreatesMissingTablesAndAddsColumns(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	// The missing table runs its full 10-statement sequence first
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "ws_a1b2c3d4_showings"`).WillReturnResult(sqlmock.NewResult(0, 0))
	for i := 0; i < 9; i++ {
		mock.ExpectExec(`.`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	// Then the shared table gains its column and index
	mock.ExpectExec(`ALTER TABLE "ws_a1b2c3d4_properties" ADD COLUMN IF NOT EXISTS "price"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "idx_ws_a1b2c3d4_properties_price"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	live := &schema.Schema{Version: "1.0.0", Tables: []schema.TableDefinition{testTable("properties")}}
	next := &schema.Schema{Version: "1.1.0", Tables: []schema.TableDefinition{
		testTable("properties", schema.ColumnDefinition{Name: "price", Type: schema.TypeNumeric, Filterable: true}),
		testTable("showings", schema.ColumnDefinition{Name: "property_id", Type: schema.TypeUUID,
			References: &schema.ReferenceDefinition{Table: "properties"}}),
	}}

	p := NewProvisioner(db)
	result, err := p.Reconcile(context.Background(), testProjectID, live, next)
	require.NoError(t, err)

	assert.Equal(t, []string{"ws_a1b2c3d4_showings"}, result.TablesCreated)
	assert.Equal(t, []string{"ws_a1b2c3d4_properties.price"}, result.ColumnsAdded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileWithNoDifferencesTouchesNothing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	s := &schema.Schema{Version: "1.0.0", Tables: []schema.TableDefinition{testTable("properties")}}

	// No Begin expected: an empty diff must not open a transaction
	p := NewProvisioner(db)
	result, err := p.Reconcile(context.Background(), testProjectID, s, s)
	require.NoError(t, err)
	assert.Empty(t, result.TablesCreated)
	assert.Empty(t, result.ColumnsAdded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeprovisionDropsInReverseDependencyOrder(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	// Referencing tables drop before their targets
	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE IF EXISTS "ws_a1b2c3d4_showings"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS "ws_a1b2c3d4_properties"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS "ws_a1b2c3d4_agents"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	s := &schema.Schema{
		Version: "1.0.0",
		Tables: []schema.TableDefinition{
			testTable("showings", schema.ColumnDefinition{Name: "property_id", Type: schema.TypeUUID,
				References: &schema.ReferenceDefinition{Table: "properties"}}),
			testTable("properties", schema.ColumnDefinition{Name: "agent_id", Type: schema.TypeUUID,
				References: &schema.ReferenceDefinition{Table: "agents"}}),
			testTable("agents"),
		},
	}

	p := NewProvisioner(db)
	require.NoError(t, p.Deprovision(context.Background(), testProjectID, s))
	assert.NoError(t, mock.ExpectationsWereMet())
}
