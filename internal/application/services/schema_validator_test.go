package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptcrm/backend/internal/domain/schema"
)

func validRealEstateSchema() *schema.Schema {
	return &schema.Schema{
		Version: "1.0.0",
		Tables: []schema.TableDefinition{
			testTable("properties",
				schema.ColumnDefinition{Name: "address", Type: schema.TypeText},
				schema.ColumnDefinition{Name: "price", Type: schema.TypeNumeric},
			),
			testTable("showings",
				schema.ColumnDefinition{Name: "property_id", Type: schema.TypeUUID,
					References: &schema.ReferenceDefinition{Table: "properties", Column: "id", OnDelete: "CASCADE"}},
				schema.ColumnDefinition{Name: "scheduled_at", Type: schema.TypeTimestamptz},
			),
		},
	}
}

func TestValidateAcceptsWellFormedSchema(t *testing.T) {
	v := NewSchemaValidator()
	result := v.Validate(validRealEstateSchema())
	assert.True(t, result.Passed)
	assert.Empty(t, result.Errors)
}

func TestValidateReservedWordTableName(t *testing.T) {
	v := NewSchemaValidator()
	s := validRealEstateSchema()
	s.Tables[0].Name = "user"

	result := v.Validate(s)
	require.False(t, result.Passed)

	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "reserved") && strings.Contains(e, "'user'") {
			found = true
		}
	}
	assert.True(t, found, "expected a reserved keyword violation for 'user', got %v", result.Errors)
}

func TestValidateAggregatesAllViolations(t *testing.T) {
	v := NewSchemaValidator()
	s := &schema.Schema{
		Version: "not-a-version",
		Tables: []schema.TableDefinition{
			{
				Name: "Order", // bad case AND reserved once lowercased by caller
				Columns: []schema.ColumnDefinition{
					{Name: "title", Type: schema.ColumnType("MONEY")},
				},
			},
		},
	}

	result := v.Validate(s)
	require.False(t, result.Passed)
	// One run reports version, name shape, type and audit column violations together
	assert.GreaterOrEqual(t, len(result.Errors), 4)
}

func TestValidateMissingAuditColumns(t *testing.T) {
	v := NewSchemaValidator()
	s := &schema.Schema{
		Version: "1.0.0",
		Tables: []schema.TableDefinition{
			{
				Name: "contacts",
				Columns: []schema.ColumnDefinition{
					{Name: "email", Type: schema.TypeText},
				},
			},
		},
	}

	result := v.Validate(s)
	require.False(t, result.Passed)

	missing := 0
	for _, e := range result.Errors {
		if strings.Contains(e, "audit column") {
			missing++
		}
	}
	assert.Equal(t, 3, missing, "user_id, created_at and updated_at should each be reported")
}

func TestValidateForeignKeyTargets(t *testing.T) {
	v := NewSchemaValidator()

	tests := []struct {
		name   string
		target string
		wantOK bool
	}{
		{"in-schema target", "properties", true},
		{"whitelisted external users table", "users", true},
		{"unknown target", "ghosts", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validRealEstateSchema()
			s.Tables[1].Columns[0].References.Table = tt.target
			result := v.Validate(s)
			assert.Equal(t, tt.wantOK, result.Passed, "errors: %v", result.Errors)
		})
	}
}

func TestDetectCircularDependenciesFlipsWithEdge(t *testing.T) {
	v := NewSchemaValidator()
	s := validRealEstateSchema()

	require.Empty(t, v.DetectCircularDependencies(s))

	// Close the loop: properties -> showings while showings -> properties
	s.Tables[0].Columns = append(s.Tables[0].Columns, schema.ColumnDefinition{
		Name: "last_showing_id", Type: schema.TypeUUID, Nullable: true,
		References: &schema.ReferenceDefinition{Table: "showings", Column: "id"},
	})
	errs := v.DetectCircularDependencies(s)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "circular")

	// Removing the edge clears the failure again
	s.Tables[0].Columns = s.Tables[0].Columns[:len(s.Tables[0].Columns)-1]
	assert.Empty(t, v.DetectCircularDependencies(s))
}

func TestSelfReferenceRequiresNullable(t *testing.T) {
	v := NewSchemaValidator()

	s := &schema.Schema{
		Version: "1.0.0",
		Tables: []schema.TableDefinition{
			testTable("categories",
				schema.ColumnDefinition{Name: "parent_id", Type: schema.TypeUUID, Nullable: true,
					References: &schema.ReferenceDefinition{Table: "categories", Column: "id"}},
			),
		},
	}
	assert.True(t, v.Validate(s).Passed)

	s.Tables[0].Columns[0].Nullable = false
	result := v.Validate(s)
	require.False(t, result.Passed)
	assert.Contains(t, result.Errors[0], "must be nullable")
}

func TestValidateTableAndColumnBounds(t *testing.T) {
	v := NewSchemaValidator()

	s := &schema.Schema{Version: "1.0.0"}
	for i := 0; i < 16; i++ {
		s.Tables = append(s.Tables, testTable("t"+strings.Repeat("a", i+1)))
	}

	result := v.Validate(s)
	require.False(t, result.Passed)

	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "maximum is 15") {
			found = true
		}
	}
	assert.True(t, found)
}
