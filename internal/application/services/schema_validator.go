package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/pkg/constants"
	"github.com/promptcrm/backend/pkg/utils"
)

// ValidationResult aggregates every rule violation found in a candidate
// schema. All sub-checks run; nothing short-circuits, so a caller sees the
// full list at once.
type ValidationResult struct {
	Passed bool     `json:"passed"`
	Errors []string `json:"errors,omitempty"`
}

// SchemaValidator checks candidate schemas against structural and semantic
// rules. Pure and deterministic: no I/O, no side effects. This is the real
// security boundary between untrusted generator output and DDL text.
type SchemaValidator struct {
	namePattern *regexp.Regexp
}

// NewSchemaValidator creates a new SchemaValidator
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		namePattern: regexp.MustCompile(`^[a-z][a-z0-9_]*$`),
	}
}

// validColumnTypes is the enumerated set of storable types. A type outside
// this set is a validation failure, never a passthrough.
var validColumnTypes = map[schema.ColumnType]bool{
	schema.TypeUUID:         true,
	schema.TypeText:         true,
	schema.TypeVarchar:      true,
	schema.TypeInteger:      true,
	schema.TypeBigint:       true,
	schema.TypeBoolean:      true,
	schema.TypeTimestamp:    true,
	schema.TypeTimestamptz:  true,
	schema.TypeDate:         true,
	schema.TypeNumeric:      true,
	schema.TypeJSONB:        true,
	schema.TypeTextArray:    true,
	schema.TypeUUIDArray:    true,
	schema.TypeIntegerArray: true,
}

// Validate runs every sub-check and aggregates the violations
func (v *SchemaValidator) Validate(s *schema.Schema) ValidationResult {
	if s == nil {
		return ValidationResult{Passed: false, Errors: []string{"schema is required"}}
	}

	var errs []string
	errs = append(errs, v.checkStructure(s)...)
	errs = append(errs, v.checkReservedWords(s)...)
	errs = append(errs, v.checkAuditColumns(s)...)
	errs = append(errs, v.checkForeignKeys(s)...)
	errs = append(errs, v.DetectCircularDependencies(s)...)

	return ValidationResult{Passed: len(errs) == 0, Errors: errs}
}

// checkStructure re-verifies the bounds the request layer already enforced:
// table/column counts, semver version, identifier shape, enumerated types,
// duplicate names.
func (v *SchemaValidator) checkStructure(s *schema.Schema) []string {
	var errs []string

	if !utils.IsValidSemver(s.Version) {
		errs = append(errs, fmt.Sprintf("schema version '%s' is not a valid semver string", s.Version))
	}

	if len(s.Tables) < constants.MinTablesPerSchema {
		errs = append(errs, "schema must contain at least one table")
	}
	if len(s.Tables) > constants.MaxTablesPerSchema {
		errs = append(errs, fmt.Sprintf("schema has %d tables, maximum is %d", len(s.Tables), constants.MaxTablesPerSchema))
	}

	seenTables := make(map[string]bool)
	for _, t := range s.Tables {
		if !v.namePattern.MatchString(t.Name) {
			errs = append(errs, fmt.Sprintf("table name '%s' must be snake_case (lowercase, alphanumeric, underscores)", t.Name))
		}
		if len(t.Name) > constants.MaxIdentifierLength {
			errs = append(errs, fmt.Sprintf("table name '%s' exceeds %d characters", t.Name, constants.MaxIdentifierLength))
		}
		if seenTables[t.Name] {
			errs = append(errs, fmt.Sprintf("duplicate table name '%s'", t.Name))
		}
		seenTables[t.Name] = true

		if len(t.Columns) == 0 {
			errs = append(errs, fmt.Sprintf("table '%s' must declare at least one column", t.Name))
		}
		if len(t.Columns) > constants.MaxColumnsPerTable {
			errs = append(errs, fmt.Sprintf("table '%s' has %d columns, maximum is %d", t.Name, len(t.Columns), constants.MaxColumnsPerTable))
		}

		seenColumns := make(map[string]bool)
		for _, col := range t.Columns {
			if !v.namePattern.MatchString(col.Name) {
				errs = append(errs, fmt.Sprintf("column name '%s' on table '%s' must be snake_case", col.Name, t.Name))
			}
			if seenColumns[col.Name] {
				errs = append(errs, fmt.Sprintf("duplicate column name '%s' on table '%s'", col.Name, t.Name))
			}
			seenColumns[col.Name] = true

			if !validColumnTypes[schema.ColumnType(strings.ToUpper(string(col.Type)))] {
				errs = append(errs, fmt.Sprintf("column '%s.%s' has unsupported type '%s'", t.Name, col.Name, col.Type))
			}
		}
	}

	return errs
}

// checkReservedWords rejects table and column names colliding with SQL
// keywords, case-insensitively.
func (v *SchemaValidator) checkReservedWords(s *schema.Schema) []string {
	var errs []string
	for _, t := range s.Tables {
		if constants.IsReservedWord(t.Name) {
			errs = append(errs, fmt.Sprintf("table name '%s' is a reserved SQL keyword", t.Name))
		}
		for _, col := range t.Columns {
			if constants.IsReservedWord(col.Name) {
				errs = append(errs, fmt.Sprintf("column name '%s' on table '%s' is a reserved SQL keyword", col.Name, t.Name))
			}
		}
	}
	return errs
}

// checkAuditColumns verifies every table declares user_id, created_at and
// updated_at.
func (v *SchemaValidator) checkAuditColumns(s *schema.Schema) []string {
	var errs []string
	for _, t := range s.Tables {
		for _, required := range constants.AuditColumns {
			if t.Column(required) == nil {
				errs = append(errs, fmt.Sprintf("table '%s' is missing mandatory audit column '%s'", t.Name, required))
			}
		}
	}
	return errs
}

// checkForeignKeys verifies every references.table resolves to a table in
// this schema or the external whitelist.
func (v *SchemaValidator) checkForeignKeys(s *schema.Schema) []string {
	var errs []string
	for _, t := range s.Tables {
		for _, col := range t.Columns {
			if col.References == nil {
				continue
			}
			target := col.References.Table
			if s.Table(target) != nil || constants.IsWhitelistedExternalTable(target) {
				continue
			}
			errs = append(errs, fmt.Sprintf("column '%s.%s' references unknown table '%s'", t.Name, col.Name, target))
		}
	}
	return errs
}

// DetectCircularDependencies runs DFS over the foreign-key graph (table ->
// referenced tables) and reports the first table participating in a
// back-edge. Self-references are exempt only when the referencing column is
// nullable: a nullable self-loop does not block provisioning order, while a
// NOT NULL one makes the table impossible to populate.
func (v *SchemaValidator) DetectCircularDependencies(s *schema.Schema) []string {
	var errs []string

	adjacency := make(map[string][]string)
	for _, t := range s.Tables {
		for _, col := range t.Columns {
			if col.References == nil {
				continue
			}
			target := col.References.Table
			if target == t.Name {
				if !col.Nullable {
					errs = append(errs, fmt.Sprintf("self-referencing column '%s.%s' must be nullable", t.Name, col.Name))
				}
				continue
			}
			if s.Table(target) == nil {
				continue // unresolved reference reported by checkForeignKeys
			}
			adjacency[t.Name] = append(adjacency[t.Name], target)
		}
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int)

	var visit func(name string) string
	visit = func(name string) string {
		state[name] = inStack
		for _, next := range adjacency[name] {
			switch state[next] {
			case inStack:
				return next
			case unvisited:
				if cycleTable := visit(next); cycleTable != "" {
					return cycleTable
				}
			}
		}
		state[name] = done
		return ""
	}

	for _, t := range s.Tables {
		if state[t.Name] != unvisited {
			continue
		}
		if cycleTable := visit(t.Name); cycleTable != "" {
			errs = append(errs, fmt.Sprintf("circular foreign-key dependency detected involving table '%s'", cycleTable))
			break
		}
	}

	return errs
}
