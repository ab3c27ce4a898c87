package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/pkg/constants"
)

// identPattern is the allow-list every identifier must match immediately
// before interpolation into DDL text. The same pattern the Validator uses;
// checked twice on purpose.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var disallowedIdentChars = regexp.MustCompile(`[^a-z0-9_]`)

// typeMap is the enumerated mapping from schema column types to native
// Postgres types. A type missing here never reaches SQL text.
var typeMap = map[schema.ColumnType]string{
	schema.TypeUUID:         "UUID",
	schema.TypeText:         "TEXT",
	schema.TypeVarchar:      "VARCHAR(255)",
	schema.TypeInteger:      "INTEGER",
	schema.TypeBigint:       "BIGINT",
	schema.TypeBoolean:      "BOOLEAN",
	schema.TypeTimestamp:    "TIMESTAMP",
	schema.TypeTimestamptz:  "TIMESTAMPTZ",
	schema.TypeDate:         "DATE",
	schema.TypeNumeric:      "NUMERIC(18,6)",
	schema.TypeJSONB:        "JSONB",
	schema.TypeTextArray:    "TEXT[]",
	schema.TypeUUIDArray:    "UUID[]",
	schema.TypeIntegerArray: "INTEGER[]",
}

var allowedOnDelete = map[string]bool{
	"CASCADE": true, "SET NULL": true, "RESTRICT": true, "NO ACTION": true,
}

// allowedFnDefaults are the only function-call defaults that may appear
// verbatim in DDL. Everything else is treated as a literal and quoted.
var allowedFnDefaults = map[string]string{
	"now()":             "now()",
	"current_timestamp": "now()",
	"gen_random_uuid()": "gen_random_uuid()",
	"current_date":      "CURRENT_DATE",
}

var numericLiteral = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// sanitizeIdentifier lowercases, strips disallowed characters and enforces
// the allow-list pattern. Returns an error rather than guessing when nothing
// usable remains.
func sanitizeIdentifier(name string) (string, error) {
	cleaned := disallowedIdentChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	cleaned = strings.Trim(cleaned, "_")
	if len(cleaned) > constants.MaxIdentifierLength {
		cleaned = cleaned[:constants.MaxIdentifierLength]
	}
	if !identPattern.MatchString(cleaned) {
		return "", fmt.Errorf("identifier '%s' is not a valid SQL name", name)
	}
	if constants.IsReservedWord(cleaned) {
		return "", fmt.Errorf("identifier '%s' is a reserved SQL keyword", name)
	}
	return cleaned, nil
}

// physicalTableName derives the per-project physical table name. Projects
// share one database; the prefix is what keeps their namespaces apart.
func physicalTableName(projectID, tableName string) (string, error) {
	table, err := sanitizeIdentifier(tableName)
	if err != nil {
		return "", err
	}
	prefix := disallowedIdentChars.ReplaceAllString(strings.ToLower(projectID), "")
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	if prefix == "" {
		return "", fmt.Errorf("project id '%s' yields no usable table prefix", projectID)
	}
	return fmt.Sprintf("ws_%s_%s", prefix, table), nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

// buildTableStatements produces the full DDL sequence for one table:
// CREATE TABLE, RLS enablement, four per-operation policies, supporting
// indexes and the updated_at trigger.
func buildTableStatements(projectID string, s *schema.Schema, table schema.TableDefinition, physical string) ([]string, error) {
	createDDL, err := buildCreateTableDDL(projectID, s, table, physical)
	if err != nil {
		return nil, err
	}

	statements := []string{createDDL}
	statements = append(statements, buildRLSStatements(physical)...)

	indexStatements, err := buildIndexStatements(table, physical)
	if err != nil {
		return nil, err
	}
	statements = append(statements, indexStatements...)
	statements = append(statements, buildUpdatedAtTrigger(physical)...)
	return statements, nil
}

// buildAddColumnStatements emits additive ALTER TABLE DDL for columns a
// live table gained, plus an index for any new filterable or sortable
// column. A NOT NULL addition without a default cannot succeed on a
// populated table, so such columns are added nullable instead.
func buildAddColumnStatements(projectID string, s *schema.Schema, physical string, added []schema.ColumnDefinition) ([]string, error) {
	var statements []string
	for _, col := range added {
		if !col.Nullable && col.Default == "" {
			col.Nullable = true
		}
		line, err := buildColumnDDL(projectID, s, col)
		if err != nil {
			return nil, fmt.Errorf("invalid column definition for '%s': %w", col.Name, err)
		}
		statements = append(statements, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s",
			quoteIdent(physical), line))
	}

	for _, col := range added {
		if !col.Filterable && !col.Sortable {
			continue
		}
		name, err := sanitizeIdentifier(col.Name)
		if err != nil {
			return nil, err
		}
		statements = append(statements, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteIdent(fmt.Sprintf("idx_%s_%s", physical, name)), quoteIdent(physical), quoteIdent(name)))
	}

	return statements, nil
}

func buildCreateTableDDL(projectID string, s *schema.Schema, table schema.TableDefinition, physical string) (string, error) {
	var ddl strings.Builder
	ddl.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", quoteIdent(physical)))

	hasPrimaryKey := false
	for _, col := range table.Columns {
		if col.PrimaryKey {
			hasPrimaryKey = true
			break
		}
	}

	var lines []string
	if !hasPrimaryKey {
		lines = append(lines, "  id UUID PRIMARY KEY DEFAULT gen_random_uuid()")
	}

	for _, col := range table.Columns {
		line, err := buildColumnDDL(projectID, s, col)
		if err != nil {
			return "", fmt.Errorf("invalid column definition for '%s': %w", col.Name, err)
		}
		lines = append(lines, "  "+line)
	}

	ddl.WriteString(strings.Join(lines, ",\n"))
	ddl.WriteString("\n)")
	return ddl.String(), nil
}

// buildColumnDDL generates DDL for a single column
func buildColumnDDL(projectID string, s *schema.Schema, col schema.ColumnDefinition) (string, error) {
	name, err := sanitizeIdentifier(col.Name)
	if err != nil {
		return "", err
	}

	sqlType, ok := typeMap[schema.ColumnType(strings.ToUpper(string(col.Type)))]
	if !ok {
		return "", fmt.Errorf("unsupported column type '%s'", col.Type)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s", quoteIdent(name), sqlType))

	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if col.Default != "" {
		def, err := mapDefault(col.Default)
		if err != nil {
			return "", err
		}
		sb.WriteString(fmt.Sprintf(" DEFAULT %s", def))
	}
	if col.PrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}
	if col.Unique && !col.PrimaryKey {
		sb.WriteString(" UNIQUE")
	}

	if col.References != nil {
		fk, err := buildReferenceDDL(projectID, s, col.References)
		if err != nil {
			return "", err
		}
		sb.WriteString(fk)
	}

	return sb.String(), nil
}

// buildReferenceDDL emits an inline foreign key for in-schema targets.
// Whitelisted external targets (the identity table) stay metadata-only:
// no constraint crosses the tenant/system boundary.
func buildReferenceDDL(projectID string, s *schema.Schema, ref *schema.ReferenceDefinition) (string, error) {
	if constants.IsWhitelistedExternalTable(ref.Table) {
		return "", nil
	}
	if s.Table(ref.Table) == nil {
		return "", fmt.Errorf("reference target '%s' is not part of this schema", ref.Table)
	}

	targetPhysical, err := physicalTableName(projectID, ref.Table)
	if err != nil {
		return "", err
	}
	targetColumn := ref.Column
	if targetColumn == "" {
		targetColumn = constants.FieldID
	}
	targetColumn, err = sanitizeIdentifier(targetColumn)
	if err != nil {
		return "", err
	}

	ddl := fmt.Sprintf(" REFERENCES %s(%s)", quoteIdent(targetPhysical), quoteIdent(targetColumn))
	if ref.OnDelete != "" {
		action := strings.ToUpper(strings.TrimSpace(ref.OnDelete))
		if !allowedOnDelete[action] {
			return "", fmt.Errorf("unsupported ON DELETE action '%s'", ref.OnDelete)
		}
		ddl += " ON DELETE " + action
	}
	return ddl, nil
}

// mapDefault maps a declared default onto safe SQL: known function calls
// pass through from a fixed table, numeric and boolean literals pass as-is,
// anything else becomes a quoted string literal with embedded quotes doubled.
func mapDefault(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if fn, ok := allowedFnDefaults[strings.ToLower(trimmed)]; ok {
		return fn, nil
	}
	lower := strings.ToLower(trimmed)
	if lower == "true" || lower == "false" {
		return lower, nil
	}
	if numericLiteral.MatchString(trimmed) {
		return trimmed, nil
	}
	return "'" + strings.ReplaceAll(trimmed, "'", "''") + "'", nil
}

// buildRLSStatements enables row-level security and attaches four explicit
// policies, one per operation, so operation-specific predicates can diverge
// later. The predicate scopes rows to the authenticated caller via the
// app.current_user_id session setting.
func buildRLSStatements(physical string) []string {
	quoted := quoteIdent(physical)
	predicate := fmt.Sprintf("(%s = current_setting('app.current_user_id', true)::uuid)", constants.FieldUserID)

	return []string{
		fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", quoted),
		fmt.Sprintf("CREATE POLICY %s ON %s FOR SELECT USING %s",
			quoteIdent(physical+"_select_policy"), quoted, predicate),
		fmt.Sprintf("CREATE POLICY %s ON %s FOR INSERT WITH CHECK %s",
			quoteIdent(physical+"_insert_policy"), quoted, predicate),
		fmt.Sprintf("CREATE POLICY %s ON %s FOR UPDATE USING %s WITH CHECK %s",
			quoteIdent(physical+"_update_policy"), quoted, predicate, predicate),
		fmt.Sprintf("CREATE POLICY %s ON %s FOR DELETE USING %s",
			quoteIdent(physical+"_delete_policy"), quoted, predicate),
	}
}

// buildIndexStatements always indexes the tenant column and creation time,
// plus any column flagged filterable or sortable and any declared index.
func buildIndexStatements(table schema.TableDefinition, physical string) ([]string, error) {
	indexed := map[string]bool{}
	var statements []string

	addSingle := func(column string) {
		if indexed[column] {
			return
		}
		indexed[column] = true
		statements = append(statements, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteIdent(fmt.Sprintf("idx_%s_%s", physical, column)), quoteIdent(physical), quoteIdent(column)))
	}

	addSingle(constants.FieldUserID)
	addSingle(constants.FieldCreatedAt)

	for _, col := range table.Columns {
		if !col.Filterable && !col.Sortable {
			continue
		}
		name, err := sanitizeIdentifier(col.Name)
		if err != nil {
			return nil, err
		}
		addSingle(name)
	}

	for _, idx := range table.Indexes {
		var cols []string
		for _, c := range idx.Columns {
			name, err := sanitizeIdentifier(c)
			if err != nil {
				return nil, err
			}
			cols = append(cols, quoteIdent(name))
		}
		if len(cols) == 0 {
			continue
		}
		indexName := idx.Name
		if indexName == "" {
			indexName = fmt.Sprintf("idx_%s_%s", physical, strings.Join(idx.Columns, "_"))
		}
		indexName, err := sanitizeIdentifier(indexName)
		if err != nil {
			return nil, err
		}
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		statements = append(statements, fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
			unique, quoteIdent(indexName), quoteIdent(physical), strings.Join(cols, ", ")))
	}

	return statements, nil
}

// buildUpdatedAtTrigger keeps updated_at current on every row mutation.
// Postgres has no CREATE TRIGGER IF NOT EXISTS, so the trigger is dropped
// first to keep re-provisioning idempotent.
func buildUpdatedAtTrigger(physical string) []string {
	triggerName := quoteIdent("trg_" + physical + "_set_updated_at")
	quoted := quoteIdent(physical)
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", triggerName, quoted),
		fmt.Sprintf("CREATE TRIGGER %s BEFORE UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION set_updated_at()",
			triggerName, quoted),
	}
}
