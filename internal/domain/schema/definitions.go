package schema

import (
	"errors"
	"time"
)

// ColumnType enumerates the storable column types. Anything outside this
// enum never reaches DDL text.
type ColumnType string

const (
	TypeUUID        ColumnType = "UUID"
	TypeText        ColumnType = "TEXT"
	TypeVarchar     ColumnType = "VARCHAR"
	TypeInteger     ColumnType = "INTEGER"
	TypeBigint      ColumnType = "BIGINT"
	TypeBoolean     ColumnType = "BOOLEAN"
	TypeTimestamp   ColumnType = "TIMESTAMP"
	TypeTimestamptz ColumnType = "TIMESTAMPTZ"
	TypeDate        ColumnType = "DATE"
	TypeNumeric     ColumnType = "NUMERIC"
	TypeJSONB       ColumnType = "JSONB"

	// Array variants
	TypeTextArray    ColumnType = "TEXT[]"
	TypeUUIDArray    ColumnType = "UUID[]"
	TypeIntegerArray ColumnType = "INTEGER[]"
)

// ReferenceDefinition describes a foreign key target
type ReferenceDefinition struct {
	Table    string `json:"table"`
	Column   string `json:"column"`
	OnDelete string `json:"on_delete,omitempty"` // CASCADE, SET NULL, RESTRICT, NO ACTION
}

// ColumnDefinition represents a single column in a table
type ColumnDefinition struct {
	Name       string               `json:"name"`
	Type       ColumnType           `json:"type"`
	Nullable   bool                 `json:"nullable,omitempty"`
	Default    string               `json:"default,omitempty"`
	Unique     bool                 `json:"unique,omitempty"`
	PrimaryKey bool                 `json:"primary_key,omitempty"`
	Filterable bool                 `json:"filterable,omitempty"`
	Sortable   bool                 `json:"sortable,omitempty"`
	References *ReferenceDefinition `json:"references,omitempty"`
}

// IndexDefinition represents an index on a table
type IndexDefinition struct {
	Name    string   `json:"name,omitempty"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// TableDefinition represents a complete table schema
type TableDefinition struct {
	Name    string             `json:"name"`
	Columns []ColumnDefinition `json:"columns"`
	Indexes []IndexDefinition  `json:"indexes,omitempty"`
	UIHints map[string]string  `json:"ui_hints,omitempty"`
}

// Column returns the named column or nil
func (t *TableDefinition) Column(name string) *ColumnDefinition {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// RelationshipDefinition is descriptive metadata derived from foreign keys.
// Used for UI and diffing; never enforced independently of column references.
type RelationshipDefinition struct {
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
	Type       string `json:"type"` // one-to-one, one-to-many, many-to-one, many-to-many
}

// Schema is the versioned artifact the whole pipeline revolves around
type Schema struct {
	Version       string                   `json:"version"`
	Tables        []TableDefinition        `json:"tables"`
	Relationships []RelationshipDefinition `json:"relationships,omitempty"`
}

// Table returns the named table or nil
func (s *Schema) Table(name string) *TableDefinition {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// TableNames returns the table names in declaration order
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Trace kinds. Generation traces count toward the daily quota; rollback
// traces do not.
const (
	TraceKindGeneration = "generation"
	TraceKindRollback   = "rollback"
)

// DecisionTrace is one append-only audit record of a schema transition
type DecisionTrace struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	UserID       string    `json:"user_id"`
	Kind         string    `json:"kind"`
	Intent       string    `json:"intent"`
	Action       string    `json:"action"`
	Precedent    string    `json:"precedent"`
	Version      string    `json:"version"`
	SchemaBefore *Schema   `json:"schema_before,omitempty"`
	SchemaAfter  *Schema   `json:"schema_after,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// SchemaVersionRecord is a persisted schema version row. At most one row per
// project has IsActive = true.
type SchemaVersionRecord struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	UserID        string    `json:"user_id"`
	SchemaVersion string    `json:"schema_version"`
	Schema        *Schema   `json:"schema_json"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// ErrLockExists signals an insert that hit the per-project uniqueness
// constraint: another writer created the lock row first.
var ErrLockExists = errors.New("schema lock already exists for project")

// SchemaLock is a short-TTL per-project mutual exclusion token. At most one
// unexpired lock exists per project; lazy purge on acquire enforces expiry.
type SchemaLock struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the lock's TTL has passed at the given instant
func (l *SchemaLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// Project owns a provisioned schema and its version history
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an identity row in the system user table
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
