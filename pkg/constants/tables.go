package constants

import "strings"

// System table names - the pipeline's own persistence, kept apart from
// tenant tables by the _system_ prefix.
const (
	SystemTablePrefix = "_system_"

	TableUser          = "_system_user"
	TableProject       = "_system_project"
	TableSchemaVersion = "_system_schema_version"
	TableSchemaLock    = "_system_schema_lock"
	TableDecisionTrace = "_system_decision_trace"
)

func IsSystemTable(tableName string) bool {
	return strings.HasPrefix(tableName, SystemTablePrefix)
}

// ExternalTableWhitelist lists tables a generated schema may reference even
// though they are not part of the schema itself. "users" resolves to the
// identity table; no physical foreign key is emitted for it.
var ExternalTableWhitelist = map[string]bool{
	"users": true,
}

func IsWhitelistedExternalTable(tableName string) bool {
	return ExternalTableWhitelist[strings.ToLower(tableName)]
}
