package constants

// Field and header names used across handlers and services
const (
	FieldID      = "id"
	FieldMessage = "message"

	FieldUserID    = "user_id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"

	HeaderAuthorization = "Authorization"
	ContextKeyUser      = "user"
	ResponseError       = "error"
)

// AuditColumns are the mandatory columns every tenant table must declare.
// user_id carries tenant ownership (the RLS predicate), the timestamps carry
// row lifecycle.
var AuditColumns = []string{FieldUserID, FieldCreatedAt, FieldUpdatedAt}
