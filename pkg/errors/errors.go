package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// AppError is the base interface for all application errors
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// NotFoundError represents a resource that was not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) HTTPStatus() int { return http.StatusNotFound }
func (e *NotFoundError) Code() string    { return "NOT_FOUND" }

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents invalid input on a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) HTTPStatus() int { return http.StatusBadRequest }
func (e *ValidationError) Code() string    { return "VALIDATION_ERROR" }

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// SchemaValidationError carries the full itemized list of schema rule
// violations. Callers surface every violation at once, not just the first.
type SchemaValidationError struct {
	Violations []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed with %d violation(s): %s",
		len(e.Violations), joinLimited(e.Violations, 3))
}

func (e *SchemaValidationError) HTTPStatus() int { return http.StatusBadRequest }
func (e *SchemaValidationError) Code() string    { return "SCHEMA_VALIDATION_FAILED" }

// NewSchemaValidationError creates a SchemaValidationError from a violation list
func NewSchemaValidationError(violations []string) *SchemaValidationError {
	return &SchemaValidationError{Violations: violations}
}

// InvalidIntentError represents a prompt rejected before generation
type InvalidIntentError struct {
	Reason string
}

func (e *InvalidIntentError) Error() string {
	return fmt.Sprintf("prompt rejected: %s", e.Reason)
}

func (e *InvalidIntentError) HTTPStatus() int { return http.StatusUnprocessableEntity }
func (e *InvalidIntentError) Code() string    { return "INVALID_INTENT" }

// NewInvalidIntentError creates a new InvalidIntentError
func NewInvalidIntentError(reason string) *InvalidIntentError {
	return &InvalidIntentError{Reason: reason}
}

// GenerationError represents a model call that errored or returned
// unparsable output. Distinct from validation failure: the candidate never
// existed, so a retry with the same prompt is safe.
type GenerationError struct {
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("schema generation failed: %s (caused by: %v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("schema generation failed: %s", e.Message)
}

func (e *GenerationError) HTTPStatus() int { return http.StatusBadGateway }
func (e *GenerationError) Code() string    { return "GENERATION_FAILED" }
func (e *GenerationError) Unwrap() error   { return e.Cause }

// NewGenerationError creates a new GenerationError
func NewGenerationError(message string, cause error) *GenerationError {
	return &GenerationError{Message: message, Cause: cause}
}

// LockConflictError carries the current holder so clients can report who is
// editing and when the lock expires.
type LockConflictError struct {
	ProjectID string
	HolderID  string
	ExpiresAt time.Time
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("project %s is locked by user %s until %s",
		e.ProjectID, e.HolderID, e.ExpiresAt.UTC().Format(time.RFC3339))
}

func (e *LockConflictError) HTTPStatus() int { return http.StatusConflict }
func (e *LockConflictError) Code() string    { return "LOCK_CONFLICT" }

// NewLockConflictError creates a new LockConflictError
func NewLockConflictError(projectID, holderID string, expiresAt time.Time) *LockConflictError {
	return &LockConflictError{ProjectID: projectID, HolderID: holderID, ExpiresAt: expiresAt}
}

// ProvisioningError identifies the table whose DDL failed
type ProvisioningError struct {
	Table string
	Cause error
}

func (e *ProvisioningError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("provisioning failed on table '%s': %v", e.Table, e.Cause)
	}
	return fmt.Sprintf("provisioning failed: %v", e.Cause)
}

func (e *ProvisioningError) HTTPStatus() int { return http.StatusInternalServerError }
func (e *ProvisioningError) Code() string    { return "PROVISIONING_FAILED" }
func (e *ProvisioningError) Unwrap() error   { return e.Cause }

// NewProvisioningError creates a new ProvisioningError
func NewProvisioningError(table string, cause error) *ProvisioningError {
	return &ProvisioningError{Table: table, Cause: cause}
}

// QuotaExceededError represents an exhausted daily generation quota
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily generation quota of %d requests exhausted", e.Limit)
}

func (e *QuotaExceededError) HTTPStatus() int { return http.StatusTooManyRequests }
func (e *QuotaExceededError) Code() string    { return "QUOTA_EXCEEDED" }

// NewQuotaExceededError creates a new QuotaExceededError
func NewQuotaExceededError(limit int) *QuotaExceededError {
	return &QuotaExceededError{Limit: limit}
}

// PermissionError represents insufficient permissions
type PermissionError struct {
	Action   string
	Resource string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: cannot %s %s", e.Action, e.Resource)
}

func (e *PermissionError) HTTPStatus() int { return http.StatusForbidden }
func (e *PermissionError) Code() string    { return "PERMISSION_DENIED" }

// NewPermissionError creates a new PermissionError
func NewPermissionError(action, resource string) *PermissionError {
	return &PermissionError{Action: action, Resource: resource}
}

// UnauthorizedError represents authentication failures
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unauthorized: %s", e.Reason)
	}
	return "unauthorized"
}

func (e *UnauthorizedError) HTTPStatus() int { return http.StatusUnauthorized }
func (e *UnauthorizedError) Code() string    { return "UNAUTHORIZED" }

// NewUnauthorizedError creates a new UnauthorizedError
func NewUnauthorizedError(reason string) *UnauthorizedError {
	return &UnauthorizedError{Reason: reason}
}

// ConflictError represents a conflict with existing data
type ConflictError struct {
	Resource string
	Field    string
	Value    string
}

func (e *ConflictError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("%s already exists with %s='%s'", e.Resource, e.Field, e.Value)
	}
	return fmt.Sprintf("%s already exists", e.Resource)
}

func (e *ConflictError) HTTPStatus() int { return http.StatusConflict }
func (e *ConflictError) Code() string    { return "CONFLICT" }

// NewConflictError creates a new ConflictError
func NewConflictError(resource, field, value string) *ConflictError {
	return &ConflictError{Resource: resource, Field: field, Value: value}
}

// InternalError represents unexpected server errors
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s (caused by: %v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e *InternalError) HTTPStatus() int { return http.StatusInternalServerError }
func (e *InternalError) Code() string    { return "INTERNAL_ERROR" }
func (e *InternalError) Unwrap() error   { return e.Cause }

// NewInternalError creates a new InternalError
func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{Message: message, Cause: cause}
}

// GetHTTPStatus returns the HTTP status code for an error.
// Returns 500 if the error doesn't implement AppError.
func GetHTTPStatus(err error) int {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetErrorCode returns the error code for an error.
// Returns "UNKNOWN_ERROR" if the error doesn't implement AppError.
func GetErrorCode(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return "UNKNOWN_ERROR"
}

// IsSchemaValidation checks if an error is a SchemaValidationError
func IsSchemaValidation(err error) bool {
	var v *SchemaValidationError
	return errors.As(err, &v)
}

// IsLockConflict checks if an error is a LockConflictError
func IsLockConflict(err error) bool {
	var l *LockConflictError
	return errors.As(err, &l)
}

// IsGeneration checks if an error is a GenerationError
func IsGeneration(err error) bool {
	var g *GenerationError
	return errors.As(err, &g)
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ToResponse converts an error to an ErrorResponse. Schema validation and
// lock conflict errors carry machine-readable details.
func ToResponse(err error) ErrorResponse {
	resp := ErrorResponse{
		Code:    GetErrorCode(err),
		Message: err.Error(),
	}

	var v *SchemaValidationError
	if errors.As(err, &v) {
		resp.Details = map[string]any{"violations": v.Violations}
		return resp
	}

	var l *LockConflictError
	if errors.As(err, &l) {
		resp.Details = map[string]any{
			"locked_by":  l.HolderID,
			"expires_at": l.ExpiresAt.UTC().Format(time.RFC3339),
		}
	}
	return resp
}

func joinLimited(items []string, max int) string {
	if len(items) == 0 {
		return ""
	}
	out := ""
	for i, s := range items {
		if i == max {
			out += fmt.Sprintf("; and %d more", len(items)-max)
			break
		}
		if i > 0 {
			out += "; "
		}
		out += s
	}
	return out
}
