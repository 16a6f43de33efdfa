// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/minerva-erp/osflow/pkg/collaborators"
	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/minerva-erp/osflow/pkg/persistence"
	"github.com/minerva-erp/osflow/pkg/steps"
)

var (
	// ErrValidation marks rejected input (422).
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized marks a role that may not perform the operation (403).
	ErrUnauthorized = errors.New("not authorized")

	// ErrPrecondition marks a transition not allowed in the current state (409).
	ErrPrecondition = errors.New("precondition failed")

	// ErrConcurrencyConflict marks a stale expected version (409).
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrCollaborator marks a failed external dependency (503).
	ErrCollaborator = errors.New("collaborator failure")

	ErrOrderNotFound        = persistence.ErrOrderNotFound
	ErrApprovalItemNotFound = persistence.ErrApprovalItemNotFound
)

// ValidationError carries every field-level problem of the rejected input.
type ValidationError struct {
	Op      string
	Message string
	Fields  []steps.FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	fields := make([]string, len(e.Fields))
	for i, field := range e.Fields {
		fields[i] = field.String()
	}

	return fmt.Sprintf("%s: %s: %s", e.Op, e.Message, strings.Join(fields, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// AuthorizationError reports who tried what without the right role.
type AuthorizationError struct {
	Op        string
	UserID    string
	RoleLevel models.RoleLevel
	Reason    string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: user %q (%s) %s", e.Op, e.UserID, e.RoleLevel, e.Reason)
}

func (e *AuthorizationError) Unwrap() error {
	return ErrUnauthorized
}

// PreconditionError reports a transition the current state does not allow.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

// ConcurrencyConflictError reports that the order moved past the version the caller saw.
type ConcurrencyConflictError struct {
	Op       string
	OrderID  string
	Expected int64
	Actual   int64 // 0 when the conflict surfaced at commit time
	Err      error
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Actual > 0 {
		return fmt.Sprintf("%s: order %s is at version %d, expected %d", e.Op, e.OrderID, e.Actual, e.Expected)
	}

	return fmt.Sprintf("%s: order %s changed since version %d", e.Op, e.OrderID, e.Expected)
}

func (e *ConcurrencyConflictError) Unwrap() error {
	return e.Err
}

func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// CollaboratorFailure reports an external dependency that failed before commit.
type CollaboratorFailure struct {
	Op           string
	Collaborator string
	Err          error
}

func (e *CollaboratorFailure) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Op, e.Collaborator, e.Err)
}

func (e *CollaboratorFailure) Unwrap() error {
	return e.Err
}

func (e *CollaboratorFailure) Is(target error) bool {
	return target == ErrCollaborator
}

// IsValidationError checks if an error should return HTTP 422.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsAuthorizationError checks if an error should return HTTP 403.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsPreconditionError checks if an error should return HTTP 409.
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

// IsConcurrencyConflict checks if an error is a stale version.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsCollaboratorFailure checks if an error should return HTTP 503.
func IsCollaboratorFailure(err error) bool {
	return errors.Is(err, ErrCollaborator)
}

// IsNotFound checks if an error should return HTTP 404.
func IsNotFound(err error) bool {
	return persistence.IsOrderNotFound(err) || persistence.IsApprovalItemNotFound(err)
}

func validationFailed(op, message string, fields ...steps.FieldError) *ValidationError {
	return &ValidationError{Op: op, Message: message, Fields: fields}
}

func unauthorized(op string, rc models.RoleContext, reason string) *AuthorizationError {
	return &AuthorizationError{Op: op, UserID: rc.UserID, RoleLevel: rc.RoleLevel, Reason: reason}
}

func preconditionFailed(op, format string, args ...any) *PreconditionError {
	return &PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

func collaboratorFailed(op, collaborator string, err error) *CollaboratorFailure {
	return &CollaboratorFailure{Op: op, Collaborator: collaborator, Err: err}
}

func fieldError(field, message string) steps.FieldError {
	return steps.FieldError{Field: field, Message: message}
}

// fieldErrors flattens validator errors into field errors keyed by struct field.
func fieldErrors(err error) []steps.FieldError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []steps.FieldError{{Message: err.Error()}}
	}

	fields := make([]steps.FieldError, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, fieldError(fieldErr.Field(), "failed on the '"+fieldErr.Tag()+"' rule"))
	}

	return fields
}

func isClientNotFound(err error) bool {
	return errors.Is(err, collaborators.ErrClientNotFound)
}
