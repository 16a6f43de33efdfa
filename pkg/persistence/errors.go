package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrOrderNotFound indicates an order was not found by the given identifier.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderAlreadyExists indicates an order was created with an identifier already in use.
	ErrOrderAlreadyExists = errors.New("order already exists")

	// ErrApprovalItemNotFound indicates an approval item was not found.
	ErrApprovalItemNotFound = errors.New("approval item not found")

	// ErrVersionConflict indicates the stored version differs from the expected one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrEmptyTransition indicates a commit with nothing to write.
	ErrEmptyTransition = errors.New("empty transition")

	// ErrInvalidTransition indicates a commit whose versions or identifiers are inconsistent.
	ErrInvalidTransition = errors.New("invalid transition")
)

// CommitError wraps commit failures with the record that caused them.
type CommitError struct {
	Op       string // Operation being performed (e.g., "Commit", "GetByID")
	Kind     string // "order" or "approval_item"
	ID       string // Record identifier
	Expected int64  // Expected version, when relevant
	Err      error  // Underlying error
}

func (e *CommitError) Error() string {
	if errors.Is(e.Err, ErrVersionConflict) {
		return fmt.Sprintf("%s operation failed for %s %s: expected version %d: %v", e.Op, e.Kind, e.ID, e.Expected, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for commit errors.
func (e *CommitError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOrderError creates a new error for an order record.
func NewOrderError(op, id string, expected int64, err error) *CommitError {
	return &CommitError{Op: op, Kind: "order", ID: id, Expected: expected, Err: err}
}

// NewApprovalItemError creates a new error for an approval item record.
func NewApprovalItemError(op, id string, expected int64, err error) *CommitError {
	return &CommitError{Op: op, Kind: "approval_item", ID: id, Expected: expected, Err: err}
}

// IsOrderNotFound checks if an error indicates an order was not found.
func IsOrderNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

// IsApprovalItemNotFound checks if an error indicates an approval item was not found.
func IsApprovalItemNotFound(err error) bool {
	return errors.Is(err, ErrApprovalItemNotFound)
}

// IsVersionConflict checks if an error indicates a concurrent modification.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsOrderAlreadyExists checks if an error indicates a duplicate order identifier.
func IsOrderAlreadyExists(err error) bool {
	return errors.Is(err, ErrOrderAlreadyExists)
}
