package services

import (
	"time"

	"github.com/minerva-erp/osflow/pkg/models"
)

// Transition outcomes reported to the Recorder.
const (
	OutcomeSuccess      = "success"
	OutcomeValidation   = "validation_error"
	OutcomeUnauthorized = "unauthorized"
	OutcomePrecondition = "precondition_failed"
	OutcomeConflict     = "conflict"
	OutcomeCollaborator = "collaborator_failure"
	OutcomeError        = "error"
)

// Recorder receives transition and approval measurements.
type Recorder interface {
	Transition(osType models.OSType, operation, outcome string, duration time.Duration)
	ApprovalDecision(kind models.ApprovalKind, status models.ApprovalStatus)
}

type nopRecorder struct{}

func (nopRecorder) Transition(models.OSType, string, string, time.Duration) {}

func (nopRecorder) ApprovalDecision(models.ApprovalKind, models.ApprovalStatus) {}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsValidationError(err):
		return OutcomeValidation
	case IsAuthorizationError(err):
		return OutcomeUnauthorized
	case IsPreconditionError(err):
		return OutcomePrecondition
	case IsConcurrencyConflict(err):
		return OutcomeConflict
	case IsCollaboratorFailure(err):
		return OutcomeCollaborator
	default:
		return OutcomeError
	}
}
