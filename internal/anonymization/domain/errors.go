package domain

import (
	"github.com/allisson/compliance/internal/errors"
)

// Anonymization errors.
var (
	// ErrJobNotFound indicates the job does not exist.
	ErrJobNotFound = errors.Wrap(errors.ErrNotFound, "anonymization job not found")

	// ErrJobAlreadyActive indicates a pending or running job already targets the entity.
	ErrJobAlreadyActive = errors.Wrap(errors.ErrConflict, "anonymization job already active for entity")

	// ErrJobNotPending indicates the job has left the pending state.
	ErrJobNotPending = errors.Wrap(errors.ErrConflict, "anonymization job is not pending")

	// ErrJobNotRunning indicates the job has left the running state.
	ErrJobNotRunning = errors.Wrap(errors.ErrConflict, "anonymization job is not running")

	// ErrUnsupportedEntity indicates no handler anonymizes the entity type.
	ErrUnsupportedEntity = errors.Wrap(errors.ErrInvalidInput, "entity type cannot be anonymized")

	// ErrUnknownStrategy indicates a rule names a strategy that does not exist.
	ErrUnknownStrategy = errors.Wrap(errors.ErrInvalidInput, "unknown anonymization strategy")
)

// ErrLeftStatus returns the error reported when a job is no longer in status s.
func ErrLeftStatus(s Status) error {
	if s == StatusRunning {
		return ErrJobNotRunning
	}
	return ErrJobNotPending
}
