package domain

import (
	"github.com/allisson/compliance/internal/errors"
)

var (
	// ErrPolicyNotFound indicates the policy does not exist.
	ErrPolicyNotFound = errors.Wrap(errors.ErrNotFound, "retention policy not found")

	// ErrPolicyAlreadyExists indicates a policy with the same name exists.
	ErrPolicyAlreadyExists = errors.Wrap(errors.ErrConflict, "retention policy already exists")

	// ErrRetentionOutOfBounds indicates the period breaks the legal bounds of the entity type.
	ErrRetentionOutOfBounds = errors.Wrap(errors.ErrPolicyViolation, "retention period outside legal bounds")

	// ErrUnsupportedEntity indicates no retention adapter handles the entity type.
	ErrUnsupportedEntity = errors.Wrap(errors.ErrInvalidInput, "entity type not supported by retention")

	// ErrUnsupportedAction indicates the action cannot be applied to the entity type.
	ErrUnsupportedAction = errors.Wrap(errors.ErrInvalidInput, "action not supported for entity type")

	// ErrPolicyInactive indicates an inactive policy was asked to run.
	ErrPolicyInactive = errors.Wrap(errors.ErrConflict, "retention policy is inactive")

	// ErrRunInProgress indicates a retention run is already executing in this process.
	ErrRunInProgress = errors.Wrap(errors.ErrConflict, "retention run already in progress")

	// ErrRecordNotFound indicates no retention record exists for the entity.
	ErrRecordNotFound = errors.Wrap(errors.ErrNotFound, "retention record not found")
)
