package domain

import (
	"github.com/allisson/compliance/internal/errors"
)

// Audit log errors.
var (
	// ErrEntryNotFound indicates the audit entry does not exist.
	ErrEntryNotFound = errors.Wrap(errors.ErrNotFound, "audit entry not found")

	// ErrAlertNotFound indicates the security alert does not exist.
	ErrAlertNotFound = errors.Wrap(errors.ErrNotFound, "security alert not found")

	// ErrAlertAlreadyResolved indicates the alert was resolved before.
	ErrAlertAlreadyResolved = errors.Wrap(errors.ErrConflict, "security alert already resolved")

	// ErrInvalidAction indicates an action outside the known set.
	ErrInvalidAction = errors.Wrap(errors.ErrInvalidInput, "invalid audit action")

	// ErrInvalidEntityType indicates an entity type outside the known set.
	ErrInvalidEntityType = errors.Wrap(errors.ErrInvalidInput, "invalid audit entity type")

	// ErrChecksumMismatch indicates an entry's checksum no longer matches its fields.
	ErrChecksumMismatch = errors.Wrap(errors.ErrIntegrity, "audit entry checksum mismatch")
)
