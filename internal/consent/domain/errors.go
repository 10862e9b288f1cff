package domain

import (
	"github.com/allisson/compliance/internal/errors"
)

var (
	// ErrConsentNotFound indicates the consent does not exist.
	ErrConsentNotFound = errors.Wrap(errors.ErrNotFound, "consent not found")

	// ErrInvalidToken indicates no consent matches the confirmation token.
	ErrInvalidToken = errors.Wrap(errors.ErrNotFound, "invalid consent token")

	// ErrConsentExpired indicates the confirmation window has closed.
	ErrConsentExpired = errors.Wrap(errors.ErrExpired, "consent token expired")

	// ErrConsentAlreadyProcessed indicates the consent is no longer pending.
	ErrConsentAlreadyProcessed = errors.Wrap(errors.ErrConflict, "consent already processed")

	// ErrPendingConsentExists indicates the parent already has a pending consent.
	ErrPendingConsentExists = errors.Wrap(errors.ErrConflict, "a pending consent already exists for this parent")

	// ErrFirstConsentRequired indicates the second step was attempted before the first.
	ErrFirstConsentRequired = errors.Wrap(errors.ErrConflict, "first consent must be confirmed before the second")

	// ErrRevocationForbidden indicates the caller is not the consenting parent.
	ErrRevocationForbidden = errors.Wrap(errors.ErrForbidden, "only the consenting parent may revoke")
)
