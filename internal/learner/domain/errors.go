package domain

import (
	"github.com/allisson/compliance/internal/errors"
)

var (
	// ErrParentNotFound indicates the parent does not exist.
	ErrParentNotFound = errors.Wrap(errors.ErrNotFound, "parent not found")

	// ErrStudentNotFound indicates the student does not exist.
	ErrStudentNotFound = errors.Wrap(errors.ErrNotFound, "student not found")

	// ErrSessionNotFound indicates the session does not exist.
	ErrSessionNotFound = errors.Wrap(errors.ErrNotFound, "session not found")

	// ErrParentAlreadyExists indicates a parent with the same email exists.
	ErrParentAlreadyExists = errors.Wrap(errors.ErrConflict, "parent already exists")
)
