package app

import (
	"fmt"

	learnerRepository "github.com/allisson/compliance/internal/learner/repository"
)

// StudentRepository returns the student repository.
func (c *Container) StudentRepository() (*learnerRepository.StudentRepository, error) {
	err := c.once(&c.studentRepositoryInit, "studentRepository", func() error {
		db, dialect, err := c.dbAndDialect()
		if err != nil {
			return fmt.Errorf("failed to get database for student repository: %w", err)
		}
		c.studentRepository = learnerRepository.NewStudentRepository(db, dialect)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.studentRepository, nil
}

// ParentRepository returns the parent repository.
func (c *Container) ParentRepository() (*learnerRepository.ParentRepository, error) {
	err := c.once(&c.parentRepositoryInit, "parentRepository", func() error {
		db, dialect, err := c.dbAndDialect()
		if err != nil {
			return fmt.Errorf("failed to get database for parent repository: %w", err)
		}
		c.parentRepository = learnerRepository.NewParentRepository(db, dialect)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.parentRepository, nil
}

// SessionRepository returns the session repository.
func (c *Container) SessionRepository() (*learnerRepository.SessionRepository, error) {
	err := c.once(&c.sessionRepositoryInit, "sessionRepository", func() error {
		db, dialect, err := c.dbAndDialect()
		if err != nil {
			return fmt.Errorf("failed to get database for session repository: %w", err)
		}
		c.sessionRepository = learnerRepository.NewSessionRepository(db, dialect)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.sessionRepository, nil
}
