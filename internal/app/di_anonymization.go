package app

import (
	"fmt"

	anonymizationHTTP "github.com/allisson/compliance/internal/anonymization/http"
	anonymizationRepository "github.com/allisson/compliance/internal/anonymization/repository"
	anonymizationService "github.com/allisson/compliance/internal/anonymization/service"
	anonymizationUseCase "github.com/allisson/compliance/internal/anonymization/usecase"
)

// AnonymizationUseCase returns the anonymization engine.
func (c *Container) AnonymizationUseCase() (anonymizationUseCase.UseCase, error) {
	err := c.once(&c.anonymizationUseCaseInit, "anonymizationUseCase", func() error {
		var err error
		c.anonymizationUseCase, err = c.initAnonymizationUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.anonymizationUseCase, nil
}

// AnonymizationHandler returns the anonymization HTTP handler.
func (c *Container) AnonymizationHandler() (*anonymizationHTTP.AnonymizationHandler, error) {
	err := c.once(&c.anonymizationHandlerInit, "anonymizationHandler", func() error {
		useCase, err := c.AnonymizationUseCase()
		if err != nil {
			return fmt.Errorf("failed to get anonymization use case for anonymization handler: %w", err)
		}
		c.anonymizationHandler = anonymizationHTTP.NewAnonymizationHandler(useCase, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.anonymizationHandler, nil
}

func (c *Container) initAnonymizationUseCase() (anonymizationUseCase.UseCase, error) {
	db, dialect, err := c.dbAndDialect()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for job repository: %w", err)
	}

	students, err := c.StudentRepository()
	if err != nil {
		return nil, err
	}
	parents, err := c.ParentRepository()
	if err != nil {
		return nil, err
	}
	sessions, err := c.SessionRepository()
	if err != nil {
		return nil, err
	}

	audit, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for anonymization use case: %w", err)
	}

	gateway, err := c.CryptoGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto gateway for anonymization use case: %w", err)
	}

	notifier, err := c.Notifier()
	if err != nil {
		return nil, err
	}

	dispatcher, err := c.Scheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduler for anonymization use case: %w", err)
	}

	handlers := []anonymizationUseCase.EntityHandler{
		anonymizationUseCase.NewStudentHandler(students, sessions, audit),
		anonymizationUseCase.NewParentHandler(parents),
		anonymizationUseCase.NewSessionHandler(sessions),
	}

	baseUseCase := anonymizationUseCase.NewAnonymizationUseCase(
		anonymizationUseCase.Config{
			InactivityDays:    c.config.StudentInactivityDays,
			WarningDaysBefore: c.config.InactivityWarningDays,
			// The inactivity sweep pages through students like a retention batch.
			InactivityBatchSize:  c.config.RetentionBatchSize,
			PreserveOnInactivity: true,
			StaleAfter:           c.config.AnonymizationStaleAfter,
		},
		anonymizationRepository.NewJobRepository(db, dialect),
		students,
		parents,
		handlers,
		anonymizationService.NewAnonymizer(gateway),
		audit,
		notifier,
		dispatcher,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for anonymization use case: %w", err)
		}
		return anonymizationUseCase.NewAnonymizationUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
