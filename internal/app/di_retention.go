package app

import (
	"fmt"

	retentionHTTP "github.com/allisson/compliance/internal/retention/http"
	retentionRepository "github.com/allisson/compliance/internal/retention/repository"
	retentionUseCase "github.com/allisson/compliance/internal/retention/usecase"
)

// RetentionUseCase returns the retention policy scheduler.
func (c *Container) RetentionUseCase() (retentionUseCase.UseCase, error) {
	err := c.once(&c.retentionUseCaseInit, "retentionUseCase", func() error {
		var err error
		c.retentionUseCase, err = c.initRetentionUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.retentionUseCase, nil
}

// RetentionHandler returns the retention policy HTTP handler.
func (c *Container) RetentionHandler() (*retentionHTTP.RetentionHandler, error) {
	err := c.once(&c.retentionHandlerInit, "retentionHandler", func() error {
		useCase, err := c.RetentionUseCase()
		if err != nil {
			return fmt.Errorf("failed to get retention use case for retention handler: %w", err)
		}
		c.retentionHandler = retentionHTTP.NewRetentionHandler(useCase, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.retentionHandler, nil
}

// retentionAdapters builds one adapter per entity type a policy can target.
func (c *Container) retentionAdapters() ([]retentionUseCase.EntityAdapter, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, err
	}
	store, err := c.ArchiveStore()
	if err != nil {
		return nil, err
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
	consents, err := c.consentRepository()
	if err != nil {
		return nil, err
	}
	entries, err := c.auditEntryRepository()
	if err != nil {
		return nil, err
	}

	return []retentionUseCase.EntityAdapter{
		retentionUseCase.NewStudentAdapter(txManager, students, parents, sessions, store),
		retentionUseCase.NewParentAdapter(txManager, parents, students, sessions, store),
		retentionUseCase.NewSessionAdapter(sessions, store),
		retentionUseCase.NewConsentAdapter(consents, store),
		retentionUseCase.NewAuditLogAdapter(entries, store),
	}, nil
}

func (c *Container) initRetentionUseCase() (retentionUseCase.UseCase, error) {
	db, dialect, err := c.dbAndDialect()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for retention repositories: %w", err)
	}

	adapters, err := c.retentionAdapters()
	if err != nil {
		return nil, fmt.Errorf("failed to build retention adapters: %w", err)
	}

	anonymizer, err := c.AnonymizationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get anonymization use case for retention use case: %w", err)
	}

	audit, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for retention use case: %w", err)
	}

	notifier, err := c.Notifier()
	if err != nil {
		return nil, err
	}

	baseUseCase := retentionUseCase.NewRetentionUseCase(
		retentionUseCase.Config{BatchSize: c.config.RetentionBatchSize},
		retentionRepository.NewPolicyRepository(db, dialect),
		retentionRepository.NewRecordRepository(db, dialect),
		adapters,
		anonymizer,
		audit,
		notifier,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for retention use case: %w", err)
		}
		return retentionUseCase.NewRetentionUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
