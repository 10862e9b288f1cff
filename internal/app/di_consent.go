package app

import (
	"fmt"

	consentHTTP "github.com/allisson/compliance/internal/consent/http"
	consentRepository "github.com/allisson/compliance/internal/consent/repository"
	consentUseCase "github.com/allisson/compliance/internal/consent/usecase"
)

// ConsentUseCase returns the parental consent use case.
func (c *Container) ConsentUseCase() (consentUseCase.UseCase, error) {
	err := c.once(&c.consentUseCaseInit, "consentUseCase", func() error {
		var err error
		c.consentUseCase, err = c.initConsentUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.consentUseCase, nil
}

// ConsentHandler returns the parental consent HTTP handler.
func (c *Container) ConsentHandler() (*consentHTTP.ConsentHandler, error) {
	err := c.once(&c.consentHandlerInit, "consentHandler", func() error {
		useCase, err := c.ConsentUseCase()
		if err != nil {
			return fmt.Errorf("failed to get consent use case for consent handler: %w", err)
		}
		c.consentHandler = consentHTTP.NewConsentHandler(useCase, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.consentHandler, nil
}

// consentRepository is shared by the consent use case and the parental_consent retention adapter.
func (c *Container) consentRepository() (*consentRepository.ConsentRepository, error) {
	db, dialect, err := c.dbAndDialect()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for consent repository: %w", err)
	}
	return consentRepository.NewConsentRepository(db, dialect), nil
}

func (c *Container) initConsentUseCase() (consentUseCase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for consent use case: %w", err)
	}

	consents, err := c.consentRepository()
	if err != nil {
		return nil, err
	}
	parents, err := c.ParentRepository()
	if err != nil {
		return nil, err
	}
	students, err := c.StudentRepository()
	if err != nil {
		return nil, err
	}

	gateway, err := c.CryptoGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto gateway for consent use case: %w", err)
	}

	audit, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for consent use case: %w", err)
	}

	notifier, err := c.Notifier()
	if err != nil {
		return nil, err
	}

	anonymizer, err := c.AnonymizationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get anonymization use case for consent use case: %w", err)
	}

	baseUseCase := consentUseCase.NewConsentUseCase(
		consentUseCase.Config{
			Expiry:          c.config.ConsentExpiry,
			Validity:        c.config.ConsentValidity,
			ExpiryBatchSize: c.config.RetentionBatchSize,
		},
		txManager,
		consents,
		parents,
		students,
		gateway,
		audit,
		notifier,
		anonymizer,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for consent use case: %w", err)
		}
		return consentUseCase.NewConsentUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
