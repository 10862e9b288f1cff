package app

import (
	"fmt"

	auditHTTP "github.com/allisson/compliance/internal/audit/http"
	auditRepository "github.com/allisson/compliance/internal/audit/repository"
	auditUseCase "github.com/allisson/compliance/internal/audit/usecase"
)

// AuditUseCase returns the audit log use case.
func (c *Container) AuditUseCase() (auditUseCase.UseCase, error) {
	err := c.once(&c.auditUseCaseInit, "auditUseCase", func() error {
		var err error
		c.auditUseCase, err = c.initAuditUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.auditUseCase, nil
}

// AuditHandler returns the audit log HTTP handler.
func (c *Container) AuditHandler() (*auditHTTP.AuditHandler, error) {
	err := c.once(&c.auditHandlerInit, "auditHandler", func() error {
		useCase, err := c.AuditUseCase()
		if err != nil {
			return fmt.Errorf("failed to get audit use case for audit handler: %w", err)
		}
		c.auditHandler = auditHTTP.NewAuditHandler(useCase, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.auditHandler, nil
}

// auditEntryRepository is shared by the audit use case and the audit_log retention adapter.
func (c *Container) auditEntryRepository() (*auditRepository.AuditEntryRepository, error) {
	db, dialect, err := c.dbAndDialect()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit entry repository: %w", err)
	}
	return auditRepository.NewAuditEntryRepository(db, dialect), nil
}

func (c *Container) initAuditUseCase() (auditUseCase.UseCase, error) {
	entries, err := c.auditEntryRepository()
	if err != nil {
		return nil, err
	}

	db, dialect, err := c.dbAndDialect()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for security alert repository: %w", err)
	}

	checksummer, err := c.Checksummer()
	if err != nil {
		return nil, fmt.Errorf("failed to get checksummer for audit use case: %w", err)
	}

	gateway, err := c.CryptoGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto gateway for audit use case: %w", err)
	}

	baseUseCase := auditUseCase.NewAuditUseCase(
		auditUseCase.Config{
			ReadThreshold:   c.config.AnomalyReadThreshold,
			ReadWindow:      c.config.AnomalyReadWindow,
			DeniedThreshold: c.config.AnomalyDeniedThreshold,
			DeniedWindow:    c.config.AnomalyDeniedWindow,
		},
		entries,
		auditRepository.NewSecurityAlertRepository(db, dialect),
		checksummer,
		gateway,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for audit use case: %w", err)
		}
		return auditUseCase.NewAuditUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
