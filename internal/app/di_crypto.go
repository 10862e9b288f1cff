package app

import (
	"context"
	"fmt"
	"log/slog"

	auditService "github.com/allisson/compliance/internal/audit/service"
	cryptoDomain "github.com/allisson/compliance/internal/crypto/domain"
	cryptoService "github.com/allisson/compliance/internal/crypto/service"
)

// KMSService returns the KMS service used to unwrap the data key.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// CryptoGateway returns the gateway built from DATA_KEY (unwrapped through
// KMS_KEY_URI when set) and CRYPTO_ALGORITHM.
func (c *Container) CryptoGateway() (cryptoService.Gateway, error) {
	err := c.once(&c.gatewayInit, "gateway", func() error {
		var err error
		c.gateway, err = c.initCryptoGateway()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.gateway, nil
}

// Checksummer returns the audit entry checksummer keyed from the gateway.
func (c *Container) Checksummer() (auditService.Checksummer, error) {
	err := c.once(&c.checksummerInit, "checksummer", func() error {
		gateway, err := c.CryptoGateway()
		if err != nil {
			return fmt.Errorf("failed to get crypto gateway for checksummer: %w", err)
		}
		c.checksummer, err = auditService.NewChecksummer(gateway)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.checksummer, nil
}

func (c *Container) initCryptoGateway() (cryptoService.Gateway, error) {
	alg, err := cryptoDomain.ParseAlgorithm(c.config.CryptoAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid crypto algorithm %q: %w", c.config.CryptoAlgorithm, err)
	}

	dataKey, err := cryptoService.LoadDataKey(
		context.Background(),
		c.KMSService(),
		c.config.DataKey,
		c.config.KMSKeyURI,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load data key: %w", err)
	}
	// NewGateway keeps its own copy.
	defer cryptoDomain.Zero(dataKey)

	gateway, err := cryptoService.NewGateway(c.AEADManager(), dataKey, alg)
	if err != nil {
		return nil, fmt.Errorf("failed to create crypto gateway: %w", err)
	}

	c.Logger().Info("crypto gateway ready",
		slog.String("algorithm", string(alg)),
		slog.Bool("kms", c.config.KMSKeyURI != ""),
	)
	return gateway, nil
}
