package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cryptoDomain "github.com/allisson/compliance/internal/crypto/domain"
	cryptoService "github.com/allisson/compliance/internal/crypto/service"
)

// RunCreateDataKey generates a 32-byte data key and prints the environment
// variables needed to load it. When kmsKeyURI is set the key is wrapped by the
// KMS keeper (e.g. "hashivault://compliance" or "base64key://..." for local
// development); otherwise it is printed base64-encoded in the clear.
// Key material is zeroed once encoded.
func RunCreateDataKey(
	ctx context.Context,
	kms cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	kmsKeyURI, algorithm string,
) error {
	alg, err := cryptoDomain.ParseAlgorithm(algorithm)
	if err != nil {
		return err
	}

	key, err := cryptoService.GenerateDataKey()
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(key)

	encoded, err := cryptoService.WrapDataKey(ctx, kms, kmsKeyURI, key)
	if err != nil {
		return err
	}

	logger.Info("data key generated", slog.Bool("kms_wrapped", kmsKeyURI != ""))

	_, _ = fmt.Fprintln(writer, "# Data key configuration")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	if kmsKeyURI == "" {
		_, _ = fmt.Fprintln(writer, "# WARNING: the key is not wrapped by a KMS; use --kms-key-uri in production")
	} else {
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	}
	_, _ = fmt.Fprintf(writer, "CRYPTO_ALGORITHM=\"%s\"\n", alg)
	_, _ = fmt.Fprintf(writer, "DATA_KEY=\"%s\"\n", encoded)
	return nil
}
