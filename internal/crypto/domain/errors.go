package domain

import (
	"github.com/allisson/compliance/internal/errors"
)

// Cryptographic operation errors.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a data key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDataKeyNotSet indicates DATA_KEY is missing from the configuration.
	ErrDataKeyNotSet = errors.New("data key not set")

	// ErrInvalidEnvelope indicates an envelope is missing its nonce or tag.
	ErrInvalidEnvelope = errors.Wrap(errors.ErrInvalidInput, "invalid envelope")

	// ErrDecryptionFailed indicates a decryption operation failed. The cause (wrong key,
	// tampered ciphertext, wrong nonce) is deliberately not disclosed.
	ErrDecryptionFailed = errors.Wrap(errors.ErrIntegrity, "decryption failed")
)
