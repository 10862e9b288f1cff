// Package service provides the cryptographic gateway used by the compliance core:
// AEAD envelope encryption, SHA-256 digests, random tokens and HKDF key derivation.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/compliance/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt returns ciphertext with the authentication tag appended and the random nonce used.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt opens ciphertext (tag appended) using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// Gateway is the single entry point for cryptography in the compliance core.
type Gateway interface {
	// EncryptEnvelope seals plaintext into an Envelope with a fresh random nonce.
	EncryptEnvelope(plaintext []byte) (*cryptoDomain.Envelope, error)

	// DecryptEnvelope opens an Envelope. Tampering yields ErrDecryptionFailed.
	DecryptEnvelope(envelope *cryptoDomain.Envelope) ([]byte, error)

	// SHA256 returns the lowercase hex SHA-256 digest of value.
	SHA256(value string) string

	// RandomToken returns 32 random bytes encoded as 64 hex characters.
	RandomToken() (string, error)

	// DeriveKey derives a 32-byte subkey from the data key bound to info.
	DeriveKey(info string) ([]byte, error)
}

// KMSService opens KMS keepers used to wrap the data key at rest.
type KMSService interface {
	// OpenKeeper opens a keeper for the given gocloud.dev secrets URL.
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}
