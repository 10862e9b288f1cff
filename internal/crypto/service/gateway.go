package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/compliance/internal/crypto/domain"
)

type gateway struct {
	alg     cryptoDomain.Algorithm
	dataKey []byte
	cipher  AEAD
}

// NewGateway builds a Gateway around a 32-byte data key. The key is copied so the
// caller may zero its own buffer afterwards.
func NewGateway(manager AEADManager, dataKey []byte, alg cryptoDomain.Algorithm) (Gateway, error) {
	if len(dataKey) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	key := make([]byte, len(dataKey))
	copy(key, dataKey)

	cipher, err := manager.CreateCipher(key, alg)
	if err != nil {
		return nil, err
	}

	return &gateway{alg: alg, dataKey: key, cipher: cipher}, nil
}

func (g *gateway) EncryptEnvelope(plaintext []byte) (*cryptoDomain.Envelope, error) {
	sealed, nonce, err := g.cipher.Encrypt(plaintext, nil)
	if err != nil {
		return nil, err
	}

	split := len(sealed) - cryptoDomain.TagSize
	return &cryptoDomain.Envelope{
		Algorithm:  g.alg,
		Ciphertext: sealed[:split],
		Nonce:      nonce,
		Tag:        sealed[split:],
	}, nil
}

func (g *gateway) DecryptEnvelope(envelope *cryptoDomain.Envelope) ([]byte, error) {
	if !envelope.Valid() {
		return nil, cryptoDomain.ErrInvalidEnvelope
	}
	if envelope.Algorithm != g.alg {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}

	plaintext, err := g.cipher.Decrypt(envelope.Sealed(), envelope.Nonce, nil)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

func (g *gateway) SHA256(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func (g *gateway) RandomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (g *gateway) DeriveKey(info string) ([]byte, error) {
	reader := hkdf.New(sha256.New, g.dataKey, nil, []byte(info))

	key := make([]byte, cryptoDomain.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}
