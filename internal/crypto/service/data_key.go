package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	cryptoDomain "github.com/allisson/compliance/internal/crypto/domain"
)

// GenerateDataKey returns a fresh random 32-byte data key.
func GenerateDataKey() ([]byte, error) {
	key := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}
	return key, nil
}

// WrapDataKey encrypts key with the KMS keeper at keyURI and returns it base64-encoded.
// When keyURI is empty the key is returned base64-encoded in the clear.
func WrapDataKey(ctx context.Context, kms KMSService, keyURI string, key []byte) (string, error) {
	if keyURI == "" {
		return base64.StdEncoding.EncodeToString(key), nil
	}

	keeper, err := kms.OpenKeeper(ctx, keyURI)
	if err != nil {
		return "", err
	}
	defer func() { _ = keeper.Close() }()

	wrapped, err := keeper.Encrypt(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to wrap data key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// LoadDataKey decodes the configured DATA_KEY and, when keyURI is set, unwraps it
// through the KMS keeper. The returned key is always 32 bytes.
func LoadDataKey(ctx context.Context, kms KMSService, dataKey, keyURI string) ([]byte, error) {
	if dataKey == "" {
		return nil, cryptoDomain.ErrDataKeyNotSet
	}

	raw, err := base64.StdEncoding.DecodeString(dataKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data key: %w", err)
	}

	if keyURI != "" {
		keeper, err := kms.OpenKeeper(ctx, keyURI)
		if err != nil {
			return nil, err
		}
		defer func() { _ = keeper.Close() }()

		wrapped := raw
		raw, err = keeper.Decrypt(ctx, wrapped)
		if err != nil {
			return nil, fmt.Errorf("failed to unwrap data key: %w", err)
		}
	}

	if len(raw) != cryptoDomain.KeySize {
		cryptoDomain.Zero(raw)
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	return raw, nil
}
