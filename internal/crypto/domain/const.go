// Package domain defines the envelope encryption primitives shared by the compliance core.
package domain

// Algorithm represents the AEAD algorithm used to seal an envelope.
//
// Both supported algorithms use a 256-bit key, a 12-byte nonce and a 16-byte
// authentication tag, so envelopes produced by either have the same shape.
type Algorithm string

const (
	// AESGCM represents AES-256-GCM. Preferred on CPUs with AES-NI.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents ChaCha20-Poly1305. Preferred where AES hardware support is missing.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// KeySize is the required size in bytes of every data key.
const KeySize = 32

// TagSize is the size in bytes of the AEAD authentication tag for both algorithms.
const TagSize = 16

// ParseAlgorithm converts a configuration string into an Algorithm.
func ParseAlgorithm(value string) (Algorithm, error) {
	switch Algorithm(value) {
	case AESGCM, ChaCha20:
		return Algorithm(value), nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
