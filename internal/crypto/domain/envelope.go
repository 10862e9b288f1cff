package domain

// Envelope is the opaque result of encrypting a payload: ciphertext, the nonce (iv)
// and the detached authentication tag. It is persisted as JSON, with byte slices
// base64-encoded by encoding/json.
type Envelope struct {
	Algorithm  Algorithm `json:"alg"`
	Ciphertext []byte    `json:"cipher"`
	Nonce      []byte    `json:"iv"`
	Tag        []byte    `json:"tag"`
}

// Sealed returns ciphertext||tag, the layout expected by cipher.AEAD.Open.
func (e *Envelope) Sealed() []byte {
	sealed := make([]byte, 0, len(e.Ciphertext)+len(e.Tag))
	sealed = append(sealed, e.Ciphertext...)
	return append(sealed, e.Tag...)
}

// Valid reports whether the envelope has the fields needed for decryption.
func (e *Envelope) Valid() bool {
	return e != nil && e.Algorithm != "" && len(e.Nonce) > 0 && len(e.Tag) == TagSize
}
