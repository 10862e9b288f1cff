// Package service computes and verifies audit entry checksums.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

// ChecksumInfo is the HKDF info string for the checksum key. Bump the version
// to rotate the derivation.
const ChecksumInfo = "audit-log-checksum-v1"

// KeyDeriver derives purpose-bound keys from the data key.
type KeyDeriver interface {
	DeriveKey(info string) ([]byte, error)
}

// Checksummer computes entry checksums.
type Checksummer interface {
	// Compute returns the hex HMAC-SHA256 of the entry's canonical fields.
	Compute(entry *auditDomain.AuditEntry) string

	// Verify reports whether entry.Checksum matches its fields.
	Verify(entry *auditDomain.AuditEntry) bool
}

type checksummer struct {
	key []byte
}

// NewChecksummer derives the checksum key once from deriver.
func NewChecksummer(deriver KeyDeriver) (Checksummer, error) {
	key, err := deriver.DeriveKey(ChecksumInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to derive checksum key: %w", err)
	}
	return &checksummer{key: key}, nil
}

// canonicalize encodes id || entity_type || entity_id || action || user_id ||
// timestamp || details. Variable-length fields are length-prefixed so that no
// two different entries share an encoding.
func canonicalize(entry *auditDomain.AuditEntry) []byte {
	buf := make([]byte, 0, 256+len(entry.Details))

	buf = append(buf, entry.ID[:]...)
	buf = appendLengthPrefixed(buf, []byte(entry.EntityType))
	buf = appendLengthPrefixed(buf, []byte(entry.EntityID))
	buf = appendLengthPrefixed(buf, []byte(entry.Action))

	userID := ""
	if entry.UserID != nil {
		userID = *entry.UserID
	}
	buf = appendLengthPrefixed(buf, []byte(userID))

	buf = binary.BigEndian.AppendUint64(buf, uint64(entry.Timestamp.UnixNano()))
	buf = appendLengthPrefixed(buf, entry.Details)

	return buf
}

func appendLengthPrefixed(buf []byte, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func (c *checksummer) sum(entry *auditDomain.AuditEntry) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(canonicalize(entry))
	return mac.Sum(nil)
}

func (c *checksummer) Compute(entry *auditDomain.AuditEntry) string {
	return hex.EncodeToString(c.sum(entry))
}

func (c *checksummer) Verify(entry *auditDomain.AuditEntry) bool {
	stored, err := hex.DecodeString(entry.Checksum)
	if err != nil {
		return false
	}
	return hmac.Equal(stored, c.sum(entry))
}
