// Package repository persists parents, students and sessions in PostgreSQL or MySQL.
package repository

import (
	"encoding/json"

	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func encodeMetadata(m learnerDomain.Metadata) (string, error) {
	if m == nil {
		m = learnerDomain.Metadata{}
	}
	data, err := json.Marshal(m)
	return string(data), err
}

func decodeMetadata(data []byte) (learnerDomain.Metadata, error) {
	m := learnerDomain.Metadata{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
