package domain

import (
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

// Strategy is a field-level anonymization technique.
type Strategy string

const (
	StrategyHash       Strategy = "hash"
	StrategyMask       Strategy = "mask"
	StrategyRandomize  Strategy = "randomize"
	StrategyRemove     Strategy = "remove"
	StrategyGeneralize Strategy = "generalize"
	StrategySubstitute Strategy = "substitute"
)

// FieldRule binds a field to the strategy applied to it.
type FieldRule struct {
	Field    string
	Strategy Strategy
	// PreserveFormat keeps separators when masking and character classes when randomizing.
	PreserveFormat bool
	// Replacement overrides the default substitute value.
	Replacement any
	// Statistical fields are generalized when statistics are preserved and
	// removed otherwise.
	Statistical bool
}

// Effective returns the rule to apply and whether the field keeps statistical value.
func (r FieldRule) Effective(preserveStatistics bool) (FieldRule, bool) {
	if !r.Statistical {
		return r, false
	}
	if preserveStatistics {
		r.Strategy = StrategyGeneralize
		return r, true
	}
	r.Strategy = StrategyRemove
	return r, false
}

// Record is the anonymizable view of one row, keyed by field name.
type Record struct {
	Fields       map[string]any
	AnonymizedAt *time.Time
}

// Target identifies a record anonymized along with its parent entity.
type Target struct {
	EntityType auditDomain.EntityType
	EntityID   uuid.UUID
}
