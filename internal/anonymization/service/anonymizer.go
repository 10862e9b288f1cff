// Package service implements the field-level anonymization strategies.
package service

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
)

const (
	maskChar         = '*'
	generalizedValue = "[GENERALIZED]"
	alphanumeric     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Hasher computes hex-encoded SHA-256 digests.
type Hasher interface {
	SHA256(value string) string
}

// Anonymizer applies anonymization strategies to single field values.
type Anonymizer struct {
	hasher Hasher
}

// NewAnonymizer creates a new Anonymizer.
func NewAnonymizer(hasher Hasher) *Anonymizer {
	return &Anonymizer{hasher: hasher}
}

// Apply returns the anonymized form of value according to rule. Nil values stay nil.
func (a *Anonymizer) Apply(rule anonymizationDomain.FieldRule, value any) (any, error) {
	switch rule.Strategy {
	case anonymizationDomain.StrategyRemove:
		return nil, nil
	case anonymizationDomain.StrategySubstitute:
		return Substitute(rule.Field, rule.Replacement), nil
	}

	if value == nil {
		return nil, nil
	}

	switch rule.Strategy {
	case anonymizationDomain.StrategyHash:
		return a.hasher.SHA256(stringify(value)), nil
	case anonymizationDomain.StrategyMask:
		return Mask(stringify(value), rule.PreserveFormat), nil
	case anonymizationDomain.StrategyRandomize:
		return Randomize(value, rule.PreserveFormat), nil
	case anonymizationDomain.StrategyGeneralize:
		return Generalize(rule.Field, value), nil
	default:
		return nil, fmt.Errorf("%w: %s", anonymizationDomain.ErrUnknownStrategy, rule.Strategy)
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// Mask keeps the first and last characters and masks the rest. With
// preserveFormat, separators stay in place.
func Mask(value string, preserveFormat bool) string {
	runes := []rune(value)
	if len(runes) <= 2 {
		return strings.Repeat(string(maskChar), len(runes))
	}

	out := make([]rune, len(runes))
	for i, r := range runes {
		switch {
		case i == 0 || i == len(runes)-1:
			out[i] = r
		case preserveFormat && isSeparator(r):
			out[i] = r
		default:
			out[i] = maskChar
		}
	}
	return string(out)
}

func isSeparator(r rune) bool {
	return strings.ContainsRune("- .()+@", r)
}

// Randomize replaces value with random data. With preserveFormat a string keeps
// its character classes (digit, lower, upper) and separators. Without it a
// string becomes a random alphanumeric string of the same length. Other values
// become a fresh random identifier.
func Randomize(value any, preserveFormat bool) any {
	s, ok := value.(string)
	if !ok || s == "" {
		return uuid.NewString()
	}

	runes := []rune(s)
	out := make([]rune, len(runes))
	for i, r := range runes {
		switch {
		case !preserveFormat:
			out[i] = rune(alphanumeric[rand.IntN(len(alphanumeric))])
		case unicode.IsDigit(r):
			out[i] = rune('0' + rand.IntN(10))
		case unicode.IsUpper(r):
			out[i] = rune('A' + rand.IntN(26))
		case unicode.IsLetter(r):
			out[i] = rune('a' + rand.IntN(26))
		default:
			out[i] = r
		}
	}
	return string(out)
}

// Substitute returns replacement when set, otherwise a constant chosen from the
// field name.
func Substitute(field string, replacement any) any {
	if replacement != nil {
		return replacement
	}

	name := strings.ToLower(field)
	switch {
	case strings.Contains(name, "email"):
		return "anonymous@example.com"
	case strings.Contains(name, "name"):
		return "Anonymous User"
	case strings.Contains(name, "phone"):
		return "000-000-0000"
	case strings.Contains(name, "address"):
		return "[REDACTED ADDRESS]"
	default:
		return "[ANONYMIZED]"
	}
}
