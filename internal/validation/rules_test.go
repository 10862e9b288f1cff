package validation

import (
	"errors"
	"strings"
	"testing"

	validation "github.com/jellydator/validation"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/compliance/internal/errors"
)

func TestStringRules(t *testing.T) {
	tests := []struct {
		name      string
		rule      validation.Rule
		value     string
		shouldErr bool
	}{
		{name: "email valid", rule: Email, value: "parent@example.com"},
		{name: "email with plus", rule: Email, value: "parent+school@example.fr"},
		{name: "email missing domain", rule: Email, value: "parent@", shouldErr: true},
		{name: "email missing at", rule: Email, value: "parent.example.com", shouldErr: true},
		{name: "not blank valid", rule: NotBlank, value: "Lea"},
		{name: "not blank spaces", rule: NotBlank, value: "   ", shouldErr: true},
		{name: "no whitespace valid", rule: NoWhitespace, value: "Lea"},
		{name: "no whitespace leading", rule: NoWhitespace, value: " Lea", shouldErr: true},
		{name: "hex token valid", rule: HexToken, value: strings.Repeat("ab", 32)},
		{name: "hex token short", rule: HexToken, value: "abcd", shouldErr: true},
		{name: "hex token uppercase", rule: HexToken, value: strings.Repeat("AB", 32), shouldErr: true},
		{name: "uuid valid", rule: UUID, value: "0b9f3c9e-3f0e-4a57-9d61-2d1c4f7a8b10"},
		{name: "uuid invalid", rule: UUID, value: "S1", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.value, tt.rule)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWrapValidationError(t *testing.T) {
	assert.NoError(t, WrapValidationError(nil))

	err := WrapValidationError(errors.New("email: must be a valid email address"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "email: must be a valid email address")
}
