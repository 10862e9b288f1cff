package usecase

import "strings"

// RedactedValue replaces PII values in anonymized audit details.
const RedactedValue = "[REDACTED]"

var piiKeys = map[string]bool{
	"first_name":   true,
	"last_name":    true,
	"name":         true,
	"child_name":   true,
	"parent_name":  true,
	"email":        true,
	"parent_email": true,
	"phone":        true,
	"address":      true,
	"birth_date":   true,
	"ip_address":   true,
	"user_agent":   true,
}

// redactPII blanks PII keys at any depth and returns how many values were replaced.
func redactPII(value any) int {
	count := 0
	switch v := value.(type) {
	case map[string]any:
		for key, inner := range v {
			if piiKeys[strings.ToLower(key)] {
				if inner != nil && inner != RedactedValue {
					v[key] = RedactedValue
					count++
				}
				continue
			}
			count += redactPII(inner)
		}
	case []any:
		for _, inner := range v {
			count += redactPII(inner)
		}
	}
	return count
}
