package dto

import (
	"time"

	consentDomain "github.com/allisson/compliance/internal/consent/domain"
)

// ConsentResponse represents a consent in API responses. Parent and child
// names, emails and token hashes are never returned.
type ConsentResponse struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	ChildAge          int        `json:"child_age"`
	ConsentTypes      []string   `json:"consent_types"`
	FirstConsentDate  *time.Time `json:"first_consent_date,omitempty"`
	SecondConsentDate *time.Time `json:"second_consent_date,omitempty"`
	ExpiryDate        time.Time  `json:"expiry_date"`
	ValidUntil        *time.Time `json:"valid_until,omitempty"`
	StudentID         *string    `json:"student_id,omitempty"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// MapConsentToResponse converts a domain consent to an API response.
func MapConsentToResponse(consent *consentDomain.Consent) ConsentResponse {
	types := make([]string, len(consent.ConsentTypes))
	for i, t := range consent.ConsentTypes {
		types[i] = string(t)
	}

	var studentID *string
	if consent.StudentID != nil {
		id := consent.StudentID.String()
		studentID = &id
	}

	return ConsentResponse{
		ID:                consent.ID.String(),
		Status:            string(consent.Status),
		ChildAge:          consent.ChildAge,
		ConsentTypes:      types,
		FirstConsentDate:  consent.FirstConsentDate,
		SecondConsentDate: consent.SecondConsentDate,
		ExpiryDate:        consent.ExpiryDate,
		ValidUntil:        consent.ValidUntil,
		StudentID:         studentID,
		RevokedAt:         consent.RevokedAt,
		CreatedAt:         consent.CreatedAt,
	}
}

// ConsentValidityResponse reports whether a student's data may be processed.
type ConsentValidityResponse struct {
	StudentID   string `json:"student_id"`
	ConsentType string `json:"consent_type"`
	Valid       bool   `json:"valid"`
}
