// Package dto provides data transfer objects for the parental consent endpoints.
package dto

import (
	validation "github.com/jellydator/validation"

	consentDomain "github.com/allisson/compliance/internal/consent/domain"
	customValidation "github.com/allisson/compliance/internal/validation"
)

// InitiateConsentRequest contains the parameters for starting a consent.
type InitiateConsentRequest struct {
	ParentEmail  string   `json:"parent_email"`
	ParentName   string   `json:"parent_name"`
	ChildName    string   `json:"child_name"`
	ChildAge     int      `json:"child_age"`
	ConsentTypes []string `json:"consent_types"`
}

// Validate checks the request shape. Business rules are enforced by the use case.
func (r *InitiateConsentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ParentEmail, validation.Required, customValidation.Email),
		validation.Field(&r.ParentName, validation.Required, customValidation.NotBlank),
		validation.Field(&r.ChildName, validation.Required, customValidation.NotBlank),
		validation.Field(&r.ChildAge, validation.Required),
		validation.Field(&r.ConsentTypes, validation.Required),
	)
}

// InitiateInput converts the request to a domain input.
func (r *InitiateConsentRequest) InitiateInput(ipAddress, userAgent string) *consentDomain.InitiateInput {
	types := make([]consentDomain.Type, len(r.ConsentTypes))
	for i, t := range r.ConsentTypes {
		types[i] = consentDomain.Type(t)
	}
	return &consentDomain.InitiateInput{
		ParentEmail:  r.ParentEmail,
		ParentName:   r.ParentName,
		ChildName:    r.ChildName,
		ChildAge:     r.ChildAge,
		ConsentTypes: types,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
	}
}

// ConfirmConsentRequest carries a confirmation token from an email.
type ConfirmConsentRequest struct {
	Token string `json:"token"`
}

// Validate checks if the request is valid.
func (r *ConfirmConsentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Token, validation.Required, customValidation.HexToken),
	)
}

// RevokeConsentRequest contains the parameters for withdrawing a consent.
type RevokeConsentRequest struct {
	ParentEmail string `json:"parent_email"`
	Reason      string `json:"reason"`
}

// Validate checks if the request is valid.
func (r *RevokeConsentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ParentEmail, validation.Required, customValidation.Email),
		validation.Field(&r.Reason, validation.Required, customValidation.NotBlank, validation.Length(1, 500)),
	)
}
