// Package dto provides data transfer objects for the retention policy endpoints.
package dto

import (
	validation "github.com/jellydator/validation"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
	customValidation "github.com/allisson/compliance/internal/validation"
)

// CreatePolicyRequest contains the parameters for creating a retention policy.
type CreatePolicyRequest struct {
	PolicyName          string   `json:"policy_name"`
	EntityType          string   `json:"entity_type"`
	RetentionPeriodDays int      `json:"retention_period_days"`
	TriggerCondition    string   `json:"trigger_condition"`
	Action              string   `json:"action"`
	Priority            int      `json:"priority"`
	LegalBasis          string   `json:"legal_basis"`
	Exceptions          []string `json:"exceptions"`
	NotificationDays    int      `json:"notification_days"`
	Active              *bool    `json:"active,omitempty"`
}

// Validate checks the request shape. Legal bounds are enforced by the use case.
func (r *CreatePolicyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PolicyName, validation.Required, customValidation.NotBlank, validation.Length(1, 100)),
		validation.Field(&r.EntityType, validation.Required, customValidation.NoWhitespace),
		validation.Field(&r.RetentionPeriodDays, validation.Required, validation.Min(1)),
		validation.Field(&r.Action,
			validation.Required,
			validation.By(func(value any) error {
				if !retentionDomain.Action(r.Action).Valid() {
					return validation.NewError("validation_action", "must be one of delete, anonymize, archive, notify_only")
				}
				return nil
			}),
		),
		validation.Field(&r.LegalBasis, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Exceptions, validation.Each(validation.By(func(value any) error {
			if !retentionDomain.Exception(value.(string)).Valid() {
				return validation.NewError("validation_exception", "unknown exception")
			}
			return nil
		}))),
		validation.Field(&r.NotificationDays, validation.Min(0)),
		validation.Field(&r.Priority, validation.Min(0)),
	)
}

// CreatePolicyInput converts the request to a domain input.
func (r *CreatePolicyRequest) CreatePolicyInput() *retentionDomain.CreatePolicyInput {
	exceptions := make([]retentionDomain.Exception, 0, len(r.Exceptions))
	for _, e := range r.Exceptions {
		exceptions = append(exceptions, retentionDomain.Exception(e))
	}
	return &retentionDomain.CreatePolicyInput{
		Name:                r.PolicyName,
		EntityType:          auditDomain.EntityType(r.EntityType),
		RetentionPeriodDays: r.RetentionPeriodDays,
		TriggerCondition:    r.TriggerCondition,
		Action:              retentionDomain.Action(r.Action),
		Priority:            r.Priority,
		LegalBasis:          r.LegalBasis,
		Exceptions:          exceptions,
		NotificationDays:    r.NotificationDays,
		Active:              r.Active,
	}
}

// SetPolicyActiveRequest enables or disables a policy.
type SetPolicyActiveRequest struct {
	Active *bool `json:"active"`
}

// Validate checks if the request is valid.
func (r *SetPolicyActiveRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Active, validation.NotNil),
	)
}
