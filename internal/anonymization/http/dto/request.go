// Package dto provides data transfer objects for the anonymization job endpoints.
package dto

import (
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	customValidation "github.com/allisson/compliance/internal/validation"
)

// ScheduleAnonymizationRequest contains the parameters for scheduling a job.
type ScheduleAnonymizationRequest struct {
	EntityType         string     `json:"entity_type"`
	EntityID           string     `json:"entity_id"`
	Reason             string     `json:"reason"`
	PreserveStatistics bool       `json:"preserve_statistics"`
	ScheduledFor       *time.Time `json:"scheduled_for,omitempty"`
}

// Validate checks if the request is valid.
func (r *ScheduleAnonymizationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EntityType,
			validation.Required,
			validation.In(
				string(auditDomain.EntityStudent),
				string(auditDomain.EntityParent),
				string(auditDomain.EntitySession),
			).Error("must be one of student, parent, session"),
		),
		validation.Field(&r.EntityID, validation.Required, customValidation.UUID),
		validation.Field(&r.Reason,
			validation.Required,
			validation.By(func(value any) error {
				if !anonymizationDomain.Reason(r.Reason).Valid() {
					return validation.NewError("validation_reason", "unknown reason")
				}
				return nil
			}),
		),
	)
}

// ScheduleInput converts the request to a domain input. Validate must pass first.
func (r *ScheduleAnonymizationRequest) ScheduleInput(requestedBy *string) *anonymizationDomain.ScheduleInput {
	return &anonymizationDomain.ScheduleInput{
		EntityType:         auditDomain.EntityType(r.EntityType),
		EntityID:           uuid.MustParse(r.EntityID),
		Reason:             anonymizationDomain.Reason(r.Reason),
		PreserveStatistics: r.PreserveStatistics,
		ScheduledFor:       r.ScheduledFor,
		RequestedBy:        requestedBy,
	}
}
