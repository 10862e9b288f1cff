package dto

import (
	validation "github.com/jellydator/validation"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

// QueryAuditLogsRequest holds the audit log query string filters.
type QueryAuditLogsRequest struct {
	EntityType    string `form:"entity_type"`
	EntityID      string `form:"entity_id"`
	Action        string `form:"action"`
	UserID        string `form:"user_id"`
	Severity      string `form:"severity"`
	Category      string `form:"category"`
	CorrelationID string `form:"correlation_id"`
	Decrypt       bool   `form:"decrypt"`
}

func enumRule[T ~string](valid func(T) bool, message string) validation.Rule {
	return validation.By(func(value any) error {
		s, _ := value.(string)
		if s == "" || valid(T(s)) {
			return nil
		}
		return validation.NewError("validation_enum", message)
	})
}

// Validate checks the enum filters.
func (r *QueryAuditLogsRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EntityType, enumRule(auditDomain.EntityType.Valid, "unknown entity type")),
		validation.Field(&r.Action, enumRule(auditDomain.Action.Valid, "unknown action")),
		validation.Field(&r.Severity, enumRule(auditDomain.Severity.Valid, "unknown severity")),
		validation.Field(&r.Category, enumRule(auditDomain.Category.Valid, "unknown category")),
		validation.Field(&r.EntityID, validation.Length(0, 255)),
	)
}

// Filter converts the request to a domain filter.
func (r *QueryAuditLogsRequest) Filter() *auditDomain.QueryFilter {
	return &auditDomain.QueryFilter{
		EntityType:    auditDomain.EntityType(r.EntityType),
		EntityID:      r.EntityID,
		Action:        auditDomain.Action(r.Action),
		UserID:        r.UserID,
		Severity:      auditDomain.Severity(r.Severity),
		Category:      auditDomain.Category(r.Category),
		CorrelationID: r.CorrelationID,
		Decrypt:       r.Decrypt,
	}
}
