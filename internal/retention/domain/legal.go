package domain

import (
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

// LegalRequirement bounds the retention period of an entity category.
type LegalRequirement struct {
	Category             string
	MinimumRetentionDays int
	MaximumRetentionDays int
}

// Allows reports whether days lies inside the bounds, both ends included.
func (r LegalRequirement) Allows(days int) bool {
	return days >= r.MinimumRetentionDays && days <= r.MaximumRetentionDays
}

var legalRequirements = map[auditDomain.EntityType]LegalRequirement{
	auditDomain.EntityStudent:         {Category: "educational_records", MinimumRetentionDays: 365, MaximumRetentionDays: 1825},
	auditDomain.EntityParent:          {Category: "educational_records", MinimumRetentionDays: 365, MaximumRetentionDays: 1825},
	auditDomain.EntityParentalConsent: {Category: "consent_evidence", MinimumRetentionDays: 1825, MaximumRetentionDays: 3650},
	auditDomain.EntitySession:         {Category: "technical_logs", MinimumRetentionDays: 30, MaximumRetentionDays: 395},
	auditDomain.EntityUserSession:     {Category: "technical_logs", MinimumRetentionDays: 30, MaximumRetentionDays: 395},
	auditDomain.EntityAuditLog:        {Category: "security_audit", MinimumRetentionDays: 365, MaximumRetentionDays: 3650},
}

// RequirementFor returns the legal bounds registered for an entity type.
func RequirementFor(entityType auditDomain.EntityType) (LegalRequirement, bool) {
	r, ok := legalRequirements[entityType]
	return r, ok
}

// DefaultPolicies is the policy set installed on a fresh deployment.
func DefaultPolicies() []CreatePolicyInput {
	return []CreatePolicyInput{
		{
			Name:                "student-data",
			EntityType:          auditDomain.EntityStudent,
			RetentionPeriodDays: 3 * 365,
			TriggerCondition:    "last_activity",
			Action:              ActionAnonymize,
			Priority:            10,
			LegalBasis:          "GDPR art. 5(1)(e) storage limitation; educational records of minors",
			Exceptions:          []Exception{ExceptionOngoingAudit, ExceptionRecentActivity},
			NotificationDays:    30,
		},
		{
			Name:                "consent-records",
			EntityType:          auditDomain.EntityParentalConsent,
			RetentionPeriodDays: 7 * 365,
			TriggerCondition:    "last_status_change",
			Action:              ActionArchive,
			Priority:            20,
			LegalBasis:          "GDPR art. 7(1) and art. 8 proof of parental consent",
			Exceptions:          []Exception{ExceptionRegulatoryRequirement},
		},
		{
			Name:                "session-data",
			EntityType:          auditDomain.EntitySession,
			RetentionPeriodDays: 90,
			TriggerCondition:    "last_activity",
			Action:              ActionDelete,
			Priority:            30,
			LegalBasis:          "CNIL guidance on connection logs retention",
		},
		{
			Name:                "audit-logs",
			EntityType:          auditDomain.EntityAuditLog,
			RetentionPeriodDays: 6 * 365,
			TriggerCondition:    "created_at",
			Action:              ActionArchive,
			Priority:            40,
			LegalBasis:          "GDPR art. 5(2) accountability; security audit trail",
		},
	}
}
