// Package domain defines the audit log entities: tamper-evident entries and the
// security alerts raised by anomaly detection.
package domain

// Action identifies what happened to an entity.
type Action string

const (
	ActionCreate       Action = "create"
	ActionRead         Action = "read"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionExport       Action = "export"
	ActionLogin        Action = "login"
	ActionLogout       Action = "logout"
	ActionAccessDenied Action = "access_denied"

	ActionConsentInitiated      Action = "consent_initiated"
	ActionConsentFirstConfirmed Action = "consent_first_confirmed"
	ActionConsentVerified       Action = "consent_verified"
	ActionConsentRevoked        Action = "consent_revoked"
	ActionConsentExpired        Action = "consent_expired"

	ActionEncrypt Action = "encrypt"
	ActionDecrypt Action = "decrypt"

	ActionAnonymizationScheduled Action = "anonymization_scheduled"
	ActionAnonymizationStarted   Action = "anonymization_started"
	ActionAnonymizationCompleted Action = "anonymization_completed"
	ActionAnonymizationFailed    Action = "anonymization_failed"
	ActionAnonymizationCancelled Action = "anonymization_cancelled"

	ActionRetentionPolicyCreated    Action = "retention_policy_created"
	ActionRetentionNotificationSent Action = "retention_notification_sent"
	ActionRetentionDeleted          Action = "retention_deleted"
	ActionRetentionAnonymized       Action = "retention_anonymized"
	ActionRetentionArchived         Action = "retention_archived"
	ActionRetentionFailed           Action = "retention_failed"

	ActionSecurityAlert Action = "security_alert"
)

// Actions lists every valid Action.
var Actions = []Action{
	ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport,
	ActionLogin, ActionLogout, ActionAccessDenied,
	ActionConsentInitiated, ActionConsentFirstConfirmed, ActionConsentVerified,
	ActionConsentRevoked, ActionConsentExpired,
	ActionEncrypt, ActionDecrypt,
	ActionAnonymizationScheduled, ActionAnonymizationStarted, ActionAnonymizationCompleted,
	ActionAnonymizationFailed, ActionAnonymizationCancelled,
	ActionRetentionPolicyCreated, ActionRetentionNotificationSent, ActionRetentionDeleted,
	ActionRetentionAnonymized, ActionRetentionArchived, ActionRetentionFailed,
	ActionSecurityAlert,
}

// EntityType identifies the kind of entity an entry is about.
type EntityType string

const (
	EntityStudent          EntityType = "student"
	EntityParent           EntityType = "parent"
	EntityParentalConsent  EntityType = "parental_consent"
	EntityUserSession      EntityType = "user_session"
	EntitySession          EntityType = "session"
	EntityAuditLog         EntityType = "audit_log"
	EntityRetentionPolicy  EntityType = "retention_policy"
	EntityAnonymizationJob EntityType = "anonymization_job"
	EntitySecurityAlert    EntityType = "security_alert"
	EntitySystem           EntityType = "system"
)

// EntityTypes lists every valid EntityType.
var EntityTypes = []EntityType{
	EntityStudent, EntityParent, EntityParentalConsent, EntityUserSession, EntitySession,
	EntityAuditLog, EntityRetentionPolicy, EntityAnonymizationJob, EntitySecurityAlert, EntitySystem,
}

// Severity ranks how important an entry or alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category groups entries for reporting.
type Category string

const (
	CategoryDataAccess        Category = "data_access"
	CategoryDataModification  Category = "data_modification"
	CategoryConsentManagement Category = "consent_management"
	CategorySecurity          Category = "security"
	CategoryCompliance        Category = "compliance"
	CategorySystem            Category = "system"
	CategoryUserBehavior      Category = "user_behavior"
)

// AlertType identifies the anomaly an alert was raised for.
type AlertType string

const (
	AlertSuspiciousAccess     AlertType = "suspicious_access"
	AlertMultipleFailedLogins AlertType = "multiple_failed_logins"
)

// encryptedActions and encryptedEntities decide which details are stored encrypted.
var (
	encryptedActions = map[Action]bool{
		ActionCreate: true, ActionUpdate: true, ActionExport: true, ActionRead: true,
	}
	encryptedEntities = map[EntityType]bool{
		EntityStudent: true, EntityParent: true, EntityParentalConsent: true,
	}
)

// RequiresEncryption reports whether details for this action on this entity type
// carry personal data and must be stored as an encrypted envelope.
func RequiresEncryption(action Action, entityType EntityType) bool {
	return encryptedActions[action] && encryptedEntities[entityType]
}

// DefaultCategory derives a category from the action when the caller gives none.
func DefaultCategory(action Action) Category {
	switch action {
	case ActionRead, ActionExport:
		return CategoryDataAccess
	case ActionCreate, ActionUpdate, ActionDelete:
		return CategoryDataModification
	case ActionConsentInitiated, ActionConsentFirstConfirmed, ActionConsentVerified,
		ActionConsentRevoked, ActionConsentExpired:
		return CategoryConsentManagement
	case ActionAccessDenied, ActionSecurityAlert, ActionEncrypt, ActionDecrypt:
		return CategorySecurity
	case ActionLogin, ActionLogout:
		return CategoryUserBehavior
	case ActionAnonymizationScheduled, ActionAnonymizationStarted, ActionAnonymizationCompleted,
		ActionAnonymizationFailed, ActionAnonymizationCancelled,
		ActionRetentionPolicyCreated, ActionRetentionNotificationSent, ActionRetentionDeleted,
		ActionRetentionAnonymized, ActionRetentionArchived, ActionRetentionFailed:
		return CategoryCompliance
	default:
		return CategorySystem
	}
}

// DefaultSeverity derives a severity from the action when the caller gives none.
func DefaultSeverity(action Action) Severity {
	switch action {
	case ActionSecurityAlert, ActionAnonymizationFailed, ActionRetentionFailed:
		return SeverityHigh
	case ActionAccessDenied, ActionDelete, ActionExport, ActionConsentRevoked,
		ActionRetentionDeleted, ActionAnonymizationCompleted:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryDataAccess, CategoryDataModification, CategoryConsentManagement,
		CategorySecurity, CategoryCompliance, CategorySystem, CategoryUserBehavior:
		return true
	}
	return false
}
