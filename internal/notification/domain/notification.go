// Package domain defines the notifications sent to parents.
package domain

// EventTypeEmail is the outbox event type carrying an email Message.
const EventTypeEmail = "notification.email"

// Template names an email template rendered by the delivery system.
type Template string

const (
	TemplateConsentFirst      Template = "parental-consent-first"
	TemplateConsentSecond     Template = "parental-consent-second"
	TemplateConsentConfirmed  Template = "parental-consent-confirmed"
	TemplateConsentRevoked    Template = "parental-consent-revoked"
	TemplateRetentionWarning  Template = "retention-warning"
	TemplateInactivityWarning Template = "inactivity-warning"
)

// Message is an email addressed to a parent.
type Message struct {
	To       string            `json:"to"`
	Template Template          `json:"template"`
	Vars     map[string]string `json:"vars,omitempty"`
}
