// Package dto provides data transfer objects for the audit log HTTP API.
package dto

import (
	"time"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

// AuditEntryResponse represents an audit entry in API responses.
type AuditEntryResponse struct {
	ID            string         `json:"id"`
	EntityType    string         `json:"entity_type"`
	EntityID      string         `json:"entity_id"`
	Action        string         `json:"action"`
	UserID        *string        `json:"user_id,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	IPAddress     *string        `json:"ip_address,omitempty"`
	UserAgent     *string        `json:"user_agent,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Severity      string         `json:"severity"`
	Category      string         `json:"category"`
	CorrelationID string         `json:"correlation_id"`
	Checksum      string         `json:"checksum"`
	Encrypted     bool           `json:"encrypted"`
}

// MapQueriedEntryToResponse converts a queried entry to an API response.
func MapQueriedEntryToResponse(entry *auditDomain.QueriedEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:            entry.ID.String(),
		EntityType:    string(entry.EntityType),
		EntityID:      entry.EntityID,
		Action:        string(entry.Action),
		UserID:        entry.UserID,
		Details:       entry.Payload,
		IPAddress:     entry.IPAddress,
		UserAgent:     entry.UserAgent,
		Timestamp:     entry.Timestamp,
		Severity:      string(entry.Severity),
		Category:      string(entry.Category),
		CorrelationID: entry.CorrelationID,
		Checksum:      entry.Checksum,
		Encrypted:     entry.Encrypted,
	}
}

// ListAuditEntriesResponse represents a page of audit entries.
type ListAuditEntriesResponse struct {
	Data    []AuditEntryResponse `json:"data"`
	Total   int                  `json:"total"`
	HasMore bool                 `json:"has_more"`
}

// MapQueryResultToResponse converts a query result to a list API response.
func MapQueryResultToResponse(result *auditDomain.QueryResult) ListAuditEntriesResponse {
	data := make([]AuditEntryResponse, 0, len(result.Entries))
	for _, entry := range result.Entries {
		data = append(data, MapQueriedEntryToResponse(entry))
	}
	return ListAuditEntriesResponse{Data: data, Total: result.Total, HasMore: result.HasMore}
}

// IntegrityResponse reports the checksum verification of one entry.
type IntegrityResponse struct {
	EntryID   string `json:"entry_id"`
	Valid     bool   `json:"valid"`
	Tampering bool   `json:"tampering"`
}

// SecurityAlertResponse represents a security alert in API responses.
type SecurityAlertResponse struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Severity      string     `json:"severity"`
	EntityType    string     `json:"entity_type"`
	EntityID      string     `json:"entity_id"`
	Description   string     `json:"description"`
	DetectedAt    time.Time  `json:"detected_at"`
	AuditEntryIDs []string   `json:"audit_entry_ids"`
	Resolved      bool       `json:"resolved"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy    *string    `json:"resolved_by,omitempty"`
}

// MapSecurityAlertToResponse converts a domain alert to an API response.
func MapSecurityAlertToResponse(alert *auditDomain.SecurityAlert) SecurityAlertResponse {
	ids := make([]string, 0, len(alert.AuditEntryIDs))
	for _, id := range alert.AuditEntryIDs {
		ids = append(ids, id.String())
	}
	return SecurityAlertResponse{
		ID:            alert.ID.String(),
		Type:          string(alert.Type),
		Severity:      string(alert.Severity),
		EntityType:    string(alert.EntityType),
		EntityID:      alert.EntityID,
		Description:   alert.Description,
		DetectedAt:    alert.DetectedAt,
		AuditEntryIDs: ids,
		Resolved:      alert.Resolved,
		ResolvedAt:    alert.ResolvedAt,
		ResolvedBy:    alert.ResolvedBy,
	}
}

// ListSecurityAlertsResponse represents a list of alerts.
type ListSecurityAlertsResponse struct {
	Data []SecurityAlertResponse `json:"data"`
}

// MapSecurityAlertsToListResponse converts alerts to a list API response.
func MapSecurityAlertsToListResponse(alerts []*auditDomain.SecurityAlert) ListSecurityAlertsResponse {
	data := make([]SecurityAlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		data = append(data, MapSecurityAlertToResponse(alert))
	}
	return ListSecurityAlertsResponse{Data: data}
}
