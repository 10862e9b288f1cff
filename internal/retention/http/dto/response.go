package dto

import (
	"time"

	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
)

// PolicyResponse represents a retention policy in API responses.
type PolicyResponse struct {
	ID                  string     `json:"id"`
	PolicyName          string     `json:"policy_name"`
	EntityType          string     `json:"entity_type"`
	RetentionPeriodDays int        `json:"retention_period_days"`
	TriggerCondition    string     `json:"trigger_condition"`
	Action              string     `json:"action"`
	Priority            int        `json:"priority"`
	Active              bool       `json:"active"`
	LegalBasis          string     `json:"legal_basis"`
	Exceptions          []string   `json:"exceptions"`
	NotificationDays    int        `json:"notification_days"`
	LastExecuted        *time.Time `json:"last_executed,omitempty"`
	RecordsProcessed    int        `json:"records_processed"`
	CreatedAt           time.Time  `json:"created_at"`
}

// MapPolicyToResponse converts a domain policy to an API response.
func MapPolicyToResponse(p *retentionDomain.Policy) PolicyResponse {
	exceptions := make([]string, 0, len(p.Exceptions))
	for _, e := range p.Exceptions {
		exceptions = append(exceptions, string(e))
	}
	return PolicyResponse{
		ID:                  p.ID.String(),
		PolicyName:          p.Name,
		EntityType:          string(p.EntityType),
		RetentionPeriodDays: p.RetentionPeriodDays,
		TriggerCondition:    p.TriggerCondition,
		Action:              string(p.Action),
		Priority:            p.Priority,
		Active:              p.Active,
		LegalBasis:          p.LegalBasis,
		Exceptions:          exceptions,
		NotificationDays:    p.NotificationDays,
		LastExecuted:        p.LastExecuted,
		RecordsProcessed:    p.RecordsProcessed,
		CreatedAt:           p.CreatedAt,
	}
}

// ListPoliciesResponse represents every policy.
type ListPoliciesResponse struct {
	Data []PolicyResponse `json:"data"`
}

// MapPoliciesToListResponse converts domain policies to a list response.
func MapPoliciesToListResponse(policies []*retentionDomain.Policy) ListPoliciesResponse {
	data := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		data = append(data, MapPolicyToResponse(p))
	}
	return ListPoliciesResponse{Data: data}
}

// PolicyStatusResponse is a policy with its per-outcome record counts.
type PolicyStatusResponse struct {
	PolicyResponse
	Outcomes map[string]int `json:"outcomes"`
}

// StatusResponse describes the retention subsystem.
type StatusResponse struct {
	TotalPolicies  int                    `json:"total_policies"`
	ActivePolicies int                    `json:"active_policies"`
	LastRun        *time.Time             `json:"last_run,omitempty"`
	Policies       []PolicyStatusResponse `json:"policies"`
}

// MapStatusToResponse converts the retention status to an API response.
func MapStatusToResponse(s *retentionDomain.Status) StatusResponse {
	policies := make([]PolicyStatusResponse, 0, len(s.Policies))
	for _, ps := range s.Policies {
		outcomes := make(map[string]int, len(ps.Outcomes))
		for outcome, n := range ps.Outcomes {
			outcomes[string(outcome)] = n
		}
		policies = append(policies, PolicyStatusResponse{
			PolicyResponse: MapPolicyToResponse(ps.Policy),
			Outcomes:       outcomes,
		})
	}
	return StatusResponse{
		TotalPolicies:  s.TotalPolicies,
		ActivePolicies: s.ActivePolicies,
		LastRun:        s.LastRun,
		Policies:       policies,
	}
}

// PolicyReportResponse summarizes one policy execution.
type PolicyReportResponse struct {
	PolicyID   string    `json:"policy_id"`
	PolicyName string    `json:"policy_name"`
	EntityType string    `json:"entity_type"`
	Action     string    `json:"action"`
	Eligible   int       `json:"eligible"`
	Exempted   int       `json:"exempted"`
	Notified   int       `json:"notified"`
	Deferred   int       `json:"deferred"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// MapPolicyReportToResponse converts a policy report to an API response.
func MapPolicyReportToResponse(r *retentionDomain.PolicyReport) PolicyReportResponse {
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	return PolicyReportResponse{
		PolicyID:   r.PolicyID.String(),
		PolicyName: r.PolicyName,
		EntityType: string(r.EntityType),
		Action:     string(r.Action),
		Eligible:   r.Eligible,
		Exempted:   r.Exempted,
		Notified:   r.Notified,
		Deferred:   r.Deferred,
		Processed:  r.Processed,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		Errors:     errs,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// RunReportResponse summarizes a run of every active policy.
type RunReportResponse struct {
	Policies   []PolicyReportResponse `json:"policies"`
	Failed     int                    `json:"failed"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// MapRunReportToResponse converts a run report to an API response.
func MapRunReportToResponse(r *retentionDomain.RunReport) RunReportResponse {
	policies := make([]PolicyReportResponse, 0, len(r.Policies))
	for _, pr := range r.Policies {
		policies = append(policies, MapPolicyReportToResponse(pr))
	}
	return RunReportResponse{
		Policies:   policies,
		Failed:     r.Failed,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
