package dto

import (
	"time"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
)

// JobResponse represents an anonymization job in API responses.
type JobResponse struct {
	ID                 string     `json:"id"`
	EntityType         string     `json:"entity_type"`
	EntityID           string     `json:"entity_id"`
	Reason             string     `json:"reason"`
	Status             string     `json:"status"`
	Priority           string     `json:"priority"`
	PreserveStatistics bool       `json:"preserve_statistics"`
	Progress           int        `json:"progress"`
	AffectedRecords    int        `json:"affected_records"`
	AnonymizedFields   []string   `json:"anonymized_fields"`
	PreservedFields    []string   `json:"preserved_fields"`
	Errors             []string   `json:"errors"`
	ScheduledFor       time.Time  `json:"scheduled_for"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// MapJobToResponse converts a domain job to an API response.
func MapJobToResponse(job *anonymizationDomain.Job) JobResponse {
	return JobResponse{
		ID:                 job.ID.String(),
		EntityType:         string(job.EntityType),
		EntityID:           job.EntityID.String(),
		Reason:             string(job.Reason),
		Status:             string(job.Status),
		Priority:           string(job.Priority),
		PreserveStatistics: job.PreserveStatistics,
		Progress:           job.Progress,
		AffectedRecords:    job.AffectedRecords,
		AnonymizedFields:   orEmpty(job.AnonymizedFields),
		PreservedFields:    orEmpty(job.PreservedFields),
		Errors:             orEmpty(job.Errors),
		ScheduledFor:       job.ScheduledFor,
		StartedAt:          job.StartedAt,
		CompletedAt:        job.CompletedAt,
		CreatedAt:          job.CreatedAt,
	}
}

// ListJobsResponse represents a page of jobs.
type ListJobsResponse struct {
	Data []JobResponse `json:"data"`
}

// MapJobsToListResponse converts domain jobs to a list response.
func MapJobsToListResponse(jobs []*anonymizationDomain.Job) ListJobsResponse {
	data := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		data = append(data, MapJobToResponse(job))
	}
	return ListJobsResponse{Data: data}
}
