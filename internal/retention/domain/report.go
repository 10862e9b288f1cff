package domain

import (
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

// PolicyReport summarizes one policy execution.
type PolicyReport struct {
	PolicyID   uuid.UUID
	PolicyName string
	EntityType auditDomain.EntityType
	Action     Action
	Eligible   int
	Exempted   int
	Notified   int
	Deferred   int
	Processed  int
	Skipped    int
	Failed     int
	Errors     []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunReport summarizes an execution of every active policy.
type RunReport struct {
	Policies   []*PolicyReport
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// PolicyStatus is a policy with its outcome counts.
type PolicyStatus struct {
	Policy   *Policy
	Outcomes map[Outcome]int
}

// Status describes the retention subsystem.
type Status struct {
	TotalPolicies  int
	ActivePolicies int
	LastRun        *time.Time
	Policies       []*PolicyStatus
}
