package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	"github.com/allisson/compliance/internal/database"
	notificationDomain "github.com/allisson/compliance/internal/notification/domain"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
)

type memoryPolicies struct {
	mu       sync.Mutex
	policies map[uuid.UUID]*retentionDomain.Policy
	listErr  error
}

func newMemoryPolicies() *memoryPolicies {
	return &memoryPolicies{policies: make(map[uuid.UUID]*retentionDomain.Policy)}
}

func (r *memoryPolicies) Create(_ context.Context, p *retentionDomain.Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.policies {
		if existing.Name == p.Name {
			return retentionDomain.ErrPolicyAlreadyExists
		}
	}
	clone := *p
	r.policies[p.ID] = &clone
	return nil
}

func (r *memoryPolicies) Get(_ context.Context, id uuid.UUID) (*retentionDomain.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[id]
	if !ok {
		return nil, retentionDomain.ErrPolicyNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *memoryPolicies) GetByName(_ context.Context, name string) (*retentionDomain.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.policies {
		if p.Name == name {
			clone := *p
			return &clone, nil
		}
	}
	return nil, retentionDomain.ErrPolicyNotFound
}

func (r *memoryPolicies) List(_ context.Context, activeOnly bool) ([]*retentionDomain.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	policies := make([]*retentionDomain.Policy, 0, len(r.policies))
	for _, p := range r.policies {
		if activeOnly && !p.Active {
			continue
		}
		clone := *p
		policies = append(policies, &clone)
	}
	slices.SortStableFunc(policies, func(a, b *retentionDomain.Policy) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return policies, nil
}

func (r *memoryPolicies) SetActive(_ context.Context, id uuid.UUID, active bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[id]
	if !ok {
		return retentionDomain.ErrPolicyNotFound
	}
	p.Active = active
	p.UpdatedAt = at
	return nil
}

func (r *memoryPolicies) RecordExecution(_ context.Context, id uuid.UUID, at time.Time, processed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[id]
	if !ok {
		return retentionDomain.ErrPolicyNotFound
	}
	p.LastExecuted = &at
	p.RecordsProcessed += processed
	return nil
}

func (r *memoryPolicies) stored(id uuid.UUID) *retentionDomain.Policy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policies[id]
}

type recordKey struct {
	policyID uuid.UUID
	entityID uuid.UUID
}

type memoryRecords struct {
	mu      sync.Mutex
	records map[recordKey]*retentionDomain.Record
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{records: make(map[recordKey]*retentionDomain.Record)}
}

func (r *memoryRecords) Get(_ context.Context, policyID, entityID uuid.UUID) (*retentionDomain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordKey{policyID, entityID}]
	if !ok {
		return nil, retentionDomain.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *memoryRecords) Create(_ context.Context, rec *retentionDomain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *rec
	r.records[recordKey{rec.PolicyID, rec.EntityID}] = &clone
	return nil
}

func (r *memoryRecords) Update(_ context.Context, rec *retentionDomain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey{rec.PolicyID, rec.EntityID}
	if _, ok := r.records[key]; !ok {
		return retentionDomain.ErrRecordNotFound
	}
	clone := *rec
	r.records[key] = &clone
	return nil
}

func (r *memoryRecords) CountByOutcome(
	_ context.Context,
	policyID uuid.UUID,
) (map[retentionDomain.Outcome]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[retentionDomain.Outcome]int)
	for key, rec := range r.records {
		if key.policyID == policyID {
			counts[rec.Outcome]++
		}
	}
	return counts, nil
}

func (r *memoryRecords) stored(policyID, entityID uuid.UUID) *retentionDomain.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[recordKey{policyID, entityID}]
}

// fakeAdapter serves a fixed population and removes what it deletes or archives.
type fakeAdapter struct {
	mu         sync.Mutex
	entityType auditDomain.EntityType
	candidates []*retentionDomain.Candidate
	failures   map[uuid.UUID]error
	findErr    error
	pages      int
	deleted    []uuid.UUID
	archived   []uuid.UUID
}

func newFakeAdapter(entityType auditDomain.EntityType, candidates ...*retentionDomain.Candidate) *fakeAdapter {
	return &fakeAdapter{entityType: entityType, candidates: candidates, failures: make(map[uuid.UUID]error)}
}

func (a *fakeAdapter) EntityType() auditDomain.EntityType { return a.entityType }

func (a *fakeAdapter) FindEligible(
	_ context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*retentionDomain.Candidate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages++
	if a.findErr != nil {
		return nil, a.findErr
	}

	ordered := slices.Clone(a.candidates)
	slices.SortFunc(ordered, func(x, y *retentionDomain.Candidate) int {
		if c := x.ReferenceTime.Compare(y.ReferenceTime); c != 0 {
			return c
		}
		return strings.Compare(x.EntityID.String(), y.EntityID.String())
	})

	eligible := make([]*retentionDomain.Candidate, 0)
	for _, c := range ordered {
		if !c.ReferenceTime.Before(before) || len(eligible) == limit {
			continue
		}
		if after != nil {
			if c.ReferenceTime.Before(after.At) {
				continue
			}
			if c.ReferenceTime.Equal(after.At) && c.EntityID.String() <= after.ID.String() {
				continue
			}
		}
		eligible = append(eligible, c)
	}
	return eligible, nil
}

func (a *fakeAdapter) remove(id uuid.UUID) {
	a.candidates = slices.DeleteFunc(a.candidates, func(c *retentionDomain.Candidate) bool {
		return c.EntityID == id
	})
}

func (a *fakeAdapter) Delete(_ context.Context, id uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.failures[id]; err != nil {
		return err
	}
	a.deleted = append(a.deleted, id)
	a.remove(id)
	return nil
}

func (a *fakeAdapter) Archive(_ context.Context, id uuid.UUID, _ time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.failures[id]; err != nil {
		return "", err
	}
	a.archived = append(a.archived, id)
	a.remove(id)
	return "archive/" + string(a.entityType) + "/" + id.String() + ".json", nil
}

type recordingScheduler struct {
	mu     sync.Mutex
	err    error
	inputs []*anonymizationDomain.ScheduleInput
}

func (s *recordingScheduler) Schedule(
	_ context.Context,
	input *anonymizationDomain.ScheduleInput,
) (*anonymizationDomain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return &anonymizationDomain.Job{ID: uuid.New(), EntityType: input.EntityType, EntityID: input.EntityID}, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []*auditDomain.LogActionInput
}

func (a *recordingAudit) LogAction(_ context.Context, input *auditDomain.LogActionInput) uuid.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, input)
	return uuid.New()
}

func (a *recordingAudit) byAction(action auditDomain.Action) []*auditDomain.LogActionInput {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*auditDomain.LogActionInput
	for _, e := range a.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type sentNotification struct {
	to       string
	template notificationDomain.Template
	vars     map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	err  error
	sent []sentNotification
}

func (n *recordingNotifier) Notify(
	_ context.Context,
	to string,
	template notificationDomain.Template,
	vars map[string]string,
) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotification{to: to, template: template, vars: vars})
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

var errStore = errors.New("store unavailable")
