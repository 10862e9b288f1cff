package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	consentDomain "github.com/allisson/compliance/internal/consent/domain"
	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
	notificationDomain "github.com/allisson/compliance/internal/notification/domain"
)

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// sequentialTokens issues predictable 64 character hex tokens.
type sequentialTokens struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialTokens) RandomToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%064x", s.n), nil
}

func (s *sequentialTokens) SHA256(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

type memoryConsents struct {
	mu       sync.Mutex
	consents map[uuid.UUID]*consentDomain.Consent
	updates  int
}

func newMemoryConsents() *memoryConsents {
	return &memoryConsents{consents: make(map[uuid.UUID]*consentDomain.Consent)}
}

func cloneConsent(c *consentDomain.Consent) *consentDomain.Consent {
	clone := *c
	clone.ConsentTypes = append([]consentDomain.Type(nil), c.ConsentTypes...)
	return &clone
}

func (r *memoryConsents) Create(_ context.Context, c *consentDomain.Consent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consents[c.ID] = cloneConsent(c)
	return nil
}

func (r *memoryConsents) find(match func(c *consentDomain.Consent) bool, notFound error) (*consentDomain.Consent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *consentDomain.Consent
	for _, c := range r.consents {
		if match(c) && (found == nil || c.CreatedAt.After(found.CreatedAt)) {
			found = c
		}
	}
	if found == nil {
		return nil, notFound
	}
	return cloneConsent(found), nil
}

func (r *memoryConsents) Get(_ context.Context, id uuid.UUID) (*consentDomain.Consent, error) {
	return r.find(func(c *consentDomain.Consent) bool { return c.ID == id }, consentDomain.ErrConsentNotFound)
}

func (r *memoryConsents) GetByFirstTokenHash(_ context.Context, hash string) (*consentDomain.Consent, error) {
	return r.find(func(c *consentDomain.Consent) bool { return c.FirstTokenHash == hash }, consentDomain.ErrInvalidToken)
}

func (r *memoryConsents) GetBySecondTokenHash(_ context.Context, hash string) (*consentDomain.Consent, error) {
	return r.find(func(c *consentDomain.Consent) bool {
		return c.SecondTokenHash != nil && *c.SecondTokenHash == hash
	}, consentDomain.ErrInvalidToken)
}

func (r *memoryConsents) FindPendingByEmail(_ context.Context, email string) (*consentDomain.Consent, error) {
	return r.find(func(c *consentDomain.Consent) bool {
		return c.ParentEmail == email && c.Status == consentDomain.StatusPending
	}, consentDomain.ErrConsentNotFound)
}

func (r *memoryConsents) GetByStudent(_ context.Context, studentID uuid.UUID) (*consentDomain.Consent, error) {
	return r.find(func(c *consentDomain.Consent) bool {
		return c.StudentID != nil && *c.StudentID == studentID
	}, consentDomain.ErrConsentNotFound)
}

func (r *memoryConsents) Update(_ context.Context, c *consentDomain.Consent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.consents[c.ID]; !ok {
		return consentDomain.ErrConsentNotFound
	}
	r.consents[c.ID] = cloneConsent(c)
	r.updates++
	return nil
}

func (r *memoryConsents) ListExpiredPending(
	_ context.Context,
	now time.Time,
	limit int,
) ([]*consentDomain.Consent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*consentDomain.Consent, 0)
	for _, c := range r.consents {
		if len(result) == limit {
			break
		}
		if c.Status == consentDomain.StatusPending && c.ExpiryDate.Before(now) {
			result = append(result, cloneConsent(c))
		}
	}
	return result, nil
}

func (r *memoryConsents) stored(id uuid.UUID) *consentDomain.Consent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneConsent(r.consents[id])
}

type memoryParents struct {
	mu      sync.Mutex
	parents map[string]*learnerDomain.Parent
	touched []uuid.UUID
}

func newMemoryParents() *memoryParents {
	return &memoryParents{parents: make(map[string]*learnerDomain.Parent)}
}

func (r *memoryParents) GetByEmail(_ context.Context, email string) (*learnerDomain.Parent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parents[email]
	if !ok {
		return nil, learnerDomain.ErrParentNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *memoryParents) Create(_ context.Context, p *learnerDomain.Parent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.parents[p.Email]; ok {
		return learnerDomain.ErrParentAlreadyExists
	}
	clone := *p
	r.parents[p.Email] = &clone
	return nil
}

func (r *memoryParents) Touch(_ context.Context, id uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, id)
	return nil
}

type memoryStudents struct {
	mu       sync.Mutex
	students map[uuid.UUID]*learnerDomain.Student
}

func newMemoryStudents() *memoryStudents {
	return &memoryStudents{students: make(map[uuid.UUID]*learnerDomain.Student)}
}

func (r *memoryStudents) Create(_ context.Context, s *learnerDomain.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.students[s.ID] = &clone
	return nil
}

func (r *memoryStudents) get(id uuid.UUID) *learnerDomain.Student {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.students[id]
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
	var matched []*auditDomain.LogActionInput
	for _, e := range a.entries {
		if e.Action == action {
			matched = append(matched, e)
		}
	}
	return matched
}

type sentNotification struct {
	to       string
	template notificationDomain.Template
	vars     map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
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
	n.sent = append(n.sent, sentNotification{to: to, template: template, vars: vars})
	return nil
}

// lastToken returns the token of the most recent email using template.
func (n *recordingNotifier) lastToken(template notificationDomain.Template) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].template == template {
			return n.sent[i].vars["token"]
		}
	}
	return ""
}

func (n *recordingNotifier) count(template notificationDomain.Template) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.sent {
		if s.template == template {
			count++
		}
	}
	return count
}

type recordingScheduler struct {
	mu     sync.Mutex
	inputs []*anonymizationDomain.ScheduleInput
	err    error
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
	return &anonymizationDomain.Job{
		ID:                 uuid.New(),
		EntityType:         input.EntityType,
		EntityID:           input.EntityID,
		Reason:             input.Reason,
		Status:             anonymizationDomain.StatusPending,
		Priority:           anonymizationDomain.PriorityFor(input.Reason),
		PreserveStatistics: input.PreserveStatistics,
	}, nil
}
