package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	"github.com/allisson/compliance/internal/database"
	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
	notificationDomain "github.com/allisson/compliance/internal/notification/domain"
	"github.com/allisson/compliance/internal/scheduler"
)

type sha256Hasher struct{}

func (sha256Hasher) SHA256(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

type memoryJobRepository struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*anonymizationDomain.Job
	// updates counts successful Transition calls per job.
	updates map[uuid.UUID]int
	// interleave runs before each Transition, standing in for another process
	// writing the stored job first.
	interleave func(stored *anonymizationDomain.Job)
}

func newMemoryJobRepository() *memoryJobRepository {
	return &memoryJobRepository{
		jobs:    make(map[uuid.UUID]*anonymizationDomain.Job),
		updates: make(map[uuid.UUID]int),
	}
}

func cloneJob(j *anonymizationDomain.Job) *anonymizationDomain.Job {
	c := *j
	c.AnonymizedFields = append([]string(nil), j.AnonymizedFields...)
	c.PreservedFields = append([]string(nil), j.PreservedFields...)
	c.Errors = append([]string(nil), j.Errors...)
	return &c
}

func (r *memoryJobRepository) Create(_ context.Context, job *anonymizationDomain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *memoryJobRepository) Get(_ context.Context, id uuid.UUID) (*anonymizationDomain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, anonymizationDomain.ErrJobNotFound
	}
	return cloneJob(job), nil
}

func (r *memoryJobRepository) FindActive(
	_ context.Context,
	entityType auditDomain.EntityType,
	entityID uuid.UUID,
) (*anonymizationDomain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.EntityType == entityType && job.EntityID == entityID && job.Status.Active() {
			return cloneJob(job), nil
		}
	}
	return nil, anonymizationDomain.ErrJobNotFound
}

func (r *memoryJobRepository) Transition(
	_ context.Context,
	job *anonymizationDomain.Job,
	from anonymizationDomain.Status,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[job.ID]
	if !ok {
		return anonymizationDomain.ErrJobNotFound
	}
	if r.interleave != nil {
		r.interleave(stored)
	}
	if stored.Status != from {
		return anonymizationDomain.ErrLeftStatus(from)
	}
	r.jobs[job.ID] = cloneJob(job)
	r.updates[job.ID]++
	return nil
}

func (r *memoryJobRepository) List(
	_ context.Context,
	status *anonymizationDomain.Status,
	offset, limit int,
) ([]*anonymizationDomain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]*anonymizationDomain.Job, 0)
	for _, job := range r.jobs {
		if status == nil || job.Status == *status {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	if offset >= len(jobs) {
		return []*anonymizationDomain.Job{}, nil
	}
	end := min(offset+limit, len(jobs))
	return jobs[offset:end], nil
}

func (r *memoryJobRepository) ListDue(
	_ context.Context,
	now time.Time,
	limit int,
) ([]*anonymizationDomain.Job, error) {
	return r.filter(limit, func(job *anonymizationDomain.Job) bool {
		return job.Status == anonymizationDomain.StatusPending && !job.ScheduledFor.After(now)
	}), nil
}

func (r *memoryJobRepository) ListStale(
	_ context.Context,
	before time.Time,
	limit int,
) ([]*anonymizationDomain.Job, error) {
	return r.filter(limit, func(job *anonymizationDomain.Job) bool {
		return job.Status == anonymizationDomain.StatusRunning && job.UpdatedAt.Before(before)
	}), nil
}

func (r *memoryJobRepository) filter(
	limit int,
	match func(*anonymizationDomain.Job) bool,
) []*anonymizationDomain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]*anonymizationDomain.Job, 0)
	for _, job := range r.jobs {
		if match(job) {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

type memoryLearners struct {
	mu       sync.Mutex
	parents  map[uuid.UUID]*learnerDomain.Parent
	students map[uuid.UUID]*learnerDomain.Student
	sessions map[uuid.UUID]*learnerDomain.Session
	warned   map[uuid.UUID]time.Time
}

func newMemoryLearners() *memoryLearners {
	return &memoryLearners{
		parents:  make(map[uuid.UUID]*learnerDomain.Parent),
		students: make(map[uuid.UUID]*learnerDomain.Student),
		sessions: make(map[uuid.UUID]*learnerDomain.Session),
		warned:   make(map[uuid.UUID]time.Time),
	}
}

type studentStore struct{ *memoryLearners }

func (s studentStore) Get(_ context.Context, id uuid.UUID) (*learnerDomain.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return nil, learnerDomain.ErrStudentNotFound
	}
	c := *student
	return &c, nil
}

func (s studentStore) UpdateAnonymized(_ context.Context, student *learnerDomain.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *student
	s.students[student.ID] = &c
	return nil
}

func (s studentStore) FindInactive(
	_ context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*learnerDomain.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*learnerDomain.Student, 0)
	for _, student := range s.students {
		if !student.LastActivityAt.Before(before) || !student.Active() {
			continue
		}
		if after != nil && !afterCursor(student, after) {
			continue
		}
		c := *student
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastActivityAt.Equal(result[j].LastActivityAt) {
			return result[i].LastActivityAt.Before(result[j].LastActivityAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func afterCursor(student *learnerDomain.Student, c *database.Cursor) bool {
	if student.LastActivityAt.Equal(c.At) {
		return student.ID.String() > c.ID.String()
	}
	return student.LastActivityAt.After(c.At)
}

func (s studentStore) MarkInactivityWarned(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[id].InactivityWarnedAt = &at
	s.warned[id] = at
	return nil
}

type parentStore struct{ *memoryLearners }

func (s parentStore) Get(_ context.Context, id uuid.UUID) (*learnerDomain.Parent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.parents[id]
	if !ok {
		return nil, learnerDomain.ErrParentNotFound
	}
	c := *parent
	return &c, nil
}

func (s parentStore) UpdateAnonymized(_ context.Context, parent *learnerDomain.Parent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *parent
	s.parents[parent.ID] = &c
	return nil
}

type sessionStore struct{ *memoryLearners }

func (s sessionStore) Get(_ context.Context, id uuid.UUID) (*learnerDomain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, learnerDomain.ErrSessionNotFound
	}
	c := *session
	return &c, nil
}

func (s sessionStore) ListByStudent(_ context.Context, studentID uuid.UUID) ([]*learnerDomain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*learnerDomain.Session, 0)
	for _, session := range s.sessions {
		if session.StudentID == studentID {
			c := *session
			result = append(result, &c)
		}
	}
	return result, nil
}

func (s sessionStore) UpdateAnonymized(_ context.Context, session *learnerDomain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *session
	s.sessions[session.ID] = &c
	return nil
}

// recordingAudit records every logged action and scrubs a fixed number of entries.
type recordingAudit struct {
	mu         sync.Mutex
	actions    []*auditDomain.LogActionInput
	scrubbed   []string
	scrubCount int
	scrubErr   error
}

func (a *recordingAudit) LogAction(_ context.Context, input *auditDomain.LogActionInput) uuid.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, input)
	return uuid.New()
}

func (a *recordingAudit) AnonymizeStudentLogs(_ context.Context, studentID, _ string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scrubErr != nil {
		return 0, a.scrubErr
	}
	a.scrubbed = append(a.scrubbed, studentID)
	return a.scrubCount, nil
}

func (a *recordingAudit) byAction(action auditDomain.Action) []*auditDomain.LogActionInput {
	a.mu.Lock()
	defer a.mu.Unlock()
	result := make([]*auditDomain.LogActionInput, 0)
	for _, input := range a.actions {
		if input.Action == action {
			result = append(result, input)
		}
	}
	return result
}

type sentMessage struct {
	to       string
	template notificationDomain.Template
	vars     map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Notify(
	_ context.Context,
	to string,
	template notificationDomain.Template,
	vars map[string]string,
) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{to: to, template: template, vars: vars})
	return nil
}

type dispatched struct {
	name string
	at   *time.Time
	task scheduler.Task
}

// recordingDispatcher captures tasks instead of running them.
type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []dispatched
}

func (d *recordingDispatcher) RunNow(name string, task scheduler.Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, dispatched{name: name, task: task})
}

func (d *recordingDispatcher) RunAt(name string, at time.Time, task scheduler.Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, dispatched{name: name, at: &at, task: task})
}
