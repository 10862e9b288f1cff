package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

// memoryEntryRepository is an in-memory AuditEntryRepository for behavioral tests.
type memoryEntryRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*auditDomain.AuditEntry
}

func newMemoryEntryRepository() *memoryEntryRepository {
	return &memoryEntryRepository{entries: make(map[uuid.UUID]*auditDomain.AuditEntry)}
}

func cloneEntry(e *auditDomain.AuditEntry) *auditDomain.AuditEntry {
	c := *e
	c.Details = append([]byte(nil), e.Details...)
	if len(e.Details) == 0 {
		c.Details = nil
	}
	return &c
}

func (r *memoryEntryRepository) Create(_ context.Context, entry *auditDomain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = cloneEntry(entry)
	return nil
}

func (r *memoryEntryRepository) Get(_ context.Context, id uuid.UUID) (*auditDomain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, auditDomain.ErrEntryNotFound
	}
	return cloneEntry(entry), nil
}

func (r *memoryEntryRepository) UpdateAnonymized(_ context.Context, entry *auditDomain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.entries[entry.ID]
	stored.Details = append([]byte(nil), entry.Details...)
	stored.IPAddress = nil
	stored.UserAgent = nil
	stored.Checksum = entry.Checksum
	return nil
}

// tamper mutates a stored entry out of band.
func (r *memoryEntryRepository) tamper(id uuid.UUID, fn func(e *auditDomain.AuditEntry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.entries[id])
}

func (r *memoryEntryRepository) matching(filter *auditDomain.QueryFilter) []*auditDomain.AuditEntry {
	result := make([]*auditDomain.AuditEntry, 0)
	for _, e := range r.entries {
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.From != nil && e.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Timestamp.After(*filter.To) {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	return result
}

func (r *memoryEntryRepository) List(
	_ context.Context,
	filter *auditDomain.QueryFilter,
) ([]*auditDomain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.matching(filter)
	page := make([]*auditDomain.AuditEntry, 0)
	for i := filter.Offset; i < len(all) && len(page) < filter.Limit; i++ {
		page = append(page, cloneEntry(all[i]))
	}
	return page, nil
}

func (r *memoryEntryRepository) Count(_ context.Context, filter *auditDomain.QueryFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matching(filter)), nil
}

func (r *memoryEntryRepository) ListRecentIDs(
	_ context.Context,
	entityType auditDomain.EntityType,
	entityID string,
	action auditDomain.Action,
	since time.Time,
) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0)
	for _, e := range r.matching(&auditDomain.QueryFilter{EntityType: entityType, EntityID: entityID, Action: action, From: &since}) {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (r *memoryEntryRepository) ListRecentIDsByIP(
	_ context.Context,
	entityType auditDomain.EntityType,
	action auditDomain.Action,
	ipAddress string,
	since time.Time,
) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0)
	for _, e := range r.matching(&auditDomain.QueryFilter{EntityType: entityType, Action: action, From: &since}) {
		if e.IPAddress != nil && *e.IPAddress == ipAddress {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (r *memoryEntryRepository) CountOlderThan(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, e := range r.entries {
		if e.Timestamp.Before(before) {
			count++
		}
	}
	return count, nil
}

func (r *memoryEntryRepository) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, e := range r.entries {
		if e.Timestamp.Before(before) {
			delete(r.entries, id)
			count++
		}
	}
	return count, nil
}

func (r *memoryEntryRepository) byAction(action auditDomain.Action) []*auditDomain.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matching(&auditDomain.QueryFilter{Action: action})
}

// memoryAlertRepository is an in-memory SecurityAlertRepository.
type memoryAlertRepository struct {
	mu     sync.Mutex
	alerts []*auditDomain.SecurityAlert
}

func (r *memoryAlertRepository) Create(_ context.Context, alert *auditDomain.SecurityAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *alert
	r.alerts = append(r.alerts, &c)
	return nil
}

func (r *memoryAlertRepository) Get(_ context.Context, id uuid.UUID) (*auditDomain.SecurityAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.ID == id {
			c := *a
			return &c, nil
		}
	}
	return nil, auditDomain.ErrAlertNotFound
}

func (r *memoryAlertRepository) FindActive(
	_ context.Context,
	alertType auditDomain.AlertType,
	entityType auditDomain.EntityType,
	entityID string,
	since time.Time,
) (*auditDomain.SecurityAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.Type == alertType && a.EntityType == entityType && a.EntityID == entityID &&
			!a.Resolved && !a.DetectedAt.Before(since) {
			return a, nil
		}
	}
	return nil, auditDomain.ErrAlertNotFound
}

func (r *memoryAlertRepository) List(
	_ context.Context,
	resolved *bool,
	offset, limit int,
) ([]*auditDomain.SecurityAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*auditDomain.SecurityAlert, 0)
	for _, a := range r.alerts {
		if resolved == nil || a.Resolved == *resolved {
			result = append(result, a)
		}
	}
	if offset > len(result) {
		return []*auditDomain.SecurityAlert{}, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memoryAlertRepository) Resolve(_ context.Context, alert *auditDomain.SecurityAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.ID == alert.ID {
			a.Resolved = alert.Resolved
			a.ResolvedAt = alert.ResolvedAt
			a.ResolvedBy = alert.ResolvedBy
		}
	}
	return nil
}

func (r *memoryAlertRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

// mockEntryRepository is a mock implementation of AuditEntryRepository for error paths.
type mockEntryRepository struct {
	mock.Mock
}

func (m *mockEntryRepository) Create(ctx context.Context, entry *auditDomain.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockEntryRepository) Get(ctx context.Context, id uuid.UUID) (*auditDomain.AuditEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.AuditEntry), args.Error(1)
}

func (m *mockEntryRepository) UpdateAnonymized(ctx context.Context, entry *auditDomain.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockEntryRepository) List(
	ctx context.Context,
	filter *auditDomain.QueryFilter,
) ([]*auditDomain.AuditEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auditDomain.AuditEntry), args.Error(1)
}

func (m *mockEntryRepository) Count(ctx context.Context, filter *auditDomain.QueryFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockEntryRepository) ListRecentIDs(
	ctx context.Context,
	entityType auditDomain.EntityType,
	entityID string,
	action auditDomain.Action,
	since time.Time,
) ([]uuid.UUID, error) {
	args := m.Called(ctx, entityType, entityID, action, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockEntryRepository) ListRecentIDsByIP(
	ctx context.Context,
	entityType auditDomain.EntityType,
	action auditDomain.Action,
	ipAddress string,
	since time.Time,
) ([]uuid.UUID, error) {
	args := m.Called(ctx, entityType, action, ipAddress, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockEntryRepository) CountOlderThan(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockEntryRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}
