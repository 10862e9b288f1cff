package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/compliance/internal/archive"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	"github.com/allisson/compliance/internal/database"
	apperrors "github.com/allisson/compliance/internal/errors"
	learnerDomain "github.com/allisson/compliance/internal/learner/domain"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
)

// archiveSnapshot writes v to cold storage and tags the entity archived.
func archiveSnapshot(
	ctx context.Context,
	store archive.Store,
	entityType auditDomain.EntityType,
	id uuid.UUID,
	v any,
	mark func(ctx context.Context, id uuid.UUID, at time.Time) error,
	at time.Time,
) (string, error) {
	key := archive.Key(string(entityType), id.String())
	if err := store.Put(ctx, key, v); err != nil {
		return "", apperrors.Wrap(err, "failed to write archive object")
	}
	if err := mark(ctx, id, at); err != nil {
		return "", apperrors.Wrap(err, "failed to tag entity archived")
	}
	return key, nil
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

// StudentAdapter finds students by last activity. Deleting a student removes its sessions.
type StudentAdapter struct {
	txManager database.TxManager
	students  StudentStore
	parents   ParentStore
	sessions  SessionStore
	store     archive.Store
}

// NewStudentAdapter creates a new StudentAdapter.
func NewStudentAdapter(
	txManager database.TxManager,
	students StudentStore,
	parents ParentStore,
	sessions SessionStore,
	store archive.Store,
) *StudentAdapter {
	return &StudentAdapter{txManager: txManager, students: students, parents: parents, sessions: sessions, store: store}
}

func (a *StudentAdapter) EntityType() auditDomain.EntityType { return auditDomain.EntityStudent }

// FindEligible warns the student's parent when the parent still holds personal data.
func (a *StudentAdapter) FindEligible(
	ctx context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*retentionDomain.Candidate, error) {
	students, err := a.students.FindInactive(ctx, before, after, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]*retentionDomain.Candidate, 0, len(students))
	for _, s := range students {
		c := &retentionDomain.Candidate{
			EntityType:     auditDomain.EntityStudent,
			EntityID:       s.ID,
			ReferenceTime:  s.LastActivityAt,
			LastActivityAt: s.LastActivityAt,
			Metadata:       s.Metadata,
		}

		parent, err := a.parents.Get(ctx, s.ParentID)
		switch {
		case err == nil && parent.AnonymizedAt == nil:
			c.Contact = &retentionDomain.Contact{Email: parent.Email, Name: fullName(parent.FirstName, parent.LastName)}
		case err != nil && !apperrors.Is(err, learnerDomain.ErrParentNotFound):
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (a *StudentAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	return a.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := a.sessions.DeleteByStudent(ctx, id); err != nil {
			return err
		}
		return a.students.Delete(ctx, id)
	})
}

func (a *StudentAdapter) Archive(ctx context.Context, id uuid.UUID, at time.Time) (string, error) {
	student, err := a.students.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return archiveSnapshot(ctx, a.store, auditDomain.EntityStudent, id, student, a.students.MarkArchived, at)
}

// ParentAdapter finds parents by last activity. Deleting a parent removes every
// student and session under it.
type ParentAdapter struct {
	txManager database.TxManager
	parents   ParentStore
	students  StudentStore
	sessions  SessionStore
	store     archive.Store
}

// NewParentAdapter creates a new ParentAdapter.
func NewParentAdapter(
	txManager database.TxManager,
	parents ParentStore,
	students StudentStore,
	sessions SessionStore,
	store archive.Store,
) *ParentAdapter {
	return &ParentAdapter{txManager: txManager, parents: parents, students: students, sessions: sessions, store: store}
}

func (a *ParentAdapter) EntityType() auditDomain.EntityType { return auditDomain.EntityParent }

func (a *ParentAdapter) FindEligible(
	ctx context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*retentionDomain.Candidate, error) {
	parents, err := a.parents.FindInactive(ctx, before, after, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]*retentionDomain.Candidate, 0, len(parents))
	for _, p := range parents {
		candidates = append(candidates, &retentionDomain.Candidate{
			EntityType:     auditDomain.EntityParent,
			EntityID:       p.ID,
			ReferenceTime:  p.LastActivityAt,
			LastActivityAt: p.LastActivityAt,
			Metadata:       p.Metadata,
			Contact:        &retentionDomain.Contact{Email: p.Email, Name: fullName(p.FirstName, p.LastName)},
		})
	}
	return candidates, nil
}

func (a *ParentAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	return a.txManager.WithTx(ctx, func(ctx context.Context) error {
		students, err := a.students.ListByParent(ctx, id)
		if err != nil {
			return err
		}
		for _, s := range students {
			if _, err := a.sessions.DeleteByStudent(ctx, s.ID); err != nil {
				return err
			}
			if err := a.students.Delete(ctx, s.ID); err != nil {
				return err
			}
		}
		return a.parents.Delete(ctx, id)
	})
}

func (a *ParentAdapter) Archive(ctx context.Context, id uuid.UUID, at time.Time) (string, error) {
	parent, err := a.parents.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return archiveSnapshot(ctx, a.store, auditDomain.EntityParent, id, parent, a.parents.MarkArchived, at)
}

// SessionAdapter finds sessions by last activity.
type SessionAdapter struct {
	sessions SessionStore
	store    archive.Store
}

// NewSessionAdapter creates a new SessionAdapter.
func NewSessionAdapter(sessions SessionStore, store archive.Store) *SessionAdapter {
	return &SessionAdapter{sessions: sessions, store: store}
}

func (a *SessionAdapter) EntityType() auditDomain.EntityType { return auditDomain.EntitySession }

func (a *SessionAdapter) FindEligible(
	ctx context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*retentionDomain.Candidate, error) {
	sessions, err := a.sessions.FindInactive(ctx, before, after, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]*retentionDomain.Candidate, 0, len(sessions))
	for _, s := range sessions {
		candidates = append(candidates, &retentionDomain.Candidate{
			EntityType:     auditDomain.EntitySession,
			EntityID:       s.ID,
			ReferenceTime:  s.LastActivityAt,
			LastActivityAt: s.LastActivityAt,
			Metadata:       s.Metadata,
		})
	}
	return candidates, nil
}

func (a *SessionAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	return a.sessions.Delete(ctx, id)
}

func (a *SessionAdapter) Archive(ctx context.Context, id uuid.UUID, at time.Time) (string, error) {
	session, err := a.sessions.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return archiveSnapshot(ctx, a.store, auditDomain.EntitySession, id, session, a.sessions.MarkArchived, at)
}

// ConsentAdapter finds consents by their last status change.
type ConsentAdapter struct {
	consents ConsentStore
	store    archive.Store
}

// NewConsentAdapter creates a new ConsentAdapter.
func NewConsentAdapter(consents ConsentStore, store archive.Store) *ConsentAdapter {
	return &ConsentAdapter{consents: consents, store: store}
}

func (a *ConsentAdapter) EntityType() auditDomain.EntityType {
	return auditDomain.EntityParentalConsent
}

func (a *ConsentAdapter) FindEligible(
	ctx context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*retentionDomain.Candidate, error) {
	consents, err := a.consents.FindOlderThan(ctx, before, after, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]*retentionDomain.Candidate, 0, len(consents))
	for _, c := range consents {
		candidates = append(candidates, &retentionDomain.Candidate{
			EntityType:     auditDomain.EntityParentalConsent,
			EntityID:       c.ID,
			ReferenceTime:  c.UpdatedAt,
			LastActivityAt: c.UpdatedAt,
			Metadata:       c.Metadata,
			Contact:        &retentionDomain.Contact{Email: c.ParentEmail, Name: c.ParentName},
		})
	}
	return candidates, nil
}

func (a *ConsentAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	return a.consents.Delete(ctx, id)
}

func (a *ConsentAdapter) Archive(ctx context.Context, id uuid.UUID, at time.Time) (string, error) {
	consent, err := a.consents.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return archiveSnapshot(ctx, a.store, auditDomain.EntityParentalConsent, id, consent, a.consents.MarkArchived, at)
}

// AuditLogAdapter finds audit entries by timestamp. Archived entries keep their
// checksum and encrypted details as stored.
type AuditLogAdapter struct {
	entries AuditEntryStore
	store   archive.Store
}

// NewAuditLogAdapter creates a new AuditLogAdapter.
func NewAuditLogAdapter(entries AuditEntryStore, store archive.Store) *AuditLogAdapter {
	return &AuditLogAdapter{entries: entries, store: store}
}

func (a *AuditLogAdapter) EntityType() auditDomain.EntityType { return auditDomain.EntityAuditLog }

func (a *AuditLogAdapter) FindEligible(
	ctx context.Context,
	before time.Time,
	after *database.Cursor,
	limit int,
) ([]*retentionDomain.Candidate, error) {
	entries, err := a.entries.FindOlderThan(ctx, before, after, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]*retentionDomain.Candidate, 0, len(entries))
	for _, e := range entries {
		candidates = append(candidates, &retentionDomain.Candidate{
			EntityType:     auditDomain.EntityAuditLog,
			EntityID:       e.ID,
			ReferenceTime:  e.Timestamp,
			LastActivityAt: e.Timestamp,
		})
	}
	return candidates, nil
}

func (a *AuditLogAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	return a.entries.Delete(ctx, id)
}

func (a *AuditLogAdapter) Archive(ctx context.Context, id uuid.UUID, at time.Time) (string, error) {
	entry, err := a.entries.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return archiveSnapshot(ctx, a.store, auditDomain.EntityAuditLog, id, entry, a.entries.MarkArchived, at)
}

var (
	_ EntityAdapter = (*StudentAdapter)(nil)
	_ EntityAdapter = (*ParentAdapter)(nil)
	_ EntityAdapter = (*SessionAdapter)(nil)
	_ EntityAdapter = (*ConsentAdapter)(nil)
	_ EntityAdapter = (*AuditLogAdapter)(nil)
)
