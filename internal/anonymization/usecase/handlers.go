package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	anonymizationService "github.com/allisson/compliance/internal/anonymization/service"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
)

// Rule tables. Statistical fields are generalized when educational statistics
// are preserved and removed otherwise.
var (
	studentRules = []anonymizationDomain.FieldRule{
		{Field: "first_name", Strategy: anonymizationDomain.StrategySubstitute},
		{Field: "last_name", Strategy: anonymizationDomain.StrategySubstitute},
		{Field: "birth_date", Strategy: anonymizationDomain.StrategyGeneralize},
		{Field: "postal_code", Strategy: anonymizationDomain.StrategyGeneralize, Statistical: true},
		{Field: "age", Strategy: anonymizationDomain.StrategyGeneralize, Statistical: true},
		{Field: "grade_level", Strategy: anonymizationDomain.StrategyGeneralize, Statistical: true},
		{Field: "completion_rate", Strategy: anonymizationDomain.StrategyGeneralize, Statistical: true},
	}

	parentRules = []anonymizationDomain.FieldRule{
		{Field: "email", Strategy: anonymizationDomain.StrategyHash},
		{Field: "first_name", Strategy: anonymizationDomain.StrategySubstitute},
		{Field: "last_name", Strategy: anonymizationDomain.StrategySubstitute},
		{Field: "phone", Strategy: anonymizationDomain.StrategyMask, PreserveFormat: true},
		{Field: "address", Strategy: anonymizationDomain.StrategyRemove},
	}

	sessionRules = []anonymizationDomain.FieldRule{
		{Field: "ip_address", Strategy: anonymizationDomain.StrategyGeneralize, Statistical: true},
		{Field: "user_agent", Strategy: anonymizationDomain.StrategyGeneralize, Statistical: true},
		{Field: "device_id", Strategy: anonymizationDomain.StrategyHash},
	}
)

func optString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func toOptString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

// StudentHandler anonymizes a student, their sessions and their audit trail.
type StudentHandler struct {
	students StudentRepository
	sessions SessionRepository
	audit    AuditLogger
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(students StudentRepository, sessions SessionRepository, audit AuditLogger) *StudentHandler {
	return &StudentHandler{students: students, sessions: sessions, audit: audit}
}

func (h *StudentHandler) EntityType() auditDomain.EntityType { return auditDomain.EntityStudent }

func (h *StudentHandler) Rules() []anonymizationDomain.FieldRule { return studentRules }

func (h *StudentHandler) Load(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Record, error) {
	s, err := h.students.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"first_name":      s.FirstName,
		"last_name":       s.LastName,
		"birth_date":      nil,
		"postal_code":     optString(s.PostalCode),
		"age":             s.Age,
		"grade_level":     s.GradeLevel,
		"completion_rate": nil,
	}
	if s.BirthDate != nil {
		fields["birth_date"] = *s.BirthDate
	}
	if s.CompletionRate != nil {
		fields["completion_rate"] = *s.CompletionRate
	}
	return &anonymizationDomain.Record{Fields: fields, AnonymizedAt: s.AnonymizedAt}, nil
}

func (h *StudentHandler) Save(ctx context.Context, id uuid.UUID, fields map[string]any, at time.Time) error {
	s, err := h.students.Get(ctx, id)
	if err != nil {
		return err
	}

	s.FirstName = toString(fields["first_name"])
	s.LastName = toString(fields["last_name"])
	s.PostalCode = toOptString(fields["postal_code"])
	s.GradeLevel = toString(fields["grade_level"])

	// birth_date keeps only the year, stored as January 1st.
	s.BirthDate = nil
	if year, ok := fields["birth_date"].(string); ok {
		if t, err := time.Parse("2006", year); err == nil {
			s.BirthDate = &t
		}
	}

	// age keeps the lower bound of its band.
	s.Age = 0
	if band, ok := fields["age"].(string); ok {
		if lower, ok := anonymizationService.AgeBandLowerBound(band); ok {
			s.Age = lower
		}
	}

	s.CompletionRate = nil
	if rate, ok := fields["completion_rate"].(float64); ok {
		s.CompletionRate = &rate
	}

	s.AnonymizedAt = &at
	s.UpdatedAt = at
	return h.students.UpdateAnonymized(ctx, s)
}

func (h *StudentHandler) Dependents(ctx context.Context, id uuid.UUID) ([]anonymizationDomain.Target, error) {
	sessions, err := h.sessions.ListByStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	targets := make([]anonymizationDomain.Target, 0, len(sessions))
	for _, session := range sessions {
		if session.AnonymizedAt != nil {
			continue
		}
		targets = append(targets, anonymizationDomain.Target{
			EntityType: auditDomain.EntitySession,
			EntityID:   session.ID,
		})
	}
	return targets, nil
}

// Finalize scrubs the student's audit trail.
func (h *StudentHandler) Finalize(ctx context.Context, id uuid.UUID, reason anonymizationDomain.Reason) (int, error) {
	return h.audit.AnonymizeStudentLogs(ctx, id.String(), string(reason))
}

// ParentHandler anonymizes a parent's contact data.
type ParentHandler struct {
	parents ParentRepository
}

// NewParentHandler creates a new ParentHandler.
func NewParentHandler(parents ParentRepository) *ParentHandler {
	return &ParentHandler{parents: parents}
}

func (h *ParentHandler) EntityType() auditDomain.EntityType { return auditDomain.EntityParent }

func (h *ParentHandler) Rules() []anonymizationDomain.FieldRule { return parentRules }

func (h *ParentHandler) Load(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Record, error) {
	p, err := h.parents.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"email":      p.Email,
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"phone":      optString(p.Phone),
		"address":    optString(p.Address),
	}
	return &anonymizationDomain.Record{Fields: fields, AnonymizedAt: p.AnonymizedAt}, nil
}

func (h *ParentHandler) Save(ctx context.Context, id uuid.UUID, fields map[string]any, at time.Time) error {
	p, err := h.parents.Get(ctx, id)
	if err != nil {
		return err
	}

	p.Email = toString(fields["email"])
	p.FirstName = toString(fields["first_name"])
	p.LastName = toString(fields["last_name"])
	p.Phone = toOptString(fields["phone"])
	p.Address = toOptString(fields["address"])
	p.AnonymizedAt = &at
	p.UpdatedAt = at
	return h.parents.UpdateAnonymized(ctx, p)
}

func (h *ParentHandler) Dependents(context.Context, uuid.UUID) ([]anonymizationDomain.Target, error) {
	return nil, nil
}

// SessionHandler anonymizes the network identifiers of a session.
type SessionHandler struct {
	sessions SessionRepository
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions SessionRepository) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) EntityType() auditDomain.EntityType { return auditDomain.EntitySession }

func (h *SessionHandler) Rules() []anonymizationDomain.FieldRule { return sessionRules }

func (h *SessionHandler) Load(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Record, error) {
	s, err := h.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"ip_address": optString(s.IPAddress),
		"user_agent": optString(s.UserAgent),
		"device_id":  optString(s.DeviceID),
	}
	return &anonymizationDomain.Record{Fields: fields, AnonymizedAt: s.AnonymizedAt}, nil
}

func (h *SessionHandler) Save(ctx context.Context, id uuid.UUID, fields map[string]any, at time.Time) error {
	s, err := h.sessions.Get(ctx, id)
	if err != nil {
		return err
	}

	s.IPAddress = toOptString(fields["ip_address"])
	s.UserAgent = toOptString(fields["user_agent"])
	s.DeviceID = toOptString(fields["device_id"])
	s.AnonymizedAt = &at
	return h.sessions.UpdateAnonymized(ctx, s)
}

func (h *SessionHandler) Dependents(context.Context, uuid.UUID) ([]anonymizationDomain.Target, error) {
	return nil, nil
}

var (
	_ EntityHandler = (*StudentHandler)(nil)
	_ Finalizer     = (*StudentHandler)(nil)
	_ EntityHandler = (*ParentHandler)(nil)
	_ EntityHandler = (*SessionHandler)(nil)
)
