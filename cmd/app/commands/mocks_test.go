package commands

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	anonymizationDomain "github.com/allisson/compliance/internal/anonymization/domain"
	auditDomain "github.com/allisson/compliance/internal/audit/domain"
	consentDomain "github.com/allisson/compliance/internal/consent/domain"
	cryptoDomain "github.com/allisson/compliance/internal/crypto/domain"
	retentionDomain "github.com/allisson/compliance/internal/retention/domain"
	"github.com/allisson/compliance/internal/scheduler"
)

type MockAuditUseCase struct {
	mock.Mock
}

func (m *MockAuditUseCase) LogAction(ctx context.Context, input *auditDomain.LogActionInput) uuid.UUID {
	args := m.Called(ctx, input)
	return args.Get(0).(uuid.UUID)
}

func (m *MockAuditUseCase) VerifyIntegrity(ctx context.Context, id uuid.UUID) (*auditDomain.IntegrityResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.IntegrityResult), args.Error(1)
}

func (m *MockAuditUseCase) VerifyBatch(
	ctx context.Context,
	from, to *time.Time,
) (*auditDomain.BatchVerification, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.BatchVerification), args.Error(1)
}

func (m *MockAuditUseCase) Query(ctx context.Context, filter *auditDomain.QueryFilter) (*auditDomain.QueryResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.QueryResult), args.Error(1)
}

func (m *MockAuditUseCase) AnonymizeStudentLogs(ctx context.Context, studentID, reason string) (int, error) {
	args := m.Called(ctx, studentID, reason)
	return args.Int(0), args.Error(1)
}

func (m *MockAuditUseCase) DeleteOlderThan(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	args := m.Called(ctx, before, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuditUseCase) ListAlerts(
	ctx context.Context,
	resolved *bool,
	offset, limit int,
) ([]*auditDomain.SecurityAlert, error) {
	args := m.Called(ctx, resolved, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auditDomain.SecurityAlert), args.Error(1)
}

func (m *MockAuditUseCase) ResolveAlert(
	ctx context.Context,
	id uuid.UUID,
	resolvedBy string,
) (*auditDomain.SecurityAlert, error) {
	args := m.Called(ctx, id, resolvedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.SecurityAlert), args.Error(1)
}

type MockRetentionUseCase struct {
	mock.Mock
}

func (m *MockRetentionUseCase) CreatePolicy(
	ctx context.Context,
	input *retentionDomain.CreatePolicyInput,
) (*retentionDomain.Policy, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retentionDomain.Policy), args.Error(1)
}

func (m *MockRetentionUseCase) SetPolicyActive(
	ctx context.Context,
	id uuid.UUID,
	active bool,
) (*retentionDomain.Policy, error) {
	args := m.Called(ctx, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retentionDomain.Policy), args.Error(1)
}

func (m *MockRetentionUseCase) ListPolicies(ctx context.Context) ([]*retentionDomain.Policy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*retentionDomain.Policy), args.Error(1)
}

func (m *MockRetentionUseCase) ExecutePolicies(ctx context.Context) (*retentionDomain.RunReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retentionDomain.RunReport), args.Error(1)
}

func (m *MockRetentionUseCase) ExecuteSinglePolicy(
	ctx context.Context,
	id uuid.UUID,
) (*retentionDomain.PolicyReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retentionDomain.PolicyReport), args.Error(1)
}

func (m *MockRetentionUseCase) GetStatus(ctx context.Context) (*retentionDomain.Status, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retentionDomain.Status), args.Error(1)
}

func (m *MockRetentionUseCase) SeedDefaultPolicies(ctx context.Context) ([]*retentionDomain.Policy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*retentionDomain.Policy), args.Error(1)
}

type MockAnonymizationUseCase struct {
	mock.Mock
}

func (m *MockAnonymizationUseCase) job(args mock.Arguments) (*anonymizationDomain.Job, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anonymizationDomain.Job), args.Error(1)
}

func (m *MockAnonymizationUseCase) Schedule(
	ctx context.Context,
	input *anonymizationDomain.ScheduleInput,
) (*anonymizationDomain.Job, error) {
	return m.job(m.Called(ctx, input))
}

func (m *MockAnonymizationUseCase) Execute(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error) {
	return m.job(m.Called(ctx, id))
}

func (m *MockAnonymizationUseCase) Cancel(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error) {
	return m.job(m.Called(ctx, id))
}

func (m *MockAnonymizationUseCase) GetJobStatus(ctx context.Context, id uuid.UUID) (*anonymizationDomain.Job, error) {
	return m.job(m.Called(ctx, id))
}

func (m *MockAnonymizationUseCase) ListJobs(
	ctx context.Context,
	status *anonymizationDomain.Status,
	offset, limit int,
) ([]*anonymizationDomain.Job, error) {
	args := m.Called(ctx, status, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*anonymizationDomain.Job), args.Error(1)
}

func (m *MockAnonymizationUseCase) CheckInactiveAccounts(
	ctx context.Context,
) (*anonymizationDomain.InactivityReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anonymizationDomain.InactivityReport), args.Error(1)
}

func (m *MockAnonymizationUseCase) RecoverJobs(ctx context.Context) (*anonymizationDomain.RecoveryReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anonymizationDomain.RecoveryReport), args.Error(1)
}

func (m *MockAnonymizationUseCase) RunDueJobs(ctx context.Context) (*anonymizationDomain.DueReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anonymizationDomain.DueReport), args.Error(1)
}

type MockConsentUseCase struct {
	mock.Mock
}

func (m *MockConsentUseCase) consent(args mock.Arguments) (*consentDomain.Consent, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*consentDomain.Consent), args.Error(1)
}

func (m *MockConsentUseCase) Initiate(
	ctx context.Context,
	input *consentDomain.InitiateInput,
) (*consentDomain.Consent, error) {
	return m.consent(m.Called(ctx, input))
}

func (m *MockConsentUseCase) ProcessFirstConsent(ctx context.Context, token string) (*consentDomain.Consent, error) {
	return m.consent(m.Called(ctx, token))
}

func (m *MockConsentUseCase) ProcessSecondConsent(ctx context.Context, token string) (*consentDomain.Consent, error) {
	return m.consent(m.Called(ctx, token))
}

func (m *MockConsentUseCase) Revoke(ctx context.Context, input *consentDomain.RevokeInput) (*consentDomain.Consent, error) {
	return m.consent(m.Called(ctx, input))
}

func (m *MockConsentUseCase) IsValidForProcessing(
	ctx context.Context,
	studentID uuid.UUID,
	consentType consentDomain.Type,
) (bool, error) {
	args := m.Called(ctx, studentID, consentType)
	return args.Bool(0), args.Error(1)
}

func (m *MockConsentUseCase) Get(ctx context.Context, id uuid.UUID) (*consentDomain.Consent, error) {
	return m.consent(m.Called(ctx, id))
}

func (m *MockConsentUseCase) ExpirePending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockKMSService struct {
	mock.Mock
}

func (m *MockKMSService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	args := m.Called(ctx, keyURI)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(cryptoDomain.KMSKeeper), args.Error(1)
}

type MockKMSKeeper struct {
	mock.Mock
}

func (m *MockKMSKeeper) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	args := m.Called(ctx, plaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	args := m.Called(ctx, ciphertext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Close() error {
	return m.Called().Error(0)
}

// recordingRegistrar keeps registered tasks so tests can run them.
type recordingRegistrar struct {
	specs map[string]string
	tasks map[string]scheduler.Task
	err   error
}

func newRecordingRegistrar() *recordingRegistrar {
	return &recordingRegistrar{specs: map[string]string{}, tasks: map[string]scheduler.Task{}}
}

func (r *recordingRegistrar) RunEvery(name, spec string, task scheduler.Task) error {
	if r.err != nil {
		return r.err
	}
	r.specs[name] = spec
	r.tasks[name] = task
	return nil
}
