package pipeline_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"payhook.dev/ledger/internal/domain/adapters"
	"payhook.dev/ledger/internal/domain/entities"
	"payhook.dev/ledger/internal/domain/repositories"
	"payhook.dev/ledger/internal/pipeline"
)

type mockAdapter struct {
	mock.Mock
	name string
}

func (m *mockAdapter) ProviderName() string      { return m.name }
func (m *mockAdapter) SupportedEvents() []string { return nil }

func (m *mockAdapter) VerifySignature(rawBody []byte, headers map[string]string, secrets []string) bool {
	args := m.Called(rawBody, headers, secrets)
	return args.Bool(0)
}

func (m *mockAdapter) ParsePayload(rawBody []byte) (interface{}, error) {
	args := m.Called(rawBody)
	return args.Get(0), args.Error(1)
}

func (m *mockAdapter) Normalize(parsed interface{}) (adapters.NormalizedEvent, error) {
	args := m.Called(parsed)
	return args.Get(0).(adapters.NormalizedEvent), args.Error(1)
}

func (m *mockAdapter) ExtractIdempotencyKey(parsed interface{}, rawBody []byte, receivedAt time.Time) string {
	args := m.Called(parsed, rawBody, receivedAt)
	return args.String(0)
}

func (m *mockAdapter) ExtractReferences(parsed interface{}) adapters.References {
	args := m.Called(parsed)
	return args.Get(0).(adapters.References)
}

func (m *mockAdapter) ExtractEventType(parsed interface{}) string {
	args := m.Called(parsed)
	return args.String(0)
}

func (m *mockAdapter) IsSuccessEvent(eventType string) bool { return false }
func (m *mockAdapter) IsFailureEvent(eventType string) bool { return false }
func (m *mockAdapter) IsRefundEvent(eventType string) bool  { return false }
func (m *mockAdapter) IsDisputeEvent(eventType string) bool { return false }

type mockSecretProvider struct{ mock.Mock }

func (m *mockSecretProvider) SecretsFor(ctx context.Context, provider string) ([]string, error) {
	args := m.Called(ctx, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockWebhookLogRepo struct{ mock.Mock }

func (m *mockWebhookLogRepo) Create(ctx context.Context, in repositories.CreateWebhookLogInput) (*entities.WebhookLog, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WebhookLog), args.Error(1)
}

func (m *mockWebhookLogRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.WebhookLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WebhookLog), args.Error(1)
}

func (m *mockWebhookLogRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.ProcessingStatus, errorMessage string) error {
	args := m.Called(ctx, id, status, errorMessage)
	return args.Error(0)
}

func (m *mockWebhookLogRepo) LinkTransaction(ctx context.Context, webhookLogID, transactionID uuid.UUID) error {
	args := m.Called(ctx, webhookLogID, transactionID)
	return args.Error(0)
}

func (m *mockWebhookLogRepo) SetDuration(ctx context.Context, id uuid.UUID, durationMs int64) error {
	args := m.Called(ctx, id, durationMs)
	return args.Error(0)
}

func (m *mockWebhookLogRepo) FindByProviderEventID(ctx context.Context, provider, providerEventID string) ([]*entities.WebhookLog, error) {
	args := m.Called(ctx, provider, providerEventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.WebhookLog), args.Error(1)
}

func (m *mockWebhookLogRepo) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return int64(args.Int(0)), args.Error(1)
}

type mockTransactionRepo struct{ mock.Mock }

func (m *mockTransactionRepo) Create(ctx context.Context, in repositories.CreateTransactionInput) (*entities.Transaction, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) Find(ctx context.Context, q repositories.TransactionQuery) (*entities.Transaction, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *mockTransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransactionStatus, audit repositories.AuditEntry) error {
	args := m.Called(ctx, id, status, audit)
	return args.Error(0)
}

func (m *mockTransactionRepo) MarkAsProcessing(ctx context.Context, id uuid.UUID, providerRef string, vm *entities.VerificationMethod, audit repositories.AuditEntry) error {
	args := m.Called(ctx, id, providerRef, vm, audit)
	return args.Error(0)
}

func (m *mockTransactionRepo) LinkProviderRef(ctx context.Context, id uuid.UUID, ref string) error {
	args := m.Called(ctx, id, ref)
	return args.Error(0)
}

type mockAuditLogRepo struct{ mock.Mock }

func (m *mockAuditLogRepo) Create(ctx context.Context, log *entities.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

type mockUnitOfWork struct{ mock.Mock }

func (m *mockUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

func (m *mockUnitOfWork) WithLock(ctx context.Context) context.Context {
	m.Called(ctx)
	return ctx
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, claim *pipeline.Context) error {
	args := m.Called(ctx, claim)
	return args.Error(0)
}
