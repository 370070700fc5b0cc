package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"payhook.dev/ledger/internal/domain/adapters"
	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/internal/pipeline"
)

func buildStages(adapter adapters.Adapter, secrets *mockSecretProvider, logs *mockWebhookLogRepo, txns *mockTransactionRepo, audit *mockAuditLogRepo, uow *mockUnitOfWork, dispatcher *mockDispatcher) []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.NewVerifyStage(secrets),
		pipeline.NewNormalizeStage(),
		pipeline.NewPersistClaimStage(logs, txns, audit),
		pipeline.NewDedupStage(logs, audit),
		pipeline.NewStateEngineStage(txns, logs, audit, uow),
		pipeline.NewDispatchStage(dispatcher),
	}
}

func newClaim(provider string, adapter adapters.Adapter) *pipeline.Context {
	c := pipeline.NewContext(provider, []byte(`{}`), map[string]string{"sig": "abc"}, time.Now())
	c.Adapter = adapter
	return c
}

func TestProcessor_HappyPath_ReachesProcessed(t *testing.T) {
	adapter := new(mockAdapter)
	secrets := new(mockSecretProvider)
	logs := new(mockWebhookLogRepo)
	txns := new(mockTransactionRepo)
	audit := new(mockAuditLogRepo)
	uow := new(mockUnitOfWork)
	dispatcher := new(mockDispatcher)

	txnID := uuid.New()
	logID := uuid.New()
	normalized := adapters.NormalizedEvent{EventType: entities.EventPaymentSuccessful, ProviderRef: "ref-1"}

	secrets.On("SecretsFor", mock.Anything, "stripe").Return([]string{"whsec_1"}, nil)
	adapter.On("VerifySignature", mock.Anything, mock.Anything, mock.Anything).Return(true)
	adapter.On("ParsePayload", mock.Anything).Return(map[string]string{"ok": "true"}, nil)
	adapter.On("Normalize", mock.Anything).Return(normalized, nil)
	adapter.On("ExtractIdempotencyKey", mock.Anything, mock.Anything, mock.Anything).Return("evt_1")
	adapter.On("ExtractEventType", mock.Anything).Return(string(entities.EventPaymentSuccessful))
	adapter.On("ExtractReferences", mock.Anything).Return(adapters.References{})

	logs.On("Create", mock.Anything, mock.Anything).Return(&entities.WebhookLog{ID: logID}, nil)
	logs.On("FindByProviderEventID", mock.Anything, "stripe", "evt_1").Return([]*entities.WebhookLog{}, nil)
	logs.On("UpdateStatus", mock.Anything, logID, entities.FateProcessed, "").Return(nil)
	logs.On("SetDuration", mock.Anything, logID, mock.Anything).Return(nil)
	logs.On("LinkTransaction", mock.Anything, logID, txnID).Return(nil)

	uow.On("Do", mock.Anything).Return(nil)
	uow.On("WithLock", mock.Anything).Return(nil)
	txns.On("Find", mock.Anything, mock.Anything).Return(&entities.Transaction{ID: txnID, Status: entities.StatusProcessing}, nil)
	txns.On("LinkProviderRef", mock.Anything, txnID, "ref-1").Return(nil)
	txns.On("UpdateStatus", mock.Anything, txnID, entities.StatusSuccessful, mock.Anything).Return(nil)

	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)

	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)
	processor := pipeline.NewProcessor(logs, metrics, buildStages(adapter, secrets, logs, txns, audit, uow, dispatcher))

	claim := newClaim("stripe", adapter)
	result, err := processor.Process(context.Background(), claim)

	assert.NoError(t, err)
	assert.Equal(t, entities.FateProcessed, result.Fate)
	assert.NotNil(t, result.WebhookLogID)
}

func TestProcessor_SignatureFailure_StillPersistsAndSkipsTransition(t *testing.T) {
	adapter := new(mockAdapter)
	secrets := new(mockSecretProvider)
	logs := new(mockWebhookLogRepo)
	txns := new(mockTransactionRepo)
	audit := new(mockAuditLogRepo)
	uow := new(mockUnitOfWork)
	dispatcher := new(mockDispatcher)

	logID := uuid.New()
	normalized := adapters.NormalizedEvent{EventType: entities.EventPaymentSuccessful, ProviderRef: "ref-1"}

	secrets.On("SecretsFor", mock.Anything, "stripe").Return([]string{"whsec_1"}, nil)
	adapter.On("VerifySignature", mock.Anything, mock.Anything, mock.Anything).Return(false)
	adapter.On("ParsePayload", mock.Anything).Return(map[string]string{"ok": "true"}, nil)
	adapter.On("Normalize", mock.Anything).Return(normalized, nil)
	adapter.On("ExtractIdempotencyKey", mock.Anything, mock.Anything, mock.Anything).Return("evt_sig")
	adapter.On("ExtractEventType", mock.Anything).Return(string(entities.EventPaymentSuccessful))
	adapter.On("ExtractReferences", mock.Anything).Return(adapters.References{})

	logs.On("Create", mock.Anything, mock.Anything).Return(&entities.WebhookLog{ID: logID}, nil)
	logs.On("UpdateStatus", mock.Anything, logID, entities.FateSignatureFailed, mock.Anything).Return(nil)
	logs.On("SetDuration", mock.Anything, logID, mock.Anything).Return(nil)

	txns.On("Find", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)

	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)
	processor := pipeline.NewProcessor(logs, metrics, buildStages(adapter, secrets, logs, txns, audit, uow, dispatcher))

	claim := newClaim("stripe", adapter)
	result, err := processor.Process(context.Background(), claim)

	assert.NoError(t, err)
	assert.Equal(t, entities.FateSignatureFailed, result.Fate)
	assert.False(t, claim.SignatureValid)
	adapter.AssertCalled(t, "ParsePayload", mock.Anything)
	logs.AssertCalled(t, "Create", mock.Anything, mock.Anything)
	txns.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestProcessor_DuplicateEvent_SkipsDispatch(t *testing.T) {
	adapter := new(mockAdapter)
	secrets := new(mockSecretProvider)
	logs := new(mockWebhookLogRepo)
	txns := new(mockTransactionRepo)
	audit := new(mockAuditLogRepo)
	uow := new(mockUnitOfWork)
	dispatcher := new(mockDispatcher)

	logID := uuid.New()
	priorLogID := uuid.New()
	normalized := adapters.NormalizedEvent{EventType: entities.EventPaymentSuccessful, ProviderRef: "ref-1"}

	secrets.On("SecretsFor", mock.Anything, "stripe").Return([]string{"whsec_1"}, nil)
	adapter.On("VerifySignature", mock.Anything, mock.Anything, mock.Anything).Return(true)
	adapter.On("ParsePayload", mock.Anything).Return(map[string]string{"ok": "true"}, nil)
	adapter.On("Normalize", mock.Anything).Return(normalized, nil)
	adapter.On("ExtractIdempotencyKey", mock.Anything, mock.Anything, mock.Anything).Return("evt_1")
	adapter.On("ExtractEventType", mock.Anything).Return(string(entities.EventPaymentSuccessful))
	adapter.On("ExtractReferences", mock.Anything).Return(adapters.References{})

	logs.On("Create", mock.Anything, mock.Anything).Return(&entities.WebhookLog{ID: logID}, nil)
	logs.On("FindByProviderEventID", mock.Anything, "stripe", "evt_1").Return([]*entities.WebhookLog{{ID: priorLogID}}, nil)
	logs.On("UpdateStatus", mock.Anything, logID, entities.FateDuplicate, mock.Anything).Return(nil)
	logs.On("SetDuration", mock.Anything, logID, mock.Anything).Return(nil)

	txns.On("Find", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)

	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)
	processor := pipeline.NewProcessor(logs, metrics, buildStages(adapter, secrets, logs, txns, audit, uow, dispatcher))

	claim := newClaim("stripe", adapter)
	result, err := processor.Process(context.Background(), claim)

	assert.NoError(t, err)
	assert.Equal(t, entities.FateDuplicate, result.Fate)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	txns.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessor_UnmatchedTransaction(t *testing.T) {
	adapter := new(mockAdapter)
	secrets := new(mockSecretProvider)
	logs := new(mockWebhookLogRepo)
	txns := new(mockTransactionRepo)
	audit := new(mockAuditLogRepo)
	uow := new(mockUnitOfWork)
	dispatcher := new(mockDispatcher)

	logID := uuid.New()
	normalized := adapters.NormalizedEvent{EventType: entities.EventPaymentSuccessful, ProviderRef: "ref-missing"}

	secrets.On("SecretsFor", mock.Anything, "stripe").Return([]string{"whsec_1"}, nil)
	adapter.On("VerifySignature", mock.Anything, mock.Anything, mock.Anything).Return(true)
	adapter.On("ParsePayload", mock.Anything).Return(map[string]string{"ok": "true"}, nil)
	adapter.On("Normalize", mock.Anything).Return(normalized, nil)
	adapter.On("ExtractIdempotencyKey", mock.Anything, mock.Anything, mock.Anything).Return("evt_2")
	adapter.On("ExtractEventType", mock.Anything).Return(string(entities.EventPaymentSuccessful))
	adapter.On("ExtractReferences", mock.Anything).Return(adapters.References{})

	logs.On("Create", mock.Anything, mock.Anything).Return(&entities.WebhookLog{ID: logID}, nil)
	logs.On("FindByProviderEventID", mock.Anything, "stripe", "evt_2").Return([]*entities.WebhookLog{}, nil)
	logs.On("UpdateStatus", mock.Anything, logID, entities.FateUnmatched, mock.Anything).Return(nil)
	logs.On("SetDuration", mock.Anything, logID, mock.Anything).Return(nil)

	uow.On("Do", mock.Anything).Return(nil)
	uow.On("WithLock", mock.Anything).Return(nil)
	txns.On("Find", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)

	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)
	processor := pipeline.NewProcessor(logs, metrics, buildStages(adapter, secrets, logs, txns, audit, uow, dispatcher))

	claim := newClaim("stripe", adapter)
	result, err := processor.Process(context.Background(), claim)

	assert.NoError(t, err)
	assert.Equal(t, entities.FateUnmatched, result.Fate)
}

func TestProcessor_TransitionRejected_TerminalTransaction(t *testing.T) {
	adapter := new(mockAdapter)
	secrets := new(mockSecretProvider)
	logs := new(mockWebhookLogRepo)
	txns := new(mockTransactionRepo)
	audit := new(mockAuditLogRepo)
	uow := new(mockUnitOfWork)
	dispatcher := new(mockDispatcher)

	txnID := uuid.New()
	logID := uuid.New()
	normalized := adapters.NormalizedEvent{EventType: entities.EventPaymentSuccessful, ProviderRef: "ref-1"}

	secrets.On("SecretsFor", mock.Anything, "stripe").Return([]string{"whsec_1"}, nil)
	adapter.On("VerifySignature", mock.Anything, mock.Anything, mock.Anything).Return(true)
	adapter.On("ParsePayload", mock.Anything).Return(map[string]string{"ok": "true"}, nil)
	adapter.On("Normalize", mock.Anything).Return(normalized, nil)
	adapter.On("ExtractIdempotencyKey", mock.Anything, mock.Anything, mock.Anything).Return("evt_3")
	adapter.On("ExtractEventType", mock.Anything).Return(string(entities.EventPaymentSuccessful))
	adapter.On("ExtractReferences", mock.Anything).Return(adapters.References{})

	logs.On("Create", mock.Anything, mock.Anything).Return(&entities.WebhookLog{ID: logID}, nil)
	logs.On("FindByProviderEventID", mock.Anything, "stripe", "evt_3").Return([]*entities.WebhookLog{}, nil)
	logs.On("UpdateStatus", mock.Anything, logID, entities.FateTransitionRejected, mock.Anything).Return(nil)
	logs.On("SetDuration", mock.Anything, logID, mock.Anything).Return(nil)

	uow.On("Do", mock.Anything).Return(nil)
	uow.On("WithLock", mock.Anything).Return(nil)
	txns.On("Find", mock.Anything, mock.Anything).Return(&entities.Transaction{ID: txnID, Status: entities.StatusRefunded}, nil)
	txns.On("LinkProviderRef", mock.Anything, txnID, "ref-1").Return(nil)

	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)
	processor := pipeline.NewProcessor(logs, metrics, buildStages(adapter, secrets, logs, txns, audit, uow, dispatcher))

	claim := newClaim("stripe", adapter)
	result, err := processor.Process(context.Background(), claim)

	assert.NoError(t, err)
	assert.Equal(t, entities.FateTransitionRejected, result.Fate)
	txns.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessor_Timeout_ClassifiesAsParseError(t *testing.T) {
	logs := new(mockWebhookLogRepo)
	logID := uuid.New()

	logs.On("Create", mock.Anything, mock.Anything).Return(&entities.WebhookLog{ID: logID}, nil)
	logs.On("UpdateStatus", mock.Anything, logID, entities.FateParseError, mock.Anything).Return(nil)
	logs.On("SetDuration", mock.Anything, logID, mock.Anything).Return(nil)

	stuck := pipeline.NewStageFunc("slow", func(ctx context.Context, claim *pipeline.Context) error {
		<-ctx.Done()
		claim.WebhookLogID = &logID
		return ctx.Err()
	})

	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)
	processor := pipeline.NewProcessor(logs, metrics, []pipeline.Stage{stuck}, pipeline.WithTimeout(10*time.Millisecond))

	claim := newClaim("stripe", nil)
	result, err := processor.Process(context.Background(), claim)

	assert.NoError(t, err)
	assert.Equal(t, entities.FateParseError, result.Fate)
	assert.Equal(t, entities.FateParseError, claim.Fate)
}

func TestProcessor_ConcurrentClaimsAreIndependent(t *testing.T) {
	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()

			adapter := new(mockAdapter)
			secrets := new(mockSecretProvider)
			logs := new(mockWebhookLogRepo)
			txns := new(mockTransactionRepo)
			audit := new(mockAuditLogRepo)
			uow := new(mockUnitOfWork)
			dispatcher := new(mockDispatcher)

			txnID := uuid.New()
			logID := uuid.New()
			normalized := adapters.NormalizedEvent{EventType: entities.EventPaymentSuccessful, ProviderRef: "ref"}

			secrets.On("SecretsFor", mock.Anything, "stripe").Return([]string{"whsec_1"}, nil)
			adapter.On("VerifySignature", mock.Anything, mock.Anything, mock.Anything).Return(true)
			adapter.On("ParsePayload", mock.Anything).Return(map[string]string{"ok": "true"}, nil)
			adapter.On("Normalize", mock.Anything).Return(normalized, nil)
			adapter.On("ExtractIdempotencyKey", mock.Anything, mock.Anything, mock.Anything).Return(uuid.NewString())
			adapter.On("ExtractEventType", mock.Anything).Return(string(entities.EventPaymentSuccessful))
			adapter.On("ExtractReferences", mock.Anything).Return(adapters.References{})

			logs.On("Create", mock.Anything, mock.Anything).Return(&entities.WebhookLog{ID: logID}, nil)
			logs.On("FindByProviderEventID", mock.Anything, "stripe", mock.Anything).Return([]*entities.WebhookLog{}, nil)
			logs.On("UpdateStatus", mock.Anything, logID, entities.FateProcessed, "").Return(nil)
			logs.On("SetDuration", mock.Anything, logID, mock.Anything).Return(nil)
			logs.On("LinkTransaction", mock.Anything, logID, txnID).Return(nil)

			uow.On("Do", mock.Anything).Return(nil)
			uow.On("WithLock", mock.Anything).Return(nil)
			txns.On("Find", mock.Anything, mock.Anything).Return(&entities.Transaction{ID: txnID, Status: entities.StatusProcessing}, nil)
			txns.On("LinkProviderRef", mock.Anything, txnID, "ref").Return(nil)
			txns.On("UpdateStatus", mock.Anything, txnID, entities.StatusSuccessful, mock.Anything).Return(nil)
			audit.On("Create", mock.Anything, mock.Anything).Return(nil)
			dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)

			reg := prometheus.NewRegistry()
			metrics := pipeline.NewMetrics(reg)
			processor := pipeline.NewProcessor(logs, metrics, buildStages(adapter, secrets, logs, txns, audit, uow, dispatcher))

			claim := newClaim("stripe", adapter)
			result, err := processor.Process(context.Background(), claim)
			assert.NoError(t, err)
			assert.Equal(t, entities.FateProcessed, result.Fate)
		}(i)
	}

	wg.Wait()
}
