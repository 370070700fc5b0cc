// Package dispatcher implements the in-process event fan-out (C7): once a
// claim settles at a non-skipped fate, its normalized event is handed to
// every handler registered for its event type, concurrently, and recorded as
// a durable outbox event for out-of-process consumers.
package dispatcher

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"payhook.dev/ledger/internal/domain/entities"
	"payhook.dev/ledger/internal/domain/repositories"
	"payhook.dev/ledger/internal/pipeline"
	"payhook.dev/ledger/pkg/logger"
)

// Handler reacts to a settled, normalized event in-process (e.g. an
// in-memory projection, a cache invalidation). Handlers MUST NOT block on
// anything slower than the claim's own timeout budget.
type Handler interface {
	Name() string
	Handle(ctx context.Context, claim *pipeline.Context) error
}

// Registry is the C7 dispatch target: a fixed set of handlers per event
// type, plus the outbox write that backs at-least-once delivery to
// out-of-process consumers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[entities.NormalizedEventType][]Handler

	dispatchLogs repositories.DispatchLogRepository
	outbox       repositories.OutboxRepository
	maxRetries   int
}

// NewRegistry builds an empty Registry. Register handlers with Register
// before the processor starts accepting traffic; there is no runtime
// re-registration.
func NewRegistry(dispatchLogs repositories.DispatchLogRepository, outbox repositories.OutboxRepository, maxRetries int) *Registry {
	return &Registry{
		handlers:     make(map[entities.NormalizedEventType][]Handler),
		dispatchLogs: dispatchLogs,
		outbox:       outbox,
		maxRetries:   maxRetries,
	}
}

// Register adds a handler for an event type.
func (r *Registry) Register(eventType entities.NormalizedEventType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], h)
}

// Dispatch satisfies pipeline.Dispatcher: it writes the outbox event first
// (so out-of-process delivery survives even if every in-process handler
// panics or fails) and then fans out to in-process handlers concurrently,
// recording one DispatchLog row per handler.
func (r *Registry) Dispatch(ctx context.Context, claim *pipeline.Context) error {
	outboxErr := r.writeOutboxEvent(ctx, claim)
	if outboxErr != nil {
		logger.Error(ctx, "failed to write outbox event", zap.Error(outboxErr))
	}

	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[claim.Normalized.EventType]...)
	r.mu.RUnlock()

	if len(handlers) > 0 {
		var wg sync.WaitGroup
		wg.Add(len(handlers))
		for _, h := range handlers {
			go func(h Handler) {
				defer wg.Done()
				r.runHandler(ctx, h, claim)
			}(h)
		}
		wg.Wait()
	}

	// In-process handler failures are recorded per-handler as DispatchLog
	// rows (runHandler) and never fail Dispatch itself — a slow/broken
	// projection must not block settlement. The outbox write is the one
	// failure worth surfacing: it is the durable at-least-once delivery
	// contract (I12-I14), and losing it silently would mean no worker ever
	// retries this event.
	return outboxErr
}

func (r *Registry) runHandler(ctx context.Context, h Handler, claim *pipeline.Context) {
	start := time.Now()
	status := entities.DispatchSuccess
	var errMsg string

	err := h.Handle(ctx, claim)
	if err != nil {
		status = entities.DispatchFailed
		errMsg = err.Error()
		logger.Error(ctx, "dispatch handler failed",
			zap.String("handler", h.Name()),
			zap.String("processingId", claim.ProcessingID.String()),
			zap.Error(err),
		)
	}

	completedAt := time.Now()
	row := &entities.DispatchLog{
		TransactionID: claim.TransactionID,
		WebhookLogID:  claim.WebhookLogID,
		EventType:     string(claim.Normalized.EventType),
		HandlerName:   h.Name(),
		Status:        status,
		AttemptedAt:   start,
		CompletedAt:   &completedAt,
		DurationMs:    completedAt.Sub(start).Milliseconds(),
	}
	if errMsg != "" {
		row.Error.SetValid(errMsg)
	}
	if err := r.dispatchLogs.Create(ctx, row); err != nil {
		logger.Error(ctx, "failed to persist dispatch log", zap.Error(err))
	}
}

// outboxPayload is the JSON body stored on the OutboxEvent row: enough of
// the normalized event for an out-of-process consumer to act without
// re-reading the Transaction.
type outboxPayload struct {
	EventType      entities.NormalizedEventType `json:"eventType"`
	TransactionID  *string                      `json:"transactionId,omitempty"`
	ProviderRef    string                       `json:"providerRef"`
	ApplicationRef string                       `json:"applicationRef,omitempty"`
	AmountMinor    int64                        `json:"amountMinor"`
	Currency       string                       `json:"currency"`
}

func (r *Registry) writeOutboxEvent(ctx context.Context, claim *pipeline.Context) error {
	var txnIDStr *string
	if claim.TransactionID != nil {
		s := claim.TransactionID.String()
		txnIDStr = &s
	}

	body, err := json.Marshal(outboxPayload{
		EventType:      claim.Normalized.EventType,
		TransactionID:  txnIDStr,
		ProviderRef:    claim.Normalized.ProviderRef,
		ApplicationRef: claim.Normalized.ApplicationRef,
		AmountMinor:    claim.Normalized.Money.Amount,
		Currency:       claim.Normalized.Money.Currency,
	})
	if err != nil {
		return err
	}

	aggregateID := uuid.Nil
	if claim.TransactionID != nil {
		aggregateID = *claim.TransactionID
	}

	_, err = r.outbox.Create(ctx, repositories.CreateOutboxEventInput{
		AggregateID:   aggregateID,
		AggregateType: "transaction",
		EventType:     claim.Normalized.EventType,
		Payload:       body,
		MaxRetries:    r.maxRetries,
		ScheduledFor:  time.Now(),
	})
	return err
}
