package pipeline

import (
	"context"
	"time"

	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/internal/domain/repositories"
	"payhook.dev/ledger/internal/statemachine"
	"payhook.dev/ledger/pkg/money"
)

// StateEngineStage locates the Transaction the event refers to, decides
// the target status via the pure state machine, and commits the
// transition and its audit row in a single locked UnitOfWork (S5).
type StateEngineStage struct {
	Transactions repositories.TransactionRepository
	WebhookLogs  repositories.WebhookLogRepository
	AuditLogs    repositories.AuditLogRepository
	UoW          repositories.UnitOfWork
	// AutoCreate enables creating a PENDING Transaction for an initial
	// payment event (PAYMENT_SUCCESSFUL/FAILED/ABANDONED) that matches no
	// existing row, per spec.md §4.4 S5. Off by default.
	AutoCreate bool
}

// StateEngineOption configures a StateEngineStage at construction.
type StateEngineOption func(*StateEngineStage)

// WithAutoCreate enables auto-creation of a PENDING Transaction on an
// unmatched initial payment event.
func WithAutoCreate(enabled bool) StateEngineOption {
	return func(s *StateEngineStage) { s.AutoCreate = enabled }
}

func NewStateEngineStage(transactions repositories.TransactionRepository, webhookLogs repositories.WebhookLogRepository, auditLogs repositories.AuditLogRepository, uow repositories.UnitOfWork, opts ...StateEngineOption) *StateEngineStage {
	s := &StateEngineStage{Transactions: transactions, WebhookLogs: webhookLogs, AuditLogs: auditLogs, UoW: uow}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StateEngineStage) Name() string { return "state_engine" }

// isInitialPaymentEvent reports whether eventType is one of the three event
// kinds that can legitimately start a Transaction's life, as opposed to a
// refund/dispute kind that presupposes one already exists.
func isInitialPaymentEvent(eventType entities.NormalizedEventType) bool {
	switch eventType {
	case entities.EventPaymentSuccessful, entities.EventPaymentFailed, entities.EventPaymentAbandoned:
		return true
	default:
		return false
	}
}

func (s *StateEngineStage) Run(ctx context.Context, claim *Context) error {
	// A claim an earlier stage already classified (SIGNATURE_FAILED via the
	// Continue path) must not produce a transition — P5.
	if claim.Fate != "" && claim.Fate != entities.FateProcessed {
		return nil
	}
	if claim.Normalized.EventType == "" {
		return nil
	}

	return s.UoW.Do(ctx, func(txCtx context.Context) error {
		lockCtx := s.UoW.WithLock(txCtx)

		txn, created, err := s.findOrCreate(lockCtx, claim)
		if err != nil {
			return err
		}
		claim.TransactionID = &txn.ID

		if !created && !txn.ProviderRef.Valid && claim.Normalized.ProviderRef != "" {
			if err := s.Transactions.LinkProviderRef(lockCtx, txn.ID, claim.Normalized.ProviderRef); err != nil {
				return apperrors.Storage("failed to link providerRef", err)
			}
		}

		disputeOutcome, _ := claim.Normalized.ProviderMetadata["disputeOutcome"].(string)
		partial, _ := claim.Normalized.ProviderMetadata["partialRefund"].(bool)
		target, ok := statemachine.MapEventToStatus(statemachine.EventMapping{
			EventType:      claim.Normalized.EventType,
			Current:        txn.Status,
			DisputeOutcome: disputeOutcome,
			PartialRefund:  partial,
		})
		if !ok {
			return apperrors.Normalization("event type does not map to a known target status", nil)
		}

		if target == txn.Status {
			// "no change" (REFUND_FAILED/REFUND_PENDING) or an idempotent
			// re-delivery of an already-applied transition: nothing to
			// commit, claim still reaches PROCESSED.
			return nil
		}

		decision := statemachine.ValidateTransition(txn.Status, target)
		if !decision.Allowed {
			if err := s.AuditLogs.Create(lockCtx, &entities.AuditLog{
				TransactionID: txn.ID,
				FromStatus:    &txn.Status,
				ToStatus:      txn.Status,
				TriggerType:   entities.TriggerWebhook,
				WebhookLogID:  claim.WebhookLogID,
				Actor:         "webhook:" + claim.Provider,
				Reason:        "TRANSITION_REJECTED: " + decision.Reason,
				Metadata:      claim.Normalized.ProviderMetadata,
			}); err != nil {
				return apperrors.Storage("failed to record transition rejection", err)
			}
			return apperrors.TransitionRejected(decision.Reason)
		}

		vm := entities.VerificationWebhookOnly
		from := txn.Status
		if err := s.Transactions.UpdateStatus(lockCtx, txn.ID, target, repositories.AuditEntry{
			FromStatus:         &from,
			ToStatus:           target,
			TriggerType:        entities.TriggerWebhook,
			WebhookLogID:       claim.WebhookLogID,
			VerificationMethod: &vm,
			Actor:              "webhook:" + claim.Provider,
			Metadata:           claim.Normalized.ProviderMetadata,
		}); err != nil {
			return apperrors.Storage("failed to update transaction status", err)
		}

		if claim.WebhookLogID != nil {
			if err := s.WebhookLogs.LinkTransaction(lockCtx, *claim.WebhookLogID, txn.ID); err != nil {
				return apperrors.Storage("failed to link webhook log to transaction", err)
			}
		}
		return nil
	})
}

// findOrCreate locates the Transaction a normalized event refers to, by
// providerRef then applicationRef, auto-creating a PENDING row when enabled
// and the event is an initial payment event.
func (s *StateEngineStage) findOrCreate(ctx context.Context, claim *Context) (txn *entities.Transaction, created bool, err error) {
	if claim.Normalized.ProviderRef != "" {
		txn, err = s.Transactions.Find(ctx, repositories.TransactionQuery{
			Provider:    claim.Provider,
			ProviderRef: &claim.Normalized.ProviderRef,
		})
		if err == nil {
			return txn, false, nil
		}
	}
	if claim.Normalized.ApplicationRef != "" {
		appRef := claim.Normalized.ApplicationRef
		txn, err = s.Transactions.Find(ctx, repositories.TransactionQuery{ApplicationRef: &appRef})
		if err == nil {
			return txn, false, nil
		}
	}

	if s.AutoCreate && isInitialPaymentEvent(claim.Normalized.EventType) {
		m, moneyErr := money.New(claim.Normalized.Money.Amount, claim.Normalized.Money.Currency)
		if moneyErr != nil {
			return nil, false, apperrors.Normalization("normalized event carries invalid money", moneyErr)
		}
		appRef := claim.Normalized.ApplicationRef
		if appRef == "" {
			appRef = claim.Provider + ":" + claim.Normalized.ProviderRef
		}
		var providerRef *string
		if claim.Normalized.ProviderRef != "" {
			ref := claim.Normalized.ProviderRef
			providerRef = &ref
		}
		txn, err = s.Transactions.Create(ctx, repositories.CreateTransactionInput{
			ApplicationRef:     appRef,
			Provider:           claim.Provider,
			ProviderRef:        providerRef,
			Status:             entities.StatusPending,
			Money:              m,
			VerificationMethod: entities.VerificationWebhookOnly,
			Metadata:           claim.Normalized.ProviderMetadata,
			ProviderCreatedAt:  timePtr(claim.Normalized.ProviderTimestamp),
		})
		if err != nil {
			return nil, false, apperrors.Storage("failed to auto-create transaction", err)
		}
		if err := s.AuditLogs.Create(ctx, &entities.AuditLog{
			TransactionID: txn.ID,
			ToStatus:      entities.StatusPending,
			TriggerType:   entities.TriggerWebhook,
			WebhookLogID:  claim.WebhookLogID,
			Actor:         "webhook:" + claim.Provider,
			Reason:        "TRANSACTION_CREATED",
		}); err != nil {
			return nil, false, apperrors.Storage("failed to record transaction-created audit row", err)
		}
		return txn, true, nil
	}

	return nil, false, apperrors.TransactionNotFound("no transaction matches this event's references")
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
