package pipeline

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/internal/domain/repositories"
)

// PersistClaimStage writes the WebhookLog row for this claim before any
// dedup or state decision is made, so every inbound request — including
// ones later found to be duplicates — leaves an audit trail (S3).
type PersistClaimStage struct {
	WebhookLogs  repositories.WebhookLogRepository
	Transactions repositories.TransactionRepository
	AuditLogs    repositories.AuditLogRepository
	// RedactKeys are key names (case-insensitive substring match) whose
	// values are stripped from the stored payload before it is written.
	RedactKeys []string
}

// PersistClaimOption configures a PersistClaimStage at construction.
type PersistClaimOption func(*PersistClaimStage)

// WithRedactKeys configures the payload key names to redact.
func WithRedactKeys(keys []string) PersistClaimOption {
	return func(s *PersistClaimStage) { s.RedactKeys = keys }
}

func NewPersistClaimStage(webhookLogs repositories.WebhookLogRepository, transactions repositories.TransactionRepository, auditLogs repositories.AuditLogRepository, opts ...PersistClaimOption) *PersistClaimStage {
	s := &PersistClaimStage{WebhookLogs: webhookLogs, Transactions: transactions, AuditLogs: auditLogs}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PersistClaimStage) Name() string { return "persist_claim" }

func (s *PersistClaimStage) Run(ctx context.Context, claim *Context) error {
	normalizedJSON, err := json.Marshal(claim.Normalized)
	if err != nil {
		return apperrors.Storage("failed to marshal normalized event", err)
	}

	// The fate recorded provisionally is whatever an earlier Continue-marked
	// stage already classified (e.g. SIGNATURE_FAILED); otherwise PROCESSED,
	// refined by later stages.
	provisionalFate := claim.Fate
	if provisionalFate == "" {
		provisionalFate = entities.FateProcessed
	}

	var linkedTxn *entities.Transaction
	if claim.Normalized.ProviderRef != "" {
		linkedTxn, _ = s.Transactions.Find(ctx, repositories.TransactionQuery{
			Provider:    claim.Provider,
			ProviderRef: &claim.Normalized.ProviderRef,
		})
	}
	if linkedTxn == nil && claim.Normalized.ApplicationRef != "" {
		appRef := claim.Normalized.ApplicationRef
		linkedTxn, _ = s.Transactions.Find(ctx, repositories.TransactionQuery{ApplicationRef: &appRef})
	}

	var transactionID *uuid.UUID
	if linkedTxn != nil {
		transactionID = &linkedTxn.ID
	}

	log, err := s.WebhookLogs.Create(ctx, repositories.CreateWebhookLogInput{
		Provider:         claim.Provider,
		ProviderEventID:  claim.IdempotencyKey,
		EventType:        string(claim.Normalized.EventType),
		RawPayload:       redactPayload(claim.RawBody, s.RedactKeys),
		Headers:          redactHeaders(claim.Headers),
		SignatureValid:   claim.SignatureValid,
		ProcessingStatus: provisionalFate,
		ReceivedAt:       claim.ReceivedAt,
		TransactionID:    transactionID,
		NormalizedEvent:  normalizedJSON,
	})
	if err != nil {
		return apperrors.Storage("failed to persist webhook log", err)
	}
	claim.WebhookLogID = &log.ID

	if linkedTxn != nil {
		claim.TransactionID = &linkedTxn.ID
		claim.TransactionStatus = linkedTxn.Status
		if err := s.AuditLogs.Create(ctx, &entities.AuditLog{
			TransactionID: linkedTxn.ID,
			FromStatus:    &linkedTxn.Status,
			ToStatus:      linkedTxn.Status,
			TriggerType:   entities.TriggerWebhook,
			WebhookLogID:  &log.ID,
			Actor:         "webhook:" + claim.Provider,
			Reason:        "WEBHOOK_RECEIVED",
		}); err != nil {
			// Soft failure: the webhook log row is already durable, and the
			// state-engine stage is the path of record for transitions.
			return nil
		}
	}
	return nil
}
