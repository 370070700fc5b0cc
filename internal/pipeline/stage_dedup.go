package pipeline

import (
	"context"

	"go.uber.org/zap"
	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/internal/domain/repositories"
	"payhook.dev/ledger/pkg/logger"
)

// DedupStage rejects a (provider, providerEventId) pair already seen
// with a prior claim. The row the persist-claim stage itself just wrote
// always matches its own key, so it excludes its own WebhookLogID (S4).
type DedupStage struct {
	WebhookLogs repositories.WebhookLogRepository
	AuditLogs   repositories.AuditLogRepository
}

func NewDedupStage(webhookLogs repositories.WebhookLogRepository, auditLogs repositories.AuditLogRepository) *DedupStage {
	return &DedupStage{WebhookLogs: webhookLogs, AuditLogs: auditLogs}
}

func (s *DedupStage) Name() string { return "dedup" }

func (s *DedupStage) Run(ctx context.Context, claim *Context) error {
	if claim.Fate != "" && claim.Fate != entities.FateProcessed {
		// Already classified upstream (e.g. SIGNATURE_FAILED continuing
		// through); dedup adds nothing and must not override it.
		return nil
	}
	if claim.IdempotencyKey == "" {
		// No reliable key to dedup on: prefer a false negative over a lost fate.
		return nil
	}

	prior, err := s.WebhookLogs.FindByProviderEventID(ctx, claim.Provider, claim.IdempotencyKey)
	if err != nil {
		// Soft failure per spec.md §4.4 S4: log and continue rather than
		// abort the claim over a dedup-lookup hiccup.
		logger.Error(ctx, "dedup lookup failed, continuing without a reliable duplicate check",
			zap.String("provider", claim.Provider), zap.Error(err))
		return nil
	}

	for _, p := range prior {
		if claim.WebhookLogID != nil && p.ID == *claim.WebhookLogID {
			continue
		}
		if claim.WebhookLogID != nil {
			if err := s.WebhookLogs.UpdateStatus(ctx, *claim.WebhookLogID, entities.FateDuplicate, "duplicate of webhook log "+p.ID.String()); err != nil {
				logger.Error(ctx, "failed to mark duplicate webhook log", zap.Error(err))
			}
		}
		if claim.TransactionID != nil {
			if err := s.AuditLogs.Create(ctx, &entities.AuditLog{
				TransactionID: *claim.TransactionID,
				FromStatus:    &claim.TransactionStatus,
				ToStatus:      claim.TransactionStatus,
				TriggerType:   entities.TriggerWebhook,
				WebhookLogID:  claim.WebhookLogID,
				Actor:         "webhook:" + claim.Provider,
				Reason:        "DUPLICATE_WEBHOOK",
			}); err != nil {
				logger.Error(ctx, "failed to record duplicate audit row", zap.Error(err))
			}
		}
		return apperrors.DuplicateWebhook("event already claimed by a prior webhook log")
	}
	return nil
}
