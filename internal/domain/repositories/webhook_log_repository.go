package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"payhook.dev/ledger/internal/domain/entities"
)

// CreateWebhookLogInput is the DTO for WebhookLogRepository.Create.
type CreateWebhookLogInput struct {
	Provider         string
	ProviderEventID  string // empty if none was derivable
	EventType        string
	RawPayload       []byte // post-redaction
	Headers          map[string]string // post-redaction
	SignatureValid   bool
	ProcessingStatus entities.ProcessingStatus
	ReceivedAt       time.Time
	TransactionID    *uuid.UUID
	NormalizedEvent  []byte // JSON snapshot, may be nil
}

// WebhookLogRepository is the Storage Port's WebhookLog-facing surface (C2).
type WebhookLogRepository interface {
	Create(ctx context.Context, in CreateWebhookLogInput) (*entities.WebhookLog, error)
	// FindByID supports the replay debug CLI (cmd/replaydebug): it needs the
	// stored rawPayload and headers back out, post-redaction caveats aside.
	FindByID(ctx context.Context, id uuid.UUID) (*entities.WebhookLog, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.ProcessingStatus, errorMessage string) error
	// LinkTransaction is idempotent: linking the same transaction twice is a no-op.
	LinkTransaction(ctx context.Context, webhookLogID, transactionID uuid.UUID) error
	SetDuration(ctx context.Context, id uuid.UUID, durationMs int64) error
	// FindByProviderEventID supports the S4 deduplication lookup (I9).
	FindByProviderEventID(ctx context.Context, provider, providerEventID string) ([]*entities.WebhookLog, error)
	// PurgeOlderThan implements the configured retention policy.
	PurgeOlderThan(ctx context.Context, before time.Time) (int64, error)
}
