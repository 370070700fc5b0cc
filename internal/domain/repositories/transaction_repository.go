package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"payhook.dev/ledger/internal/domain/entities"
	"payhook.dev/ledger/pkg/money"
)

// CreateTransactionInput is the DTO for TransactionRepository.Create.
type CreateTransactionInput struct {
	ApplicationRef     string
	Provider           string
	ProviderRef        *string
	Status             entities.TransactionStatus
	Money              money.Money
	VerificationMethod entities.VerificationMethod
	Metadata           map[string]interface{}
	ProviderCreatedAt  *time.Time
}

// TransactionQuery selects at most one Transaction, by id, by applicationRef,
// or by (provider, providerRef) — the three supported lookup paths.
type TransactionQuery struct {
	ID             *uuid.UUID
	ApplicationRef *string
	Provider       string
	ProviderRef    *string
}

// AuditEntry is the audit row to be written in the same unit of work as a
// status change (I10).
type AuditEntry struct {
	FromStatus           *entities.TransactionStatus
	ToStatus             entities.TransactionStatus
	TriggerType          entities.TriggerType
	WebhookLogID         *uuid.UUID
	ReconciliationResult string
	VerificationMethod   *entities.VerificationMethod
	Actor                string
	Reason               string
	Metadata             map[string]interface{}
}

// TransactionRepository is the Storage Port's Transaction-facing surface (C2).
type TransactionRepository interface {
	// Create enforces unique applicationRef (errors.ErrDuplicateApplicationRef
	// on collision).
	Create(ctx context.Context, in CreateTransactionInput) (*entities.Transaction, error)

	// Find performs an indexed lookup; returns errors.ErrNotFound if no row
	// matches and at most one row matches in all other cases.
	Find(ctx context.Context, q TransactionQuery) (*entities.Transaction, error)

	// UpdateStatus atomically acquires a pessimistic write lock, re-reads
	// status, writes status+updatedAt, and inserts audit in one unit of
	// work. Callers MUST invoke this from within UnitOfWork.Do with a
	// WithLock-derived context. Returns errors.ErrNotFound if the row is
	// gone.
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransactionStatus, audit AuditEntry) error

	// MarkAsProcessing performs the same atomic update as UpdateStatus but
	// additionally sets providerRef (errors.ErrProviderRefMismatch if
	// already set to a different value) and, when provided and not a
	// confidence downgrade, bumps VerificationMethod (I5).
	MarkAsProcessing(ctx context.Context, id uuid.UUID, providerRef string, verificationMethod *entities.VerificationMethod, audit AuditEntry) error

	// LinkProviderRef is an idempotent no-op when ref already equals the
	// stored value (I3).
	LinkProviderRef(ctx context.Context, id uuid.UUID, ref string) error
}
