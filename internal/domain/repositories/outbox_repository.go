package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"payhook.dev/ledger/internal/domain/entities"
)

// CreateOutboxEventInput is the DTO for OutboxRepository.Create.
type CreateOutboxEventInput struct {
	AggregateID   uuid.UUID
	AggregateType string
	EventType     entities.NormalizedEventType
	Payload       []byte
	MaxRetries    int
	ScheduledFor  time.Time
}

// OutboxRepository is the at-least-once outbox contract (C7, I12-I14). The
// background dispatcher worker that drains PENDING rows is out of scope;
// this port only covers the write path and the reader operations a local
// sweep (internal/infrastructure/outboxjob) needs to exercise it.
type OutboxRepository interface {
	// Create writes a PENDING row, joining the transaction carried by ctx
	// when there is one. Its caller, dispatcher.Registry.Dispatch, runs in
	// the dispatch stage after the state-engine transaction has committed,
	// so the row is not written in the same commit as the state change.
	Create(ctx context.Context, in CreateOutboxEventInput) (*entities.OutboxEvent, error)

	// ClaimPending returns up to limit PENDING or FAILED (awaiting retry)
	// rows whose scheduledFor has elapsed, ordered oldest first.
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]*entities.OutboxEvent, error)

	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// MarkRetry advances retryCount and reschedules per I13, or flips to
	// DEAD_LETTER when retryCount has reached maxRetries (I14).
	MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, now time.Time, base time.Duration) error
}
