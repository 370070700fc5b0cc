package repositories

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/internal/domain/repositories"
)

// OutboxRepositoryImpl implements repositories.OutboxRepository using GORM.
type OutboxRepositoryImpl struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

func (r *OutboxRepositoryImpl) Create(ctx context.Context, in repositories.CreateOutboxEventInput) (*entities.OutboxEvent, error) {
	db := GetDB(ctx, r.db).WithContext(ctx)

	event := &entities.OutboxEvent{
		AggregateID:   in.AggregateID,
		AggregateType: in.AggregateType,
		EventType:     in.EventType,
		Payload:       in.Payload,
		Status:        entities.OutboxPending,
		MaxRetries:    in.MaxRetries,
		ScheduledFor:  in.ScheduledFor,
	}

	if err := db.Create(event).Error; err != nil {
		return nil, apperrors.Storage("failed to create outbox event", err)
	}
	return event, nil
}

func (r *OutboxRepositoryImpl) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*entities.OutboxEvent, error) {
	db := r.db.WithContext(ctx)

	var events []*entities.OutboxEvent
	err := db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status IN ? AND scheduled_for <= ?", []entities.OutboxStatus{entities.OutboxPending, entities.OutboxFailed}, now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, apperrors.Storage("failed to claim pending outbox events", err)
	}
	return events, nil
}

func (r *OutboxRepositoryImpl) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	db := r.db.WithContext(ctx)

	res := db.Model(&entities.OutboxEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       entities.OutboxProcessed,
		"processed_at": processedAt,
		"updated_at":   processedAt,
	})
	if res.Error != nil {
		return apperrors.Storage("failed to mark outbox event processed", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MarkRetry advances retryCount and reschedules with an exponential backoff
// (base * 2^retryCount), flipping to DEAD_LETTER once retryCount reaches
// maxRetries.
func (r *OutboxRepositoryImpl) MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, now time.Time, base time.Duration) error {
	db := r.db.WithContext(ctx)

	var event entities.OutboxEvent
	if err := db.Where("id = ?", id).First(&event).Error; err != nil {
		return apperrors.Storage("failed to look up outbox event for retry", err)
	}

	retryCount := event.RetryCount + 1
	updates := map[string]interface{}{
		"retry_count": retryCount,
		"error":       null.StringFrom(errorMessage),
		"updated_at":  now,
	}

	if retryCount >= event.MaxRetries {
		updates["status"] = entities.OutboxDeadLetter
	} else {
		backoff := time.Duration(math.Pow(2, float64(retryCount))) * base
		updates["status"] = entities.OutboxFailed
		updates["scheduled_for"] = now.Add(backoff)
	}

	if err := db.Model(&event).Updates(updates).Error; err != nil {
		return apperrors.Storage("failed to mark outbox event retry", err)
	}
	return nil
}
