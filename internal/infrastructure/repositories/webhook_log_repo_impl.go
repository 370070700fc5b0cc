package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/internal/domain/repositories"
)

// WebhookLogRepositoryImpl implements repositories.WebhookLogRepository using GORM.
type WebhookLogRepositoryImpl struct {
	db *gorm.DB
}

func NewWebhookLogRepository(db *gorm.DB) *WebhookLogRepositoryImpl {
	return &WebhookLogRepositoryImpl{db: db}
}

func (r *WebhookLogRepositoryImpl) Create(ctx context.Context, in repositories.CreateWebhookLogInput) (*entities.WebhookLog, error) {
	db := GetDB(ctx, r.db).WithContext(ctx)

	headers, err := marshalMetadata(headersToMap(in.Headers))
	if err != nil {
		return nil, apperrors.Storage("failed to marshal headers", err)
	}

	log := &entities.WebhookLog{
		Provider:         in.Provider,
		EventType:        in.EventType,
		RawPayload:       datatypes.JSON(in.RawPayload),
		Headers:          headers,
		SignatureValid:   in.SignatureValid,
		ProcessingStatus: in.ProcessingStatus,
		ReceivedAt:       in.ReceivedAt,
		TransactionID:    in.TransactionID,
	}
	if in.ProviderEventID != "" {
		log.ProviderEventID = null.StringFrom(in.ProviderEventID)
	}
	if len(in.NormalizedEvent) > 0 {
		log.NormalizedEvent = datatypes.JSON(in.NormalizedEvent)
	}

	if err := db.Create(log).Error; err != nil {
		return nil, apperrors.Storage("failed to create webhook log", err)
	}
	return log, nil
}

func (r *WebhookLogRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entities.WebhookLog, error) {
	db := GetDB(ctx, r.db).WithContext(ctx)

	var log entities.WebhookLog
	if err := db.Where("id = ?", id).First(&log).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Storage("failed to look up webhook log", err)
	}
	return &log, nil
}

func (r *WebhookLogRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.ProcessingStatus, errorMessage string) error {
	db := GetDB(ctx, r.db).WithContext(ctx)

	updates := map[string]interface{}{"processing_status": status}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}

	res := db.Model(&entities.WebhookLog{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return apperrors.Storage("failed to update webhook log status", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *WebhookLogRepositoryImpl) LinkTransaction(ctx context.Context, webhookLogID, transactionID uuid.UUID) error {
	db := GetDB(ctx, r.db).WithContext(ctx)

	var log entities.WebhookLog
	if err := db.Where("id = ?", webhookLogID).First(&log).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return apperrors.Storage("failed to look up webhook log", err)
	}

	if log.TransactionID != nil && *log.TransactionID == transactionID {
		return nil
	}

	if err := db.Model(&log).Update("transaction_id", transactionID).Error; err != nil {
		return apperrors.Storage("failed to link transaction", err)
	}
	return nil
}

func (r *WebhookLogRepositoryImpl) SetDuration(ctx context.Context, id uuid.UUID, durationMs int64) error {
	db := GetDB(ctx, r.db).WithContext(ctx)

	res := db.Model(&entities.WebhookLog{}).Where("id = ?", id).Update("processing_duration_ms", durationMs)
	if res.Error != nil {
		return apperrors.Storage("failed to set webhook log duration", res.Error)
	}
	return nil
}

func (r *WebhookLogRepositoryImpl) FindByProviderEventID(ctx context.Context, provider, providerEventID string) ([]*entities.WebhookLog, error) {
	db := GetDB(ctx, r.db).WithContext(ctx)

	var logs []*entities.WebhookLog
	err := db.Where("provider = ? AND provider_event_id = ?", provider, providerEventID).Find(&logs).Error
	if err != nil {
		return nil, apperrors.Storage("failed to look up webhook logs by provider event id", err)
	}
	return logs, nil
}

func (r *WebhookLogRepositoryImpl) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	db := GetDB(ctx, r.db).WithContext(ctx)

	res := db.Where("received_at < ?", before).Delete(&entities.WebhookLog{})
	if res.Error != nil {
		return 0, apperrors.Storage("failed to purge webhook logs", res.Error)
	}
	return res.RowsAffected, nil
}

func headersToMap(headers map[string]string) map[string]interface{} {
	if len(headers) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(headers))
	for k, v := range headers {
		m[k] = v
	}
	return m
}
