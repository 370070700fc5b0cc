package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
	"payhook.dev/ledger/internal/domain/repositories"
)

// TransactionRepositoryImpl implements repositories.TransactionRepository using GORM.
type TransactionRepositoryImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepositoryImpl {
	return &TransactionRepositoryImpl{db: db}
}

func marshalMetadata(m map[string]interface{}) (datatypes.JSON, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func (r *TransactionRepositoryImpl) Create(ctx context.Context, in repositories.CreateTransactionInput) (*entities.Transaction, error) {
	db := GetDB(ctx, r.db)

	metadata, err := marshalMetadata(in.Metadata)
	if err != nil {
		return nil, apperrors.Storage("failed to marshal transaction metadata", err)
	}

	txn := &entities.Transaction{
		ApplicationRef:     in.ApplicationRef,
		Provider:           in.Provider,
		Status:             in.Status,
		Amount:             in.Money.Amount,
		Currency:           in.Money.Currency,
		VerificationMethod: in.VerificationMethod,
		Metadata:           metadata,
		ProviderCreatedAt:  in.ProviderCreatedAt,
	}
	if in.ProviderRef != nil {
		txn.ProviderRef = null.StringFrom(*in.ProviderRef)
	}

	if err := db.WithContext(ctx).Create(txn).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.ErrDuplicateApplicationRef
		}
		return nil, apperrors.Storage("failed to create transaction", err)
	}

	return txn, nil
}

func (r *TransactionRepositoryImpl) Find(ctx context.Context, q repositories.TransactionQuery) (*entities.Transaction, error) {
	db := GetDB(ctx, r.db).WithContext(ctx)

	var txn entities.Transaction
	var err error

	switch {
	case q.ID != nil:
		err = db.Where("id = ?", *q.ID).First(&txn).Error
	case q.ApplicationRef != nil:
		err = db.Where("application_ref = ?", *q.ApplicationRef).First(&txn).Error
	case q.ProviderRef != nil:
		err = db.Where("provider = ? AND provider_ref = ?", q.Provider, *q.ProviderRef).First(&txn).Error
	default:
		return nil, apperrors.ErrNotFound
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Storage("failed to look up transaction", err)
	}

	return &txn, nil
}

func (r *TransactionRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransactionStatus, audit repositories.AuditEntry) error {
	db := GetDB(ctx, r.db).WithContext(ctx)

	var txn entities.Transaction
	if err := db.Where("id = ?", id).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return apperrors.Storage("failed to lock transaction row", err)
	}

	now := time.Now().UTC()
	if err := db.Model(&txn).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}).Error; err != nil {
		return apperrors.Storage("failed to update transaction status", err)
	}

	return r.writeAudit(db, id, audit)
}

func (r *TransactionRepositoryImpl) MarkAsProcessing(ctx context.Context, id uuid.UUID, providerRef string, verificationMethod *entities.VerificationMethod, audit repositories.AuditEntry) error {
	db := GetDB(ctx, r.db).WithContext(ctx)

	var txn entities.Transaction
	if err := db.Where("id = ?", id).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return apperrors.Storage("failed to lock transaction row", err)
	}

	if txn.ProviderRef.Valid && txn.ProviderRef.String != providerRef {
		return apperrors.ErrProviderRefMismatch
	}

	updates := map[string]interface{}{
		"status":       entities.StatusProcessing,
		"provider_ref": providerRef,
		"updated_at":   time.Now().UTC(),
	}
	if verificationMethod != nil && verificationMethod.AtLeastAsConfidentAs(txn.VerificationMethod) {
		updates["verification_method"] = *verificationMethod
	}

	if err := db.Model(&txn).Updates(updates).Error; err != nil {
		return apperrors.Storage("failed to mark transaction as processing", err)
	}

	return r.writeAudit(db, id, audit)
}

func (r *TransactionRepositoryImpl) LinkProviderRef(ctx context.Context, id uuid.UUID, ref string) error {
	db := GetDB(ctx, r.db).WithContext(ctx)

	var txn entities.Transaction
	if err := db.Where("id = ?", id).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return apperrors.Storage("failed to look up transaction", err)
	}

	if txn.ProviderRef.Valid && txn.ProviderRef.String == ref {
		return nil
	}
	if txn.ProviderRef.Valid && txn.ProviderRef.String != ref {
		return apperrors.ErrProviderRefMismatch
	}

	if err := db.Model(&txn).Update("provider_ref", ref).Error; err != nil {
		return apperrors.Storage("failed to link provider ref", err)
	}
	return nil
}

func (r *TransactionRepositoryImpl) writeAudit(db *gorm.DB, transactionID uuid.UUID, audit repositories.AuditEntry) error {
	metadata, err := marshalMetadata(audit.Metadata)
	if err != nil {
		return apperrors.Storage("failed to marshal audit metadata", err)
	}

	row := &entities.AuditLog{
		TransactionID:      transactionID,
		FromStatus:         audit.FromStatus,
		ToStatus:           audit.ToStatus,
		TriggerType:        audit.TriggerType,
		WebhookLogID:       audit.WebhookLogID,
		VerificationMethod: audit.VerificationMethod,
		Actor:              audit.Actor,
		Reason:             audit.Reason,
		Metadata:           metadata,
		CreatedAt:          time.Now().UTC(),
	}
	if audit.ReconciliationResult != "" {
		row.ReconciliationResult = null.StringFrom(audit.ReconciliationResult)
	}

	if err := db.Create(row).Error; err != nil {
		return apperrors.Storage("failed to write audit log", err)
	}
	return nil
}

// isUniqueViolation treats any constraint violation reported by the driver as
// a duplicate. Both Postgres (pq/pgx) and SQLite surface this without a
// shared sentinel, so it is matched by substring rather than error type.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
