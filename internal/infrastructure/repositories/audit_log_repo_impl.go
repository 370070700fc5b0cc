package repositories

import (
	"context"

	"gorm.io/gorm"

	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
)

// AuditLogRepositoryImpl implements repositories.AuditLogRepository using GORM.
// Used for stand-alone audit rows not written alongside a status change;
// TransactionRepositoryImpl writes its own rows directly in the same
// transaction as the status update they describe.
type AuditLogRepositoryImpl struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepositoryImpl {
	return &AuditLogRepositoryImpl{db: db}
}

func (r *AuditLogRepositoryImpl) Create(ctx context.Context, log *entities.AuditLog) error {
	db := GetDB(ctx, r.db).WithContext(ctx)
	if err := db.Create(log).Error; err != nil {
		return apperrors.Storage("failed to create audit log", err)
	}
	return nil
}
