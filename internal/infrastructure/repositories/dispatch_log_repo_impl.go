package repositories

import (
	"context"

	"gorm.io/gorm"

	"payhook.dev/ledger/internal/domain/entities"
	apperrors "payhook.dev/ledger/internal/domain/errors"
)

// DispatchLogRepositoryImpl implements repositories.DispatchLogRepository using GORM.
type DispatchLogRepositoryImpl struct {
	db *gorm.DB
}

func NewDispatchLogRepository(db *gorm.DB) *DispatchLogRepositoryImpl {
	return &DispatchLogRepositoryImpl{db: db}
}

func (r *DispatchLogRepositoryImpl) Create(ctx context.Context, log *entities.DispatchLog) error {
	db := GetDB(ctx, r.db).WithContext(ctx)
	if err := db.Create(log).Error; err != nil {
		return apperrors.Storage("failed to create dispatch log", err)
	}
	return nil
}
