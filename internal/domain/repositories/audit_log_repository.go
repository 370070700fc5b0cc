package repositories

import (
	"context"

	"payhook.dev/ledger/internal/domain/entities"
)

// AuditLogRepository allows stages to append stand-alone audit rows (e.g.
// S3's WEBHOOK_RECEIVED no-op entry, S5's rejection entry) outside of a
// status-changing call. Rows written alongside a status change go through
// TransactionRepository.UpdateStatus/MarkAsProcessing instead, so that the
// status write and its audit row share one commit (I10).
type AuditLogRepository interface {
	Create(ctx context.Context, log *entities.AuditLog) error
}
