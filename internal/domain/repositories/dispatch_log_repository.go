package repositories

import (
	"context"

	"payhook.dev/ledger/internal/domain/entities"
)

// DispatchLogRepository records one row per handler invocation (C7).
type DispatchLogRepository interface {
	Create(ctx context.Context, log *entities.DispatchLog) error
}
