package repositories

import (
	"gorm.io/gorm"

	"payhook.dev/ledger/internal/domain/entities"
)

// Migrate runs AutoMigrate for every entity this package persists and adds
// the indexes GORM struct tags cannot express directly:
//
//   - webhook_logs: a partial unique index on (provider, provider_event_id)
//     where provider_event_id is not null, enforcing the dedup guarantee at
//     the storage layer as well as in the pipeline's dedup stage.
//   - transactions: idx_provider_ref (declared via struct tags already) backs
//     the (provider, providerRef) lookup path.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entities.Transaction{},
		&entities.WebhookLog{},
		&entities.AuditLog{},
		&entities.DispatchLog{},
		&entities.OutboxEvent{},
	); err != nil {
		return err
	}

	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_webhook_logs_provider_event_dedup
		ON webhook_logs (provider, provider_event_id)
		WHERE provider_event_id IS NOT NULL
	`).Error
}
