package model

import (
	"fmt"

	"gorm.io/gorm"
)

// All lists every table owned by the service, parents first.
func All() []interface{} {
	return []interface{}{
		&Project{},
		&ChurnEvent{},
		&RecoveryVariant{},
		&RecoveryTemplate{},
		&PaymentFailure{},
		&DunningEmail{},
		&DunningConfig{},
		&RetentionOffer{},
	}
}

// postMigrationSQL holds what AutoMigrate cannot express.
var postMigrationSQL = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_recovery_templates_active_reason
	 ON recovery_templates (project_id, cancel_reason) WHERE is_active;`,
	`CREATE INDEX IF NOT EXISTS idx_recovery_variants_send_claim
	 ON recovery_variants (send_claimed_at) WHERE sent_at IS NULL;`,
}

// Migrate creates or updates the schema. It is safe to run repeatedly.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		return fmt.Errorf("create extension: %w", err)
	}
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("post migration: %w", err)
		}
	}
	return nil
}
