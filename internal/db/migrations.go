package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,

	// One row per detect/crop/OCR/correct pass.
	`CREATE TABLE IF NOT EXISTS plate_runs (
		id               UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		source_image     TEXT NOT NULL,
		region           JSONB,
		candidates       INT NOT NULL DEFAULT 0,
		crop_path        TEXT NOT NULL,
		text_path        TEXT NOT NULL,
		crop_url         TEXT,
		raw_text         TEXT NOT NULL,
		corrected_text   TEXT NOT NULL,
		canonical_plate  TEXT NOT NULL,
		layout           TEXT NOT NULL,
		engine           TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_plate_runs_created_at ON plate_runs(created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_plate_runs_canonical_plate_time ON plate_runs(canonical_plate, created_at DESC);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
