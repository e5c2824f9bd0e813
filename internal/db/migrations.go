package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS plate_detections (
		id                 BIGSERIAL PRIMARY KEY,
		event_id           TEXT NOT NULL,
		timestamp          TIMESTAMPTZ NOT NULL,
		camera_id          TEXT NOT NULL,
		camera_name        TEXT,
		license_plate      TEXT NOT NULL,
		confidence         INT NOT NULL DEFAULT 0,
		owner_email        TEXT NOT NULL DEFAULT 'unresolved',
		vehicle_attributes JSONB,
		origin             TEXT NOT NULL,
		detected_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_plate_detections_event_id ON plate_detections(event_id);`,
	`CREATE INDEX IF NOT EXISTS idx_plate_detections_timestamp ON plate_detections(timestamp);`,
	`CREATE INDEX IF NOT EXISTS idx_plate_detections_camera_id ON plate_detections(camera_id);`,
	`CREATE INDEX IF NOT EXISTS idx_plate_detections_license_plate ON plate_detections(license_plate);`,
	`CREATE TABLE IF NOT EXISTS registered_credentials (
		id          BIGSERIAL PRIMARY KEY,
		user_email  TEXT NOT NULL,
		credential  TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_registered_credentials_credential ON registered_credentials(credential);`,
	`CREATE TABLE IF NOT EXISTS write_errors (
		id            UUID PRIMARY KEY,
		event_id      TEXT,
		camera_id     TEXT,
		camera_name   TEXT,
		license_plate TEXT,
		confidence    INT,
		error_text    TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_write_errors_created_at ON write_errors(created_at);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
