package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migrations returns the ordered schema statements. Index+1 is the version.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			department VARCHAR(100) NOT NULL DEFAULT '',
			position VARCHAR(100) NOT NULL DEFAULT '',
			phone VARCHAR(20) NOT NULL DEFAULT '',
			profile_image VARCHAR(500) NOT NULL DEFAULT '',
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT users_email_key UNIQUE (email)
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_records (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			work_date DATE NOT NULL,
			check_in_at TIMESTAMPTZ,
			check_out_at TIMESTAMPTZ,
			check_in_latitude DOUBLE PRECISION,
			check_in_longitude DOUBLE PRECISION,
			check_out_latitude DOUBLE PRECISION,
			check_out_longitude DOUBLE PRECISION,
			notes TEXT NOT NULL DEFAULT '',
			check_in_image_path VARCHAR(500),
			check_out_image_path VARCHAR(500),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT attendance_records_user_id_fkey FOREIGN KEY (user_id)
				REFERENCES users(id) ON DELETE CASCADE,
			CONSTRAINT attendance_records_user_day_key UNIQUE (user_id, work_date),
			CONSTRAINT attendance_records_notes_length CHECK (char_length(notes) <= 1002),
			CONSTRAINT attendance_records_checkout_after_checkin
				CHECK (check_out_at IS NULL OR check_in_at IS NULL OR check_out_at >= check_in_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_records_work_date ON attendance_records(work_date)`,
		// Two 500 character notes joined by "; ".
		`ALTER TABLE attendance_records
			DROP CONSTRAINT IF EXISTS attendance_records_notes_length,
			ADD CONSTRAINT attendance_records_notes_length CHECK (char_length(notes) <= 1002)`,
	}
}

// Migrate applies every migration newer than the recorded schema version.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i, stmt := range Migrations() {
		version := i + 1
		if version <= current {
			continue
		}
		err := db.Transaction(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", version, err)
		}
		db.logger.Info().Int("version", version).Msg("applied migration")
	}

	return nil
}
