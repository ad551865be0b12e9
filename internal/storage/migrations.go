package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					display_name TEXT NOT NULL DEFAULT '',
					linked_channel_identity TEXT,
					linked_at DATETIME,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE UNIQUE INDEX idx_users_linked_identity
					ON users(linked_channel_identity)
					WHERE linked_channel_identity IS NOT NULL AND linked_channel_identity != ''`,

				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT NOT NULL,
					user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					position INTEGER NOT NULL,
					PRIMARY KEY (user_id, id)
				)`,
				`CREATE TABLE IF NOT EXISTS subcategories (
					id TEXT NOT NULL,
					user_id TEXT NOT NULL,
					category_id TEXT NOT NULL,
					name TEXT NOT NULL,
					keywords TEXT NOT NULL DEFAULT '[]',
					position INTEGER NOT NULL,
					PRIMARY KEY (user_id, category_id, id),
					FOREIGN KEY (user_id, category_id) REFERENCES categories(user_id, id) ON DELETE CASCADE
				)`,
				`CREATE TABLE IF NOT EXISTS payment_methods (
					id TEXT NOT NULL,
					user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					position INTEGER NOT NULL,
					PRIMARY KEY (user_id, id)
				)`,

				`CREATE TABLE IF NOT EXISTS expenses (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL,
					amount TEXT NOT NULL,
					category TEXT NOT NULL,
					subcategory TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL,
					date DATETIME NOT NULL,
					payment_method TEXT NOT NULL,
					currency TEXT NOT NULL,
					voucher_type TEXT NOT NULL,
					recurring INTEGER NOT NULL DEFAULT 0,
					reimbursement_status TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add inbound message queue",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS queue_items (
					id TEXT PRIMARY KEY,
					channel_identity TEXT NOT NULL,
					raw_message TEXT NOT NULL DEFAULT '',
					media_url TEXT NOT NULL DEFAULT '',
					media_mime_type TEXT NOT NULL DEFAULT '',
					profile_name TEXT NOT NULL DEFAULT '',
					message_sid TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
					retry_count INTEGER NOT NULL DEFAULT 0,
					last_error TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					processed_at DATETIME
				)`,
				`CREATE UNIQUE INDEX idx_queue_items_message_sid
					ON queue_items(message_sid) WHERE message_sid != ''`,
			})
		},
	},
	{
		Version:     3,
		Description: "Index queue polling and expense range queries",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_queue_items_status_created ON queue_items(status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_expenses_owner_date ON expenses(owner_id, date)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
