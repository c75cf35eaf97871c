package config

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			key_id TEXT PRIMARY KEY,
			secret_hash TEXT UNIQUE NOT NULL,
			role TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			revoked_at DATETIME,
			CHECK (expires_at > created_at)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_credentials_hash ON credentials(secret_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_credentials_expires ON credentials(expires_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// SQLite ALTER TABLE ADD COLUMN fails if column already exists;
			// treat "duplicate column" as a no-op for idempotent migrations.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
