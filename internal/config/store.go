package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/senechal-app/senechal/internal/model"
)

// Store persists issued temporary credentials in SQLite. It is the only
// mutable state in the authorization path; permanent keys and roles live in
// immutable configuration.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new credential store. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "senechal.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open credential database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate credential database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateCredential inserts a new credential record. The SecretHash, KeyID,
// and timestamps must already be set. Uniqueness of both key_id and
// secret_hash is enforced by the store; collisions return ErrDuplicateKeyID
// or ErrDuplicateSecretHash so the caller can retry with fresh values.
func (s *Store) CreateCredential(ctx context.Context, cred *model.Credential) error {
	const q = `INSERT INTO credentials
		(key_id, secret_hash, role, note, created_at, expires_at, revoked_at)
		VALUES
		(:key_id, :secret_hash, :role, :note, :created_at, :expires_at, :revoked_at)`

	if _, err := s.db.NamedExecContext(ctx, q, cred); err != nil {
		if isUniqueViolation(err, "credentials.key_id") {
			return ErrDuplicateKeyID
		}
		if isUniqueViolation(err, "credentials.secret_hash") {
			return ErrDuplicateSecretHash
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// GetCredentialByHash looks up a credential by its secret hash. Used on the
// hot validation path; a single indexed row lookup.
func (s *Store) GetCredentialByHash(ctx context.Context, hash string) (*model.Credential, error) {
	var cred model.Credential
	if err := s.db.GetContext(ctx, &cred, "SELECT * FROM credentials WHERE secret_hash = ?", hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credential by hash: %w", err)
	}
	return &cred, nil
}

// GetCredential returns a credential by its key_id.
func (s *Store) GetCredential(ctx context.Context, keyID string) (*model.Credential, error) {
	var cred model.Credential
	if err := s.db.GetContext(ctx, &cred, "SELECT * FROM credentials WHERE key_id = ?", keyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &cred, nil
}

// ListCredentials returns all credentials ordered by creation time, newest
// first.
func (s *Store) ListCredentials(ctx context.Context) ([]model.Credential, error) {
	var creds []model.Credential
	if err := s.db.SelectContext(ctx, &creds, "SELECT * FROM credentials ORDER BY created_at DESC, key_id"); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return creds, nil
}

// RevokeCredential sets revoked_at exactly once. The conditional UPDATE
// makes concurrent revocations safe: the second writer matches zero rows
// and observes ErrAlreadyRevoked instead of overwriting the timestamp.
func (s *Store) RevokeCredential(ctx context.Context, keyID string, now time.Time) (*model.Credential, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE credentials SET revoked_at = ? WHERE key_id = ? AND revoked_at IS NULL", now, keyID)
	if err != nil {
		return nil, fmt.Errorf("revoke credential: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("revoke credential rows affected: %w", err)
	}

	cred, getErr := s.GetCredential(ctx, keyID)
	if getErr != nil {
		return nil, getErr
	}
	if n == 0 {
		return cred, ErrAlreadyRevoked
	}
	return cred, nil
}

// PurgeExpired deletes credentials whose expires_at is before the given
// cutoff, regardless of revocation state. Returns the number of rows
// removed. Rows this close to the cutoff are already rejected by the
// validator's expiry check, so the delete cannot race with validation.
func (s *Store) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE expires_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("purge expired credentials: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return n, nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure on the given column. The modernc driver surfaces these as plain
// errors containing the constraint name.
func isUniqueViolation(err error, column string) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
