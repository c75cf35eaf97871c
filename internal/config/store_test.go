package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/senechal-app/senechal/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testCredential(keyID, hash string, createdAt time.Time) *model.Credential {
	return &model.Credential{
		KeyID:      keyID,
		SecretHash: hash,
		Role:       "read",
		Note:       "test",
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(time.Hour),
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cred := testCredential("temp_aaaa", "hash-a", now)
	if err := store.CreateCredential(ctx, cred); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}

	byID, err := store.GetCredential(ctx, "temp_aaaa")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if byID.Role != "read" || byID.Note != "test" {
		t.Errorf("unexpected credential: %+v", byID)
	}
	if byID.RevokedAt != nil {
		t.Error("fresh credential has revoked_at set")
	}

	byHash, err := store.GetCredentialByHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("GetCredentialByHash: %v", err)
	}
	if byHash.KeyID != "temp_aaaa" {
		t.Errorf("KeyID: got %q, want %q", byHash.KeyID, "temp_aaaa")
	}
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetCredential(ctx, "temp_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCredential: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetCredentialByHash(ctx, "no-such-hash"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCredentialByHash: expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateConstraints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.CreateCredential(ctx, testCredential("temp_aaaa", "hash-a", now)); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}

	err := store.CreateCredential(ctx, testCredential("temp_aaaa", "hash-b", now))
	if !errors.Is(err, ErrDuplicateKeyID) {
		t.Errorf("expected ErrDuplicateKeyID, got %v", err)
	}

	err = store.CreateCredential(ctx, testCredential("temp_bbbb", "hash-a", now))
	if !errors.Is(err, ErrDuplicateSecretHash) {
		t.Errorf("expected ErrDuplicateSecretHash, got %v", err)
	}
}

func TestRevokeCredential(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.CreateCredential(ctx, testCredential("temp_aaaa", "hash-a", now)); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}

	revokeTime := now.Add(10 * time.Minute)
	cred, err := store.RevokeCredential(ctx, "temp_aaaa", revokeTime)
	if err != nil {
		t.Fatalf("RevokeCredential: %v", err)
	}
	if cred.RevokedAt == nil || !cred.RevokedAt.Equal(revokeTime) {
		t.Errorf("RevokedAt: got %v, want %v", cred.RevokedAt, revokeTime)
	}

	// Second revoke: ErrAlreadyRevoked, original timestamp preserved.
	cred2, err := store.RevokeCredential(ctx, "temp_aaaa", now.Add(20*time.Minute))
	if !errors.Is(err, ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked, got %v", err)
	}
	if !cred2.RevokedAt.Equal(revokeTime) {
		t.Errorf("revoked_at overwritten: got %v, want %v", cred2.RevokedAt, revokeTime)
	}

	if _, err := store.RevokeCredential(ctx, "temp_missing", revokeTime); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListCredentialsOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"temp_one", "temp_two", "temp_three"} {
		cred := testCredential(id, "hash-"+id, base.Add(time.Duration(i)*time.Minute))
		if err := store.CreateCredential(ctx, cred); err != nil {
			t.Fatalf("CreateCredential: %v", err)
		}
	}

	creds, err := store.ListCredentials(ctx)
	if err != nil {
		t.Fatalf("ListCredentials: %v", err)
	}
	if len(creds) != 3 {
		t.Fatalf("expected 3 credentials, got %d", len(creds))
	}
	if creds[0].KeyID != "temp_three" || creds[2].KeyID != "temp_one" {
		t.Errorf("unexpected order: %q, %q, %q", creds[0].KeyID, creds[1].KeyID, creds[2].KeyID)
	}
}

func TestPurgeExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	old := testCredential("temp_old", "hash-old", base.Add(-72*time.Hour))
	fresh := testCredential("temp_fresh", "hash-fresh", base)
	if err := store.CreateCredential(ctx, old); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}
	if err := store.CreateCredential(ctx, fresh); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}

	n, err := store.PurgeExpired(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}

	if _, err := store.GetCredential(ctx, "temp_old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected temp_old purged, got %v", err)
	}
	if _, err := store.GetCredential(ctx, "temp_fresh"); err != nil {
		t.Errorf("temp_fresh should survive purge: %v", err)
	}
}
