package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/senechal-app/senechal/internal/config"
)

func TestCreateValidation(t *testing.T) {
	_, lifecycle, _ := newTestFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		role     string
		duration time.Duration
	}{
		{"unknown role", "ghost", time.Hour},
		{"zero duration", "read", 0},
		{"negative duration", "read", -time.Hour},
		{"duration over maximum", "read", 1000 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lifecycle.Create(ctx, tt.role, tt.duration, "")
			var invalid *InvalidInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
		})
	}

	// No rows persisted by any rejected create.
	metas, err := lifecycle.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("expected empty store after rejected creates, got %d rows", len(metas))
	}
}

func TestCreateIssuesActiveCredential(t *testing.T) {
	_, lifecycle, clock := newTestFixture(t)
	ctx := context.Background()

	issued, err := lifecycle.Create(ctx, "read", 3600*time.Second, "session")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !strings.HasPrefix(issued.KeyID, "temp_") {
		t.Errorf("KeyID: got %q, want temp_ prefix", issued.KeyID)
	}
	if !strings.HasPrefix(issued.RawSecret, "snl_") || len(issued.RawSecret) < 60 {
		t.Errorf("RawSecret %q lacks expected format or entropy", issued.RawSecret)
	}
	if want := clock.Now().Add(3600 * time.Second); !issued.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt: got %v, want %v", issued.ExpiresAt, want)
	}

	meta, err := lifecycle.Get(ctx, issued.KeyID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !meta.Active {
		t.Error("expected active == true immediately after create")
	}
	if meta.Note != "session" {
		t.Errorf("Note: got %q, want %q", meta.Note, "session")
	}
}

func TestCreateRetriesOnKeyIDCollision(t *testing.T) {
	_, lifecycle, _ := newTestFixture(t)
	ctx := context.Background()

	// Force the first generated key_id to collide with an existing row.
	first, err := lifecycle.Create(ctx, "read", time.Hour, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ids := []string{first.KeyID, "temp_fresh0000000001"}
	calls := 0
	lifecycle.newKeyID = func() (string, error) {
		id := ids[calls]
		calls++
		return id, nil
	}

	second, err := lifecycle.Create(ctx, "read", time.Hour, "")
	if err != nil {
		t.Fatalf("Create with collision: %v", err)
	}
	if second.KeyID != "temp_fresh0000000001" {
		t.Errorf("KeyID: got %q, want retried id", second.KeyID)
	}
	if calls != 2 {
		t.Errorf("expected 2 key id generations, got %d", calls)
	}
}

func TestCreateFailsAfterBoundedRetries(t *testing.T) {
	_, lifecycle, _ := newTestFixture(t)
	ctx := context.Background()

	first, err := lifecycle.Create(ctx, "read", time.Hour, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	lifecycle.newKeyID = func() (string, error) {
		return first.KeyID, nil
	}

	if _, err := lifecycle.Create(ctx, "read", time.Hour, ""); err == nil {
		t.Fatal("expected deterministic failure after bounded collision retries")
	}
}

func TestListOrderAndIdempotence(t *testing.T) {
	_, lifecycle, clock := newTestFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := lifecycle.Create(ctx, "read", time.Hour, ""); err != nil {
			t.Fatalf("Create: %v", err)
		}
		clock.Advance(time.Minute)
	}

	first, err := lifecycle.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 credentials, got %d", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i].CreatedAt.After(first[i-1].CreatedAt) {
			t.Error("list not ordered by created_at descending")
		}
	}

	second, err := lifecycle.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for i := range first {
		if first[i].KeyID != second[i].KeyID {
			t.Error("two lists with no intervening mutation differ")
		}
	}
}

func TestRevokeIdempotence(t *testing.T) {
	_, lifecycle, clock := newTestFixture(t)
	ctx := context.Background()

	issued, err := lifecycle.Create(ctx, "read", time.Hour, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := lifecycle.Revoke(ctx, issued.KeyID)
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if res.Status != StatusRevoked {
		t.Errorf("Status: got %q, want %q", res.Status, StatusRevoked)
	}
	firstRevokedAt := res.RevokedAt

	// Second revoke observes the existing revocation without changing it.
	clock.Advance(time.Minute)
	res2, err := lifecycle.Revoke(ctx, issued.KeyID)
	if err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if res2.Status != StatusAlreadyRevoked {
		t.Errorf("Status: got %q, want %q", res2.Status, StatusAlreadyRevoked)
	}
	if !res2.RevokedAt.Equal(firstRevokedAt) {
		t.Errorf("revoked_at changed: got %v, want %v", res2.RevokedAt, firstRevokedAt)
	}

	meta, err := lifecycle.Get(ctx, issued.KeyID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if meta.Active {
		t.Error("revoked credential reported active")
	}
}

func TestRevokeUnknownKeyID(t *testing.T) {
	_, lifecycle, _ := newTestFixture(t)

	if _, err := lifecycle.Revoke(context.Background(), "temp_missing00000000"); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPurgeExpiredRespectsGrace(t *testing.T) {
	_, lifecycle, clock := newTestFixture(t)
	ctx := context.Background()

	// One credential that will expire and age past the grace period, one
	// revoked but unexpired.
	shortLived, err := lifecycle.Create(ctx, "read", time.Minute, "short")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	longLived, err := lifecycle.Create(ctx, "read", 100*time.Hour, "long")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := lifecycle.Revoke(ctx, longLived.KeyID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	clock.Advance(48 * time.Hour)

	n, err := lifecycle.PurgeExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}

	metas, err := lifecycle.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected 1 remaining credential, got %d", len(metas))
	}
	if metas[0].KeyID != longLived.KeyID {
		t.Errorf("wrong credential purged: remaining %q", metas[0].KeyID)
	}
	if metas[0].Active {
		t.Error("revoked credential reported active after purge")
	}

	if _, err := lifecycle.Get(ctx, shortLived.KeyID); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("expected purged credential to be gone, got %v", err)
	}
}
