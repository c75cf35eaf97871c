package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/senechal-app/senechal/internal/config"
	"github.com/senechal-app/senechal/internal/model"
	"github.com/senechal-app/senechal/internal/roles"
)

// maxCreateAttempts bounds the retry loop on key_id or hash collisions
// before Create fails deterministically.
const maxCreateAttempts = 3

// InvalidInputError reports a validation failure on an owner-facing
// lifecycle operation. Unlike external rejections, these carry a
// descriptive message; the caller is the trusted owner.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string {
	return e.Msg
}

// RevokeStatus distinguishes a fresh revocation from a repeated one.
// Revoking twice is not an error; the second call observes the state the
// first one produced.
type RevokeStatus string

const (
	StatusRevoked        RevokeStatus = "revoked"
	StatusAlreadyRevoked RevokeStatus = "already_revoked"
)

// RevokeResult is returned from Revoke.
type RevokeResult struct {
	KeyID     string       `json:"key_id"`
	Status    RevokeStatus `json:"status"`
	RevokedAt time.Time    `json:"revoked_at"`
}

// LifecycleService creates, lists, and revokes temporary credentials.
type LifecycleService struct {
	store       *config.Store
	registry    *roles.Registry
	hasher      *SecretHasher
	clock       Clock
	maxDuration time.Duration

	// Injectable generators for deterministic tests. Defaults use
	// crypto/rand.
	newSecret func() (string, error)
	newKeyID  func() (string, error)
}

// NewLifecycleService creates a LifecycleService. maxDuration caps the
// lifetime of issued credentials so a "temporary" credential cannot be
// made effectively permanent.
func NewLifecycleService(store *config.Store, registry *roles.Registry, hasher *SecretHasher, clock Clock, maxDuration time.Duration) *LifecycleService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &LifecycleService{
		store:       store,
		registry:    registry,
		hasher:      hasher,
		clock:       clock,
		maxDuration: maxDuration,
		newSecret:   generateSecret,
		newKeyID:    generateKeyID,
	}
}

// Create issues a new temporary credential bound to roleName for the given
// duration. The returned raw secret is the only copy ever produced.
func (s *LifecycleService) Create(ctx context.Context, roleName string, duration time.Duration, note string) (*model.IssuedCredential, error) {
	if _, err := s.registry.Resolve(roleName); err != nil {
		return nil, &InvalidInputError{Msg: fmt.Sprintf("unknown role %q", roleName)}
	}
	if duration <= 0 {
		return nil, &InvalidInputError{Msg: "duration must be positive"}
	}
	if duration > s.maxDuration {
		return nil, &InvalidInputError{Msg: fmt.Sprintf("duration exceeds maximum of %s", s.maxDuration)}
	}

	now := s.clock.Now()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		keyID, err := s.newKeyID()
		if err != nil {
			return nil, fmt.Errorf("generate key id: %w", err)
		}
		rawSecret, err := s.newSecret()
		if err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}

		cred := &model.Credential{
			KeyID:      keyID,
			SecretHash: s.hasher.Hash(rawSecret),
			Role:       roleName,
			Note:       note,
			CreatedAt:  now,
			ExpiresAt:  now.Add(duration),
		}

		err = s.store.CreateCredential(ctx, cred)
		if err == nil {
			return &model.IssuedCredential{
				KeyID:     keyID,
				RawSecret: rawSecret,
				Role:      roleName,
				Note:      note,
				ExpiresAt: cred.ExpiresAt,
			}, nil
		}
		if errors.Is(err, config.ErrDuplicateKeyID) || errors.Is(err, config.ErrDuplicateSecretHash) {
			continue
		}
		return nil, fmt.Errorf("persist credential: %w", err)
	}

	return nil, fmt.Errorf("credential creation failed after %d collision retries", maxCreateAttempts)
}

// List returns metadata for all credentials, newest first. Active state is
// computed at call time; secrets and hashes are never included.
func (s *LifecycleService) List(ctx context.Context) ([]model.CredentialMetadata, error) {
	creds, err := s.store.ListCredentials(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	out := make([]model.CredentialMetadata, len(creds))
	for i := range creds {
		out[i] = creds[i].Metadata(now)
	}
	return out, nil
}

// Get returns metadata for a single credential by key_id.
func (s *LifecycleService) Get(ctx context.Context, keyID string) (*model.CredentialMetadata, error) {
	cred, err := s.store.GetCredential(ctx, keyID)
	if err != nil {
		return nil, err
	}
	meta := cred.Metadata(s.clock.Now())
	return &meta, nil
}

// Revoke sets revoked_at on the credential. Revoking an already-revoked
// credential reports StatusAlreadyRevoked with the original revocation
// time; revocation is never undone.
func (s *LifecycleService) Revoke(ctx context.Context, keyID string) (*RevokeResult, error) {
	cred, err := s.store.RevokeCredential(ctx, keyID, s.clock.Now())
	if err != nil {
		if errors.Is(err, config.ErrAlreadyRevoked) {
			return &RevokeResult{
				KeyID:     cred.KeyID,
				Status:    StatusAlreadyRevoked,
				RevokedAt: *cred.RevokedAt,
			}, nil
		}
		return nil, err
	}
	return &RevokeResult{
		KeyID:     cred.KeyID,
		Status:    StatusRevoked,
		RevokedAt: *cred.RevokedAt,
	}, nil
}

// PurgeExpired deletes credentials whose expiry plus the grace period is in
// the past. Revoked-but-unexpired credentials are retained so they stay
// visible in listings.
func (s *LifecycleService) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	return s.store.PurgeExpired(ctx, s.clock.Now().Add(-grace))
}

// generateSecret produces a raw bearer secret: "snl_" + 64 hex chars from
// 32 random bytes.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "snl_" + hex.EncodeToString(buf), nil
}

// generateKeyID produces a non-secret credential identifier: "temp_" + 16
// hex chars from 8 random bytes. Uniqueness is enforced by the store.
func generateKeyID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "temp_" + hex.EncodeToString(buf), nil
}
