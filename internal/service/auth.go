package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/senechal-app/senechal/internal/config"
	"github.com/senechal-app/senechal/internal/roles"
)

// Rejection reasons. They are distinguished internally for logging only;
// the HTTP layer collapses all of them into one uniform 401 so callers
// cannot enumerate credentials or probe revocation state.
var (
	ErrInvalidCredentials = errors.New("unknown credential")
	ErrCredentialExpired  = errors.New("credential expired")
	ErrCredentialRevoked  = errors.New("credential revoked")
	ErrRoleNotConfigured  = errors.New("credential role no longer configured")
)

// CredentialKind identifies which credential class authenticated a request.
type CredentialKind string

const (
	KindPermanent CredentialKind = "permanent"
	KindTemporary CredentialKind = "temporary"
)

// Principal is the authenticated identity resolved from a presented secret.
type Principal struct {
	Role string
	Kind CredentialKind
	// KeyID is set for temporary credentials only; permanent keys have no
	// stable non-secret identifier.
	KeyID string
}

// AuthService resolves presented secrets to roles and manages owner
// sessions. Permanent keys come from immutable configuration; temporary
// credentials are looked up in the store by keyed hash.
type AuthService struct {
	store     *config.Store
	registry  *roles.Registry
	permanent map[string]string
	hasher    *SecretHasher
	clock     Clock
	jwtSecret []byte
}

// NewAuthService creates an AuthService. permanent maps raw permanent
// secrets to role names.
func NewAuthService(store *config.Store, registry *roles.Registry, permanent map[string]string, hasher *SecretHasher, clock Clock, jwtSecret string) *AuthService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AuthService{
		store:     store,
		registry:  registry,
		permanent: permanent,
		hasher:    hasher,
		clock:     clock,
		jwtSecret: []byte(jwtSecret),
	}
}

// Authenticate resolves a presented secret to a Principal.
//
// Permanent keys are checked first with a constant-time compare. If none
// matches, the keyed hash of the secret is looked up in the credential
// store and expiry and revocation rules applied. Expiry is inclusive at
// the boundary: a credential is rejected once now >= expires_at. A
// credential whose role has since been removed from the registry is
// rejected, never downgraded to a default role. Storage failures reject.
func (s *AuthService) Authenticate(ctx context.Context, secret string) (*Principal, error) {
	if secret == "" {
		return nil, ErrInvalidCredentials
	}

	if role, ok := s.matchPermanent(secret); ok {
		if _, err := s.registry.Resolve(role); err != nil {
			return nil, ErrRoleNotConfigured
		}
		return &Principal{Role: role, Kind: KindPermanent}, nil
	}

	cred, err := s.store.GetCredentialByHash(ctx, s.hasher.Hash(secret))
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		// Fail closed on storage errors; the caller surfaces a server
		// error, never an authorization success.
		return nil, fmt.Errorf("credential lookup: %w", err)
	}

	now := s.clock.Now()
	if cred.RevokedAt != nil {
		return nil, ErrCredentialRevoked
	}
	if !now.Before(cred.ExpiresAt) {
		return nil, ErrCredentialExpired
	}
	if _, err := s.registry.Resolve(cred.Role); err != nil {
		return nil, ErrRoleNotConfigured
	}

	return &Principal{Role: cred.Role, Kind: KindTemporary, KeyID: cred.KeyID}, nil
}

// matchPermanent scans the configured permanent keys with a constant-time
// compare per entry to avoid timing side-channels on the secret bytes.
func (s *AuthService) matchPermanent(secret string) (string, bool) {
	secretBytes := []byte(secret)
	role := ""
	found := false
	for key, r := range s.permanent {
		if subtle.ConstantTimeCompare([]byte(key), secretBytes) == 1 {
			role = r
			found = true
		}
	}
	return role, found
}

// IsRejection reports whether err is a credential rejection (as opposed to
// a storage failure). Rejections map to a uniform 401; anything else is a
// server error.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrCredentialExpired) ||
		errors.Is(err, ErrCredentialRevoked) ||
		errors.Is(err, ErrRoleNotConfigured)
}

// ---------------------------------------------------------------------------
// Owner sessions
// ---------------------------------------------------------------------------

// HashOwnerPassword produces the bcrypt hash stored in configuration for
// the owner password.
func HashOwnerPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyOwnerPassword checks the presented password against the configured
// bcrypt hash.
func (s *AuthService) VerifyOwnerPassword(passwordHash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueOwnerToken creates a signed session token for the owner. Lifecycle
// endpoints require this token; it is a separate, stronger credential
// class than the API keys used for data traffic.
func (s *AuthService) IssueOwnerToken(ttl time.Duration) (string, error) {
	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "owner",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "senechal",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateOwnerToken verifies an owner session token.
func (s *AuthService) ValidateOwnerToken(tokenStr string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return ErrInvalidCredentials
	}
	if claims.Subject != "owner" {
		return ErrInvalidCredentials
	}
	return nil
}
