package model

import "time"

// Credential represents a temporary API credential issued by the lifecycle
// manager. The raw secret is never stored; only a keyed hash is persisted.
// KeyID is a stable, non-secret identifier safe to log and display.
type Credential struct {
	KeyID      string     `json:"key_id" db:"key_id"`
	SecretHash string     `json:"-" db:"secret_hash"` // HMAC-SHA256, never expose
	Role       string     `json:"role" db:"role"`
	Note       string     `json:"note,omitempty" db:"note"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// ActiveAt reports whether the credential is usable at the given instant.
// A credential is active iff it has not been revoked and has not yet
// expired; expiry is inclusive at the boundary (now >= ExpiresAt is
// expired). Active state is always derived, never persisted.
func (c *Credential) ActiveAt(now time.Time) bool {
	return c.RevokedAt == nil && now.Before(c.ExpiresAt)
}

// CredentialMetadata is the owner-facing view of a credential. It carries
// everything except the secret hash, plus the derived active state.
type CredentialMetadata struct {
	KeyID     string     `json:"key_id"`
	Role      string     `json:"role"`
	Note      string     `json:"note,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Metadata returns the owner-facing view of the credential with the active
// state computed at the given instant.
func (c *Credential) Metadata(now time.Time) CredentialMetadata {
	return CredentialMetadata{
		KeyID:     c.KeyID,
		Role:      c.Role,
		Note:      c.Note,
		Active:    c.ActiveAt(now),
		CreatedAt: c.CreatedAt,
		ExpiresAt: c.ExpiresAt,
		RevokedAt: c.RevokedAt,
	}
}

// IssuedCredential is returned once from Create. RawSecret is the only copy
// of the secret ever produced; it cannot be retrieved again.
type IssuedCredential struct {
	KeyID     string    `json:"key_id"`
	RawSecret string    `json:"raw_secret"`
	Role      string    `json:"role"`
	Note      string    `json:"note,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}
