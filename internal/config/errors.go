package config

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyRevoked is returned when revoking a credential whose
	// revoked_at is already set. The original revocation time is preserved.
	ErrAlreadyRevoked = errors.New("credential already revoked")

	// ErrDuplicateKeyID is returned when an insert collides with an existing
	// key_id. Callers retry with a freshly generated identifier.
	ErrDuplicateKeyID = errors.New("duplicate key id")

	// ErrDuplicateSecretHash is returned when an insert collides with an
	// existing secret hash. Callers retry with a freshly generated secret.
	ErrDuplicateSecretHash = errors.New("duplicate secret hash")
)
