package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/senechal-app/senechal/internal/roles"
	"github.com/senechal-app/senechal/internal/service"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"

	// principalHolderKey carries the slot the access logger installs before
	// this middleware runs. The logger only sees the outer request context,
	// so the principal is written into the holder rather than a derived
	// context.
	principalHolderKey contextKeyAuth = "auth_principal_holder"
)

// principalHolder is a mutable slot shared between the access logger and the
// authorization middleware.
type principalHolder struct {
	principal *service.Principal
}

// Authorize returns the HTTP middleware guarding all data endpoints. It
// extracts the API key from the configured header, resolves it to a role
// through the validator, and checks the role against the request path.
//
// Every rejection and permission denial produces the same minimal response
// body; the specific reason (missing, unknown, expired, revoked, role gone,
// path not granted) is logged internally only, so external callers cannot
// probe credential or path state. Storage failures surface as a 503 and
// never grant access. On success the resolved principal is attached to the
// request context for downstream audit logging; handlers never re-derive
// authorization decisions.
func Authorize(authSvc *service.AuthService, registry *roles.Registry, headerName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := r.Header.Get(headerName)

			principal, err := authSvc.Authenticate(r.Context(), secret)
			if err != nil {
				if service.IsRejection(err) {
					logger.Warn("credential rejected",
						"reason", err.Error(),
						"path", r.URL.Path,
						"request_id", GetRequestID(r.Context()),
					)
					writeAuthError(w, http.StatusUnauthorized, "Unauthorized")
					return
				}
				logger.Error("credential validation unavailable",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				writeAuthError(w, http.StatusServiceUnavailable, "Service unavailable")
				return
			}

			if !registry.IsAllowed(principal.Role, r.URL.Path) {
				logger.Warn("access denied",
					"role", principal.Role,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				writeAuthError(w, http.StatusForbidden, "Access denied")
				return
			}

			logger.Info("access granted",
				"role", principal.Role,
				"kind", string(principal.Kind),
				"path", r.URL.Path,
			)

			if h, ok := r.Context().Value(principalHolderKey).(*principalHolder); ok {
				h.principal = principal
			}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOwner returns an HTTP middleware enforcing an owner session token
// on the credential lifecycle endpoints. The owner token is a separate,
// stronger credential class than API keys; an API key never grants access
// here.
func RequireOwner(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "Owner session required")
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if err := authSvc.ValidateOwnerToken(token); err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Owner session required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *service.Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*service.Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Manually construct JSON to avoid import cycle with handler package
	w.Write([]byte(`{"error":{"code":` + httpStatusString(status) + `,"message":"` + message + `"}}`))
}

func httpStatusString(code int) string {
	switch code {
	case 401:
		return "401"
	case 403:
		return "403"
	case 503:
		return "503"
	default:
		return "500"
	}
}
