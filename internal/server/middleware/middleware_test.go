package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/senechal-app/senechal/internal/config"
	"github.com/senechal-app/senechal/internal/roles"
	"github.com/senechal-app/senechal/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthFixture(t *testing.T) (*service.AuthService, *service.LifecycleService, *roles.Registry, *config.Store) {
	t.Helper()

	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry, err := roles.NewRegistry(map[string][]string{
		"read":  {"/getTest", "/health"},
		"write": {"/getTest", "/setTest"},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	hasher := service.NewSecretHasher("test-hash-key")
	permanent := map[string]string{"perm-read-key": "read"}
	auth := service.NewAuthService(store, registry, permanent, hasher, nil, "test-jwt-secret")
	lifecycle := service.NewLifecycleService(store, registry, hasher, nil, 720*time.Hour)
	return auth, lifecycle, registry, store
}

func okHandler(t *testing.T, sawPrincipal *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := GetPrincipal(r.Context()); p != nil {
			*sawPrincipal = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthorizeAllows(t *testing.T) {
	auth, _, registry, _ := newAuthFixture(t)

	sawPrincipal := false
	handler := Authorize(auth, registry, "X-API-Key", discardLogger())(okHandler(t, &sawPrincipal))

	req := httptest.NewRequest("GET", "/getTest", nil)
	req.Header.Set("X-API-Key", "perm-read-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
	if !sawPrincipal {
		t.Error("downstream handler did not see a principal")
	}
}

func TestAuthorizeUniformRejection(t *testing.T) {
	auth, lifecycle, registry, _ := newAuthFixture(t)
	ctx := context.Background()

	// Build one credential of each rejected state.
	revoked, err := lifecycle.Create(ctx, "read", time.Hour, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := lifecycle.Revoke(ctx, revoked.KeyID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	handler := Authorize(auth, registry, "X-API-Key", discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler invoked for rejected credential")
		}))

	var bodies []string
	for _, secret := range []string{"", "unknown-key", revoked.RawSecret} {
		req := httptest.NewRequest("GET", "/getTest", nil)
		if secret != "" {
			req.Header.Set("X-API-Key", secret)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("secret %q: status got %d, want 401", secret, rec.Code)
		}
		bodies = append(bodies, rec.Body.String())
	}

	// All rejection responses must be byte-identical: no reason leakage.
	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("rejection bodies differ: %q vs %q", bodies[0], bodies[i])
		}
	}
}

func TestAuthorizeDeniesPathOutsideRole(t *testing.T) {
	auth, _, registry, _ := newAuthFixture(t)

	handler := Authorize(auth, registry, "X-API-Key", discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler invoked for denied path")
		}))

	req := httptest.NewRequest("POST", "/setTest", nil)
	req.Header.Set("X-API-Key", "perm-read-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want 403", rec.Code)
	}
}

func TestAuthorizeStorageFailure(t *testing.T) {
	auth, lifecycle, registry, store := newAuthFixture(t)

	issued, err := lifecycle.Create(context.Background(), "read", time.Hour, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Take the store down; temporary credential lookups now fail.
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	handler := Authorize(auth, registry, "X-API-Key", discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler invoked while storage was unavailable")
		}))

	req := httptest.NewRequest("GET", "/getTest", nil)
	req.Header.Set("X-API-Key", issued.RawSecret)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Storage failure is a server error, never a success and never a 401
	// that would look like a bad credential.
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "Service unavailable") {
		t.Errorf("body: got %q, want service-unavailable error", body)
	}
}

func TestLoggerRecordsRole(t *testing.T) {
	auth, _, registry, _ := newAuthFixture(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logger(logger)(Authorize(auth, registry, "X-API-Key", discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	req := httptest.NewRequest("GET", "/getTest", nil)
	req.Header.Set("X-API-Key", "perm-read-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if !strings.Contains(buf.String(), "role=read") {
		t.Errorf("access log missing role attribute: %q", buf.String())
	}

	// Unauthenticated requests log without a role.
	buf.Reset()
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/getTest", nil))
	if strings.Contains(buf.String(), "role=") {
		t.Errorf("access log carries a role for an unauthenticated request: %q", buf.String())
	}
}

func TestRequireOwner(t *testing.T) {
	auth, _, _, _ := newAuthFixture(t)

	handler := RequireOwner(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/credential", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d, want 401", rec.Code)
	}

	// API key in the wrong slot is not an owner session.
	req := httptest.NewRequest("GET", "/admin/credential", nil)
	req.Header.Set("Authorization", "Bearer perm-read-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("api key as bearer: got %d, want 401", rec.Code)
	}

	// Valid owner token.
	token, err := auth.IssueOwnerToken(time.Hour)
	if err != nil {
		t.Fatalf("IssueOwnerToken: %v", err)
	}
	req = httptest.NewRequest("GET", "/admin/credential", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("owner token: got %d, want 200", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("no request ID in context")
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no X-Request-ID response header")
	}

	// Client-provided ID is preserved.
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id-1" {
		t.Errorf("X-Request-ID: got %q, want client-id-1", got)
	}
}

func TestClientIPForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.7" {
		t.Errorf("clientIP: got %q, want 203.0.113.7", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	if got := clientIP(req); got == "" {
		t.Error("clientIP empty without forwarding header")
	}
}
