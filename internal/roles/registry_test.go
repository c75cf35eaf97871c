package roles

import (
	"errors"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(map[string][]string{
		"read":  {"/getTest", "/health"},
		"write": {"/getTest", "/setTest", "/health"},
		"empty": {},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestIsAllowed(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name string
		role string
		path string
		want bool
	}{
		{"exact match", "read", "/getTest", true},
		{"prefix match", "read", "/health/current", true},
		{"deep prefix match", "read", "/health/trends/daily", true},
		{"not granted", "read", "/setTest", false},
		{"write role granted", "write", "/setTest", true},
		{"prefix without separator", "read", "/healthcheck", false},
		{"case sensitive", "read", "/gettest", false},
		{"unknown role", "ghost", "/getTest", false},
		{"empty pattern set", "empty", "/getTest", false},
		{"empty path", "read", "", false},
		{"root path", "read", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.IsAllowed(tt.role, tt.path); got != tt.want {
				t.Errorf("IsAllowed(%q, %q): got %v, want %v", tt.role, tt.path, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	r := newTestRegistry(t)

	role, err := r.Resolve("read")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(role.Paths) != 2 {
		t.Errorf("expected 2 paths, got %d", len(role.Paths))
	}

	if _, err := r.Resolve("ghost"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}
}

func TestReloadSwapsAtomically(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Reload(map[string][]string{
		"viewer": {"/health"},
	}); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if r.IsAllowed("read", "/getTest") {
		t.Error("old role survived reload")
	}
	if !r.IsAllowed("viewer", "/health/current") {
		t.Error("new role not visible after reload")
	}
}

func TestReloadRejectsInvalidMapping(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Reload(nil); err == nil {
		t.Error("expected error for empty mapping")
	}
	if err := r.Reload(map[string][]string{"bad": {"no-slash"}}); err == nil {
		t.Error("expected error for pattern without leading slash")
	}

	// Failed reload must leave the previous snapshot intact.
	if !r.IsAllowed("read", "/getTest") {
		t.Error("registry lost state after rejected reload")
	}
}

func TestNames(t *testing.T) {
	r := newTestRegistry(t)
	names := r.Names()
	want := []string{"empty", "read", "write"}
	if len(names) != len(want) {
		t.Fatalf("Names: got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d]: got %q, want %q", i, names[i], want[i])
		}
	}
}
