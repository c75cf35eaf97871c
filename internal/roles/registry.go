// Package roles implements the static role registry and the permission
// evaluator. Roles map a name to a set of path patterns; a pattern matches
// a request path when the path equals the pattern or starts with the
// pattern followed by "/". Matching is case-sensitive with no wildcard or
// regex semantics, which keeps authorization decisions auditable and fast.
package roles

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/senechal-app/senechal/internal/model"
)

// ErrUnknownRole is returned when a role name is not in the registry.
var ErrUnknownRole = errors.New("unknown role")

// Registry holds the role → path-pattern mapping. The mapping is immutable
// after load; Reload swaps in a complete replacement atomically so readers
// never observe a partially-updated registry and reads take no lock.
type Registry struct {
	snapshot atomic.Pointer[map[string]model.Role]
}

// NewRegistry builds a registry from a role → paths mapping, normally the
// output of config.LoadRolesFile.
func NewRegistry(mapping map[string][]string) (*Registry, error) {
	r := &Registry{}
	if err := r.Reload(mapping); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload atomically replaces the entire role mapping. In-flight permission
// checks continue against the snapshot they started with.
func (r *Registry) Reload(mapping map[string][]string) error {
	if len(mapping) == 0 {
		return errors.New("role mapping is empty")
	}

	snapshot := make(map[string]model.Role, len(mapping))
	for name, paths := range mapping {
		if name == "" {
			return errors.New("role with empty name")
		}
		for _, p := range paths {
			if !strings.HasPrefix(p, "/") {
				return fmt.Errorf("role %q: path pattern %q must start with /", name, p)
			}
		}
		cp := make([]string, len(paths))
		copy(cp, paths)
		sort.Strings(cp)
		snapshot[name] = model.Role{Name: name, Paths: cp}
	}

	r.snapshot.Store(&snapshot)
	return nil
}

// Resolve returns the role's path patterns, or ErrUnknownRole.
func (r *Registry) Resolve(name string) (model.Role, error) {
	snapshot := *r.snapshot.Load()
	role, ok := snapshot[name]
	if !ok {
		return model.Role{}, ErrUnknownRole
	}
	return role, nil
}

// Names returns all registered role names, sorted.
func (r *Registry) Names() []string {
	snapshot := *r.snapshot.Load()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsAllowed reports whether the named role may access the request path.
// Unknown roles and roles with no patterns are denied; any ambiguity fails
// closed.
func (r *Registry) IsAllowed(roleName, requestPath string) bool {
	role, err := r.Resolve(roleName)
	if err != nil {
		return false
	}
	for _, pattern := range role.Paths {
		if pathMatches(pattern, requestPath) {
			return true
		}
	}
	return false
}

// pathMatches implements the exact-or-prefix rule: the request path equals
// the pattern, or starts with the pattern followed by "/".
func pathMatches(pattern, requestPath string) bool {
	if requestPath == pattern {
		return true
	}
	return strings.HasPrefix(requestPath, pattern+"/")
}
