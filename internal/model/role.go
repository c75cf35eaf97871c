package model

// Role is a named bundle of path-access permissions. Paths are
// exact-or-prefix patterns matched against request paths; there are no
// wildcard or regex semantics. Roles are immutable after configuration
// load.
type Role struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
}
