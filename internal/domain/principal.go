// Package domain holds the request-independent types shared by the CMS
// engine, its governance components and the HTTP layer.
package domain

// Operation is a capability checked by the permission evaluator.
type Operation string

const (
	OpList   Operation = "list"
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
)

// Principal is the authenticated actor of a request, resolved by the auth
// layer before the engine is called.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	Elevated bool   `json:"elevated"`
}

// DisplayName is used in audit titles.
func (p Principal) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	return p.ID
}

// Role is a named set of per-entity-type capabilities.
type Role struct {
	Name        string           `yaml:"name" json:"role"`
	Permissions []RolePermission `yaml:"permissions" json:"permissions"`
}

// RolePermission grants capabilities on one entity type. A role holds at most
// one permission per entity type.
type RolePermission struct {
	Entity    string `yaml:"entity" json:"entity"`
	CanRead   bool   `yaml:"can_read" json:"can_read"`
	CanWrite  bool   `yaml:"can_write" json:"can_write"`
	CanDelete bool   `yaml:"can_delete" json:"can_delete"`
}

// Allows reports whether the permission grants op.
func (p RolePermission) Allows(op Operation) bool {
	switch op {
	case OpList, OpRead:
		return p.CanRead
	case OpWrite:
		return p.CanWrite
	case OpDelete:
		return p.CanDelete
	}
	return false
}
