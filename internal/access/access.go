// Package access decides whether a subject may perform a sensitive action.
//
// Two independent checks live here. Authorize evaluates a fixed rule table
// keyed by action and role name, with a super administrator bypass.
// HasPermission tests literal membership of a permission key in the subject's
// role. Call sites pick the one they need; the two are never merged.
package access

import "sort"

// Canonical role names.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

// Permission keys seeded with the canonical roles.
const (
	PermissionInviteUser        = "invite_user"
	PermissionUpdatePermissions = "update_permissions"
	PermissionCreateEvent       = "create_event"
)

// Denial reasons surfaced to callers.
const (
	ReasonInsufficientPermissions       = "Insufficient permissions"
	ReasonAdminsCannotUpdatePermissions = "Admins cannot update permissions"
)

// Role is a named bundle of permission keys.
type Role struct {
	Name        string
	Permissions []string
}

// Subject is the acting user as seen by the evaluator. A nil Role means the
// user has not been assigned one yet.
type Subject struct {
	UserID string
	Role   *Role
}

// RoleName returns the subject's role name or an empty string.
func (s *Subject) RoleName() string {
	if s == nil || s.Role == nil {
		return ""
	}
	return s.Role.Name
}

// PermissionSet is the derived permission view of a role.
type PermissionSet map[string]struct{}

// Has reports whether key is in the set.
func (p PermissionSet) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Keys returns the permission keys in lexical order.
func (p PermissionSet) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// PermissionsOf computes the permission view of role. It is recomputed on
// every call and never cached, so a role reassignment is visible immediately.
func PermissionsOf(role *Role) PermissionSet {
	set := PermissionSet{}
	if role == nil {
		return set
	}
	for _, key := range role.Permissions {
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	return set
}

// HasPermission reports whether the subject's role carries key. There is no
// super administrator bypass here.
func HasPermission(subject *Subject, key string) bool {
	if subject == nil || subject.Role == nil || len(subject.Role.Permissions) == 0 {
		return false
	}
	return PermissionsOf(subject.Role).Has(key)
}
