package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subjectWithRole(name string, permissions ...string) *Subject {
	return &Subject{UserID: "user-1", Role: &Role{Name: name, Permissions: permissions}}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	superAdmin := subjectWithRole(RoleSuperAdmin)
	admin := subjectWithRole(RoleAdmin, PermissionInviteUser, PermissionCreateEvent)
	user := subjectWithRole(RoleUser, PermissionCreateEvent)
	roleless := &Subject{UserID: "user-2"}

	tests := []struct {
		name    string
		subject *Subject
		action  Action
		allowed bool
		reason  string
	}{
		{name: "super admin invites", subject: superAdmin, action: ActionInviteUser, allowed: true},
		{name: "super admin updates permissions", subject: superAdmin, action: ActionUpdatePermissions, allowed: true},
		{name: "super admin unknown action", subject: superAdmin, action: Action("archive_everything"), allowed: true},
		{name: "admin invites", subject: admin, action: ActionInviteUser, allowed: true},
		{name: "admin blocked from permissions", subject: admin, action: ActionUpdatePermissions, reason: ReasonAdminsCannotUpdatePermissions},
		{name: "user cannot update permissions", subject: user, action: ActionUpdatePermissions, reason: ReasonInsufficientPermissions},
		{name: "user cannot invite", subject: user, action: ActionInviteUser, reason: ReasonInsufficientPermissions},
		{name: "rule table ignores permission keys", subject: user, action: ActionCreateEvent, reason: ReasonInsufficientPermissions},
		{name: "roleless subject", subject: roleless, action: ActionInviteUser, reason: ReasonInsufficientPermissions},
		{name: "nil subject", subject: nil, action: ActionInviteUser, reason: ReasonInsufficientPermissions},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			decision := Authorize(tc.subject, tc.action)
			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.reason, decision.Reason)
		})
	}
}

func TestHasPermission(t *testing.T) {
	t.Parallel()

	t.Run("membership without bypass", func(t *testing.T) {
		t.Parallel()

		superAdmin := subjectWithRole(RoleSuperAdmin, PermissionInviteUser)
		assert.True(t, HasPermission(superAdmin, PermissionInviteUser))
		assert.False(t, HasPermission(superAdmin, PermissionCreateEvent))
	})

	t.Run("absent pieces yield false", func(t *testing.T) {
		t.Parallel()

		assert.False(t, HasPermission(nil, PermissionCreateEvent))
		assert.False(t, HasPermission(&Subject{UserID: "u"}, PermissionCreateEvent))
		assert.False(t, HasPermission(subjectWithRole(RoleUser), PermissionCreateEvent))
	})
}

func TestPermissionsOf(t *testing.T) {
	t.Parallel()

	set := PermissionsOf(&Role{Name: RoleAdmin, Permissions: []string{PermissionInviteUser, PermissionCreateEvent, PermissionInviteUser, ""}})
	require.Len(t, set, 2)
	assert.Equal(t, []string{PermissionCreateEvent, PermissionInviteUser}, set.Keys())

	assert.Empty(t, PermissionsOf(nil))
}

func TestIsPrivileged(t *testing.T) {
	t.Parallel()

	assert.True(t, IsPrivileged(RoleAdmin))
	assert.True(t, IsPrivileged(RoleSuperAdmin))
	assert.False(t, IsPrivileged(RoleUser))
	assert.False(t, IsPrivileged(""))
}
