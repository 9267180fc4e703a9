package access

// Action names an operation guarded by the rule table.
type Action string

const (
	ActionInviteUser        Action = PermissionInviteUser
	ActionUpdatePermissions Action = PermissionUpdatePermissions
	ActionCreateEvent       Action = PermissionCreateEvent
)

// Decision is the outcome of Authorize. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a refusing decision with the supplied reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// rule decides a single action for a non super administrator role name.
type rule func(role string) Decision

var rules = map[Action]rule{
	ActionInviteUser: func(role string) Decision {
		// Admins pass here; the target role restriction is enforced by the invitation flow.
		if role == RoleAdmin {
			return Allow()
		}
		return Deny(ReasonInsufficientPermissions)
	},
	ActionUpdatePermissions: func(role string) Decision {
		if role == RoleAdmin {
			return Deny(ReasonAdminsCannotUpdatePermissions)
		}
		return Deny(ReasonInsufficientPermissions)
	},
}

// Authorize evaluates the action rule table for subject.
func Authorize(subject *Subject, action Action) Decision {
	role := subject.RoleName()
	if role == RoleSuperAdmin {
		return Allow()
	}
	if evaluate, ok := rules[action]; ok {
		return evaluate(role)
	}
	return Deny(ReasonInsufficientPermissions)
}

// IsPrivileged reports whether role is one of the administrative roles.
func IsPrivileged(role string) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}
