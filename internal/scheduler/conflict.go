package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/event-scheduler/internal/access"
)

// OverlapQuery asks whether UserID already holds an active event, as owner or
// participant, overlapping Window. ExcludeEventID, when set, is ignored.
type OverlapQuery struct {
	UserID         string
	Window         Window
	ExcludeEventID string
}

// OverlapFinder is implemented by event storage. Implementations must only
// consider events whose status is active.
type OverlapFinder interface {
	HasOverlappingEvent(ctx context.Context, query OverlapQuery) (bool, error)
}

// EligibilityPolicy decides whether a user with the given role name is
// subject to double-booking prevention. An empty role means none assigned.
type EligibilityPolicy func(role string) bool

// RoleUserOnly exempts administrators: only role user, or no role, is checked.
func RoleUserOnly(role string) bool {
	return role == "" || role == access.RoleUser
}

// AllUsers subjects every user to conflict checks.
func AllUsers(string) bool {
	return true
}

// Policy names accepted by PolicyByName.
const (
	PolicyUserOnly = "user_only"
	PolicyAll      = "all"
)

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (EligibilityPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyUserOnly:
		return RoleUserOnly, nil
	case PolicyAll:
		return AllUsers, nil
	default:
		return nil, fmt.Errorf("scheduler: unknown conflict policy %q", name)
	}
}

// Party is a user taking part in an event, owner or participant.
type Party struct {
	UserID string
	Role   string
}

// Detector answers conflict questions against an OverlapFinder. It holds no
// state beyond its policy; every check reads current storage.
type Detector struct {
	policy EligibilityPolicy
}

// NewDetector returns a detector using policy, or RoleUserOnly when nil.
func NewDetector(policy EligibilityPolicy) *Detector {
	if policy == nil {
		policy = RoleUserOnly
	}
	return &Detector{policy: policy}
}

// IsConflictEligible reports whether a user with role is checked for overlaps.
func (d *Detector) IsConflictEligible(role string) bool {
	if d == nil || d.policy == nil {
		return RoleUserOnly(role)
	}
	return d.policy(role)
}

// HasConflict reports whether userID holds an active event overlapping window.
func (d *Detector) HasConflict(ctx context.Context, finder OverlapFinder, userID string, window Window, excludeEventID string) (bool, error) {
	if finder == nil {
		return false, fmt.Errorf("scheduler: overlap finder not configured")
	}
	if err := window.Validate(); err != nil {
		return false, err
	}
	return finder.HasOverlappingEvent(ctx, OverlapQuery{
		UserID:         userID,
		Window:         window.UTC(),
		ExcludeEventID: excludeEventID,
	})
}

// Busy gates HasConflict on eligibility. Ineligible parties are never busy.
func (d *Detector) Busy(ctx context.Context, finder OverlapFinder, party Party, window Window, excludeEventID string) (bool, error) {
	if !d.IsConflictEligible(party.Role) {
		return false, nil
	}
	return d.HasConflict(ctx, finder, party.UserID, window, excludeEventID)
}
