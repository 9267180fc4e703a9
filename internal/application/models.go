package application

import (
	"time"

	"github.com/example/event-scheduler/internal/access"
	"github.com/example/event-scheduler/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
// Services re-read the user behind it, so role changes apply immediately.
type Principal struct {
	UserID string
}

// Role is a named permission bundle.
type Role struct {
	ID          string
	Name        string
	Permissions []string
}

// User is an account in the identity store.
type User struct {
	ID           string
	Name         string
	Email        string
	Mobile       string
	PasswordHash string
	Role         *Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoleName returns the user's role name, or an empty string when unassigned.
func (u User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// Activated reports whether the account has a usable password.
func (u User) Activated() bool {
	return u.PasswordHash != ""
}

// Permissions derives the permission keys from the current role.
func (u User) Permissions() []string {
	return access.PermissionsOf(u.accessRole()).Keys()
}

// Subject exposes the user to the access evaluator.
func (u User) Subject() *access.Subject {
	return &access.Subject{UserID: u.ID, Role: u.accessRole()}
}

func (u User) party() scheduler.Party {
	return scheduler.Party{UserID: u.ID, Role: u.RoleName()}
}

func (u User) accessRole() *access.Role {
	if u.Role == nil {
		return nil
	}
	return &access.Role{Name: u.Role.Name, Permissions: u.Role.Permissions}
}

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	return s == EventStatusActive || s == EventStatusCancelled
}

// Event is a time-bounded booking owned by one user.
type Event struct {
	ID                 string
	Title              string
	Start              time.Time
	End                time.Time
	OwnerID            string
	Status             EventStatus
	ParticipantIDs     []string
	CancelledAt        *time.Time
	CancelledBy        string
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Window returns the event's half-open time interval.
func (e Event) Window() scheduler.Window {
	return scheduler.Window{Start: e.Start, End: e.End}
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Title          string
	Start          time.Time
	End            time.Time
	ParticipantIDs []string
}

// CreateEventParams wraps the data required to create an event owned by the principal.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to replace an event's details.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Input     EventInput
}

// CancelEventParams wraps the data required to cancel an event.
type CancelEventParams struct {
	Principal Principal
	EventID   string
	Reason    string
}

// ListEventsParams filters the events visible to the principal.
type ListEventsParams struct {
	Principal Principal
	Status    EventStatus
}

// InviteParams wraps an invitation request.
type InviteParams struct {
	Principal Principal
	Email     string
	Role      string
}

// InviteResult is returned after an invitation is issued.
type InviteResult struct {
	User  User
	Token string
	Link  string
}

// RegisterParams wraps a registration request. Token is the optional invitation claim.
type RegisterParams struct {
	Name     string
	Email    string
	Mobile   string
	Password string
	Token    string
}

// AuthenticateParams wraps login credentials. Identifier is an email or a mobile number.
type AuthenticateParams struct {
	Identifier string
	Password   string
}

// AuthenticateResult is returned on successful login.
type AuthenticateResult struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// UpdateUserRoleParams wraps a role reassignment.
type UpdateUserRoleParams struct {
	Principal Principal
	UserID    string
	Role      string
}

// CancellationNotice is handed to the notifier after an event is cancelled.
type CancellationNotice struct {
	Recipients      []string
	Title           string
	Start           time.Time
	End             time.Time
	CancelledByName string
}
