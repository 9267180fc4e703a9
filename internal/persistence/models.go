package persistence

import "time"

// Role is a named permission bundle. Permissions holds permission keys.
type Role struct {
	ID          string
	Name        string
	Description string
	Permissions []string
}

// User is an account row joined with its role. Email and Mobile are empty when
// absent; at least one is set. An empty PasswordHash marks a pending invitation.
type User struct {
	ID           string
	Name         string
	Email        string
	Mobile       string
	PasswordHash string
	RoleID       string
	Role         *Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Event statuses stored in events.status.
const (
	EventStatusActive    = "active"
	EventStatusCancelled = "cancelled"
)

// Event is a scheduled booking with its participant list.
type Event struct {
	ID                 string
	Title              string
	Start              time.Time
	End                time.Time
	OwnerID            string
	Status             string
	ParticipantIDs     []string
	CancelledAt        *time.Time
	CancelledBy        string
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EventFilter narrows event listings.
type EventFilter struct {
	UserID string // owner or participant
	Status string // empty means any
}

// OverlapQuery asks whether UserID holds an active event overlapping [Start, End).
type OverlapQuery struct {
	UserID         string
	Start          time.Time
	End            time.Time
	ExcludeEventID string
}
