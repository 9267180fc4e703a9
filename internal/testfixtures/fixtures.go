package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/event-scheduler/internal/access"
	"github.com/example/event-scheduler/internal/application"
	"github.com/example/event-scheduler/internal/persistence"
)

var (
	userCounter  uint64
	eventCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Seeded role identifiers, matching the role migration.
var roleIDs = map[string]string{
	access.RoleSuperAdmin: "role-super-admin",
	access.RoleAdmin:      "role-admin",
	access.RoleUser:       "role-user",
}

var rolePermissions = map[string][]string{
	access.RoleSuperAdmin: {access.PermissionCreateEvent, access.PermissionInviteUser, access.PermissionUpdatePermissions},
	access.RoleAdmin:      {access.PermissionCreateEvent, access.PermissionInviteUser},
	access.RoleUser:       {access.PermissionCreateEvent},
}

// CanonicalRole returns a seeded role as the application sees it. Unknown
// names yield nil.
func CanonicalRole(name string) *application.Role {
	id, ok := roleIDs[name]
	if !ok {
		return nil
	}
	return &application.Role{
		ID:          id,
		Name:        name,
		Permissions: append([]string(nil), rolePermissions[name]...),
	}
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Name         string
	Email        string
	Mobile       string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns an activated user with role user and optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Name:         fmt.Sprintf("User %03d", idx),
		Email:        fmt.Sprintf("%s@example.com", id),
		PasswordHash: "hashed:secret",
		Role:         access.RoleUser,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserName overrides the generated display name.
func WithUserName(name string) UserOption {
	return func(f *UserFixture) {
		f.Name = name
	}
}

// WithUserEmail overrides the generated email address. An empty email leaves
// the user reachable by mobile only.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserMobile sets the mobile number.
func WithUserMobile(mobile string) UserOption {
	return func(f *UserFixture) {
		f.Mobile = mobile
	}
}

// WithUserPasswordHash overrides the stored hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserPending makes the fixture an invitation placeholder with no password.
func WithUserPending() UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = ""
	}
}

// WithUserRole sets the role name. An empty name leaves the user without a role.
func WithUserRole(role string) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:           f.ID,
		Name:         f.Name,
		Email:        f.Email,
		Mobile:       f.Mobile,
		PasswordHash: f.PasswordHash,
		Role:         CanonicalRole(f.Role),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Name:         f.Name,
		Email:        f.Email,
		Mobile:       f.Mobile,
		PasswordHash: f.PasswordHash,
		RoleID:       roleIDs[f.Role],
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Event fixtures ----------------------------

// EventFixture represents a deterministic event record.
type EventFixture struct {
	ID             string
	Title          string
	OwnerID        string
	Start          time.Time
	End            time.Time
	Status         application.EventStatus
	ParticipantIDs []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns an active one hour event owned by ownerID. Each
// fixture starts one day after the previous one so defaults never overlap.
func NewEventFixture(ownerID string, opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * 24 * time.Hour).Truncate(time.Hour)
	fixture := EventFixture{
		ID:        fmt.Sprintf("event-%03d", idx),
		Title:     fmt.Sprintf("Event %03d", idx),
		OwnerID:   ownerID,
		Start:     start,
		End:       start.Add(time.Hour),
		Status:    application.EventStatusActive,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the generated event ID.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) {
		f.ID = id
	}
}

// WithEventTitle overrides the generated title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) {
		f.Title = title
	}
}

// WithEventWindow sets the event's start and end.
func WithEventWindow(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventParticipants replaces the participant list.
func WithEventParticipants(ids ...string) EventOption {
	return func(f *EventFixture) {
		f.ParticipantIDs = append([]string(nil), ids...)
	}
}

// WithEventCancelled marks the fixture cancelled.
func WithEventCancelled() EventOption {
	return func(f *EventFixture) {
		f.Status = application.EventStatusCancelled
	}
}

// Application returns the fixture as an application.Event value.
func (f EventFixture) Application() application.Event {
	event := application.Event{
		ID:             f.ID,
		Title:          f.Title,
		Start:          f.Start,
		End:            f.End,
		OwnerID:        f.OwnerID,
		Status:         f.Status,
		ParticipantIDs: append([]string(nil), f.ParticipantIDs...),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
	if f.Status == application.EventStatusCancelled {
		cancelledAt := f.UpdatedAt
		event.CancelledAt = &cancelledAt
		event.CancelledBy = f.OwnerID
	}
	return event
}

// Persistence returns the fixture as a persistence.Event value.
func (f EventFixture) Persistence() persistence.Event {
	event := f.Application()
	return persistence.Event{
		ID:             event.ID,
		Title:          event.Title,
		Start:          event.Start,
		End:            event.End,
		OwnerID:        event.OwnerID,
		Status:         string(event.Status),
		ParticipantIDs: event.ParticipantIDs,
		CancelledAt:    event.CancelledAt,
		CancelledBy:    event.CancelledBy,
		CreatedAt:      event.CreatedAt,
		UpdatedAt:      event.UpdatedAt,
	}
}

// Input returns the fixture as an application.EventInput.
func (f EventFixture) Input() application.EventInput {
	return application.EventInput{
		Title:          f.Title,
		Start:          f.Start,
		End:            f.End,
		ParticipantIDs: append([]string(nil), f.ParticipantIDs...),
	}
}
