package persistence

import "context"

// UserRepository exposes user rows with their roles loaded.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUsers(ctx context.Context, ids []string) ([]User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByMobile(ctx context.Context, mobile string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// RoleRepository resolves roles and their permission keys.
type RoleRepository interface {
	GetRoleByName(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
}

// EventRepository stores events and participants.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	// HasOverlappingEvent only considers active events.
	HasOverlappingEvent(ctx context.Context, query OverlapQuery) (bool, error)
}

// Repositories groups repositories bound to one transaction.
type Repositories struct {
	Users  UserRepository
	Roles  RoleRepository
	Events EventRepository
}

// Store opens write transactions. fn's work is committed only when it returns nil.
type Store interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}
