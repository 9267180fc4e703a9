package application

import (
	"context"
	"time"

	"github.com/example/event-scheduler/internal/claims"
	"github.com/example/event-scheduler/internal/scheduler"
)

// UserRepository exposes the identity store's user records. Lookups return
// ErrNotFound when nothing matches.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (User, error)
	FindUsers(ctx context.Context, ids []string) ([]User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByMobile(ctx context.Context, mobile string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
}

// RoleRepository resolves roles by name.
type RoleRepository interface {
	GetRoleByName(ctx context.Context, name string) (Role, error)
}

// EventRepository stores events and answers overlap queries. Only active
// events take part in overlap checks.
type EventRepository interface {
	scheduler.OverlapFinder
	GetEvent(ctx context.Context, id string) (Event, error)
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	ListEventsForUser(ctx context.Context, userID string, status EventStatus) ([]Event, error)
}

// Repositories groups the stores bound to a single transaction.
type Repositories struct {
	Users  UserRepository
	Roles  RoleRepository
	Events EventRepository
}

// Transactor runs fn inside one serializable transaction. Nothing fn writes is
// visible to other transactions unless fn returns nil.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// PasswordHasher is the credential capability.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// ClaimsIssuer is the signed-claims capability.
type ClaimsIssuer interface {
	Issue(c claims.Claims, ttl time.Duration) (string, error)
	Verify(token, purpose string) (claims.Claims, error)
}

// Notifier delivers outbound messages. Implementations are best effort and
// callers never fail an operation because a notification failed.
type Notifier interface {
	SendInvite(ctx context.Context, email, link string) error
	SendCancellation(ctx context.Context, notice CancellationNotice) error
}
