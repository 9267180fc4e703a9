package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/event-scheduler/internal/access"
	"github.com/example/event-scheduler/internal/claims"
	"github.com/example/event-scheduler/internal/scheduler"
)

var testEpoch = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testEpoch }

func at(hour, minute int) time.Time {
	return time.Date(testEpoch.Year(), testEpoch.Month(), testEpoch.Day(), hour, minute, 0, 0, time.UTC)
}

// memoryStore is a serialized Transactor that rolls back on error.
type memoryStore struct {
	mu     sync.Mutex
	users  map[string]User
	roles  map[string]Role
	events map[string]Event
	txErr  error
	txs    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users: map[string]User{},
		roles: map[string]Role{
			access.RoleSuperAdmin: {ID: "role-super-admin", Name: access.RoleSuperAdmin, Permissions: []string{
				access.PermissionInviteUser, access.PermissionUpdatePermissions, access.PermissionCreateEvent,
			}},
			access.RoleAdmin: {ID: "role-admin", Name: access.RoleAdmin, Permissions: []string{
				access.PermissionInviteUser, access.PermissionCreateEvent,
			}},
			access.RoleUser: {ID: "role-user", Name: access.RoleUser, Permissions: []string{
				access.PermissionCreateEvent,
			}},
		},
		events: map[string]Event{},
	}
}

func (m *memoryStore) role(name string) *Role {
	role, ok := m.roles[name]
	if !ok {
		return nil
	}
	return &role
}

func (m *memoryStore) addUser(id, name, email, roleName string) User {
	user := User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: "hashed:secret",
		Role:         m.role(roleName),
		CreatedAt:    testEpoch,
		UpdatedAt:    testEpoch,
	}
	m.users[id] = user
	return user
}

func (m *memoryStore) addEvent(event Event) Event {
	if event.Status == "" {
		event.Status = EventStatusActive
	}
	m.events[event.ID] = event
	return event
}

func (m *memoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs++
	if m.txErr != nil {
		return m.txErr
	}

	users := make(map[string]User, len(m.users))
	for k, v := range m.users {
		users[k] = v
	}
	events := make(map[string]Event, len(m.events))
	for k, v := range m.events {
		events[k] = v
	}

	repos := Repositories{
		Users:  memoryUsers{m},
		Roles:  memoryRoles{m},
		Events: memoryEvents{m},
	}
	if err := fn(ctx, repos); err != nil {
		m.users = users
		m.events = events
		return err
	}
	return nil
}

type memoryUsers struct{ m *memoryStore }

func (r memoryUsers) GetUser(_ context.Context, id string) (User, error) {
	user, ok := r.m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r memoryUsers) FindUsers(_ context.Context, ids []string) ([]User, error) {
	var found []User
	for _, id := range ids {
		if user, ok := r.m.users[id]; ok {
			found = append(found, user)
		}
	}
	return found, nil
}

func (r memoryUsers) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, user := range r.m.users {
		if email != "" && user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (r memoryUsers) GetUserByMobile(_ context.Context, mobile string) (User, error) {
	for _, user := range r.m.users {
		if mobile != "" && user.Mobile == mobile {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (r memoryUsers) ListUsers(context.Context) ([]User, error) {
	users := make([]User, 0, len(r.m.users))
	for _, user := range r.m.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r memoryUsers) CreateUser(_ context.Context, user User) (User, error) {
	if user.ID == "" {
		return User{}, errors.New("missing id")
	}
	if _, exists := r.m.users[user.ID]; exists {
		return User{}, ErrAlreadyExists
	}
	for _, other := range r.m.users {
		if (user.Email != "" && other.Email == user.Email) || (user.Mobile != "" && other.Mobile == user.Mobile) {
			return User{}, ErrAlreadyExists
		}
	}
	r.m.users[user.ID] = user
	return user, nil
}

func (r memoryUsers) UpdateUser(_ context.Context, user User) (User, error) {
	if _, ok := r.m.users[user.ID]; !ok {
		return User{}, ErrNotFound
	}
	r.m.users[user.ID] = user
	return user, nil
}

type memoryRoles struct{ m *memoryStore }

func (r memoryRoles) GetRoleByName(_ context.Context, name string) (Role, error) {
	role, ok := r.m.roles[name]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

type memoryEvents struct{ m *memoryStore }

func (r memoryEvents) HasOverlappingEvent(_ context.Context, query scheduler.OverlapQuery) (bool, error) {
	for _, event := range r.m.events {
		if event.Status != EventStatusActive || event.ID == query.ExcludeEventID {
			continue
		}
		if !involves(event, query.UserID) {
			continue
		}
		if event.Window().Overlaps(query.Window) {
			return true, nil
		}
	}
	return false, nil
}

func (r memoryEvents) GetEvent(_ context.Context, id string) (Event, error) {
	event, ok := r.m.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return event, nil
}

func (r memoryEvents) CreateEvent(_ context.Context, event Event) (Event, error) {
	if event.ID == "" {
		return Event{}, errors.New("missing id")
	}
	event.ParticipantIDs = append([]string(nil), event.ParticipantIDs...)
	r.m.events[event.ID] = event
	return event, nil
}

func (r memoryEvents) UpdateEvent(_ context.Context, event Event) (Event, error) {
	if _, ok := r.m.events[event.ID]; !ok {
		return Event{}, ErrNotFound
	}
	event.ParticipantIDs = append([]string(nil), event.ParticipantIDs...)
	r.m.events[event.ID] = event
	return event, nil
}

func (r memoryEvents) ListEventsForUser(_ context.Context, userID string, status EventStatus) ([]Event, error) {
	var events []Event
	for _, event := range r.m.events {
		if !involves(event, userID) {
			continue
		}
		if status != "" && event.Status != status {
			continue
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

func involves(event Event, userID string) bool {
	if event.OwnerID == userID {
		return true
	}
	for _, id := range event.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (plainHasher) Verify(plain, hash string) bool { return hash != "" && hash == "hashed:"+plain }

type notifierStub struct {
	mu            sync.Mutex
	invites       []string
	cancellations []CancellationNotice
	err           error
}

func (n *notifierStub) SendInvite(_ context.Context, email, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invites = append(n.invites, email+" "+link)
	return n.err
}

func (n *notifierStub) SendCancellation(_ context.Context, notice CancellationNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancellations = append(n.cancellations, notice)
	return n.err
}

func newTestSigner(now func() time.Time) *claims.Signer {
	signer, err := claims.NewSigner("application-test-secret", "event-scheduler", now)
	if err != nil {
		panic(err)
	}
	return signer
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	next := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("%s-%d", prefix, next)
	}
}

func fieldError(err error, field string) string {
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		return ""
	}
	return vErr.FieldErrors[field]
}

func forbiddenReason(err error) string {
	var fErr *ForbiddenError
	if !errors.As(err, &fErr) {
		return ""
	}
	return fErr.Reason
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
