// Package repository adapts the persistence layer to the ports the
// application services depend on, translating models and storage errors.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/event-scheduler/internal/application"
	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/scheduler"
)

// Transactor implements application.Transactor on top of a persistence.Store.
type Transactor struct {
	store persistence.Store
}

var _ application.Transactor = (*Transactor)(nil)

// NewTransactor wraps store.
func NewTransactor(store persistence.Store) *Transactor {
	return &Transactor{store: store}
}

// WithinTransaction runs fn with application repositories bound to one store transaction.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos application.Repositories) error) error {
	if t == nil || t.store == nil {
		return fmt.Errorf("repository: store is not configured")
	}
	err := t.store.WithinTransaction(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		return fn(ctx, application.Repositories{
			Users:  newUserRepositoryAdapter(repos.Users),
			Roles:  newRoleRepositoryAdapter(repos.Roles),
			Events: newEventRepositoryAdapter(repos.Events),
		})
	})
	return mapError(err)
}

// mapError translates persistence errors into application errors. Anything
// else, including application errors returned by services, passes through.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var dup *persistence.DuplicateError
	switch {
	case errors.As(err, &dup):
		switch dup.Column {
		case "email", "mobile":
			return &application.DuplicateError{Field: dup.Column}
		}
		return fmt.Errorf("%w: %v", application.ErrAlreadyExists, err)
	case errors.Is(err, persistence.ErrNotFound):
		if errors.Is(err, application.ErrNotFound) {
			return err
		}
		return application.ErrNotFound
	}
	return err
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) FindUsers(ctx context.Context, ids []string) ([]application.User, error) {
	models, err := a.repo.GetUsers(ctx, ids)
	if err != nil {
		return nil, mapError(err)
	}
	return toApplicationUsers(models), nil
}

func (a *userRepositoryAdapter) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, mapError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserByMobile(ctx context.Context, mobile string) (application.User, error) {
	stored, err := a.repo.GetUserByMobile(ctx, mobile)
	if err != nil {
		return application.User{}, mapError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return toApplicationUsers(models), nil
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user)); err != nil {
		return application.User{}, mapError(err)
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user)); err != nil {
		return application.User{}, mapError(err)
	}
	return a.GetUser(ctx, user.ID)
}

type roleRepositoryAdapter struct {
	repo persistence.RoleRepository
}

func newRoleRepositoryAdapter(repo persistence.RoleRepository) *roleRepositoryAdapter {
	return &roleRepositoryAdapter{repo: repo}
}

func (a *roleRepositoryAdapter) GetRoleByName(ctx context.Context, name string) (application.Role, error) {
	role, err := a.repo.GetRoleByName(ctx, name)
	if err != nil {
		return application.Role{}, mapError(err)
	}
	return application.Role{ID: role.ID, Name: role.Name, Permissions: role.Permissions}, nil
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) HasOverlappingEvent(ctx context.Context, query scheduler.OverlapQuery) (bool, error) {
	busy, err := a.repo.HasOverlappingEvent(ctx, persistence.OverlapQuery{
		UserID:         query.UserID,
		Start:          query.Window.Start,
		End:            query.Window.End,
		ExcludeEventID: query.ExcludeEventID,
	})
	if err != nil {
		return false, mapError(err)
	}
	return busy, nil
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, mapError(err)
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.CreateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, mapError(err)
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, mapError(err)
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) ListEventsForUser(ctx context.Context, userID string, status application.EventStatus) ([]application.Event, error) {
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{UserID: userID, Status: string(status)})
	if err != nil {
		return nil, mapError(err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events, nil
}

func toApplicationUser(model persistence.User) application.User {
	user := application.User{
		ID:           model.ID,
		Name:         model.Name,
		Email:        model.Email,
		Mobile:       model.Mobile,
		PasswordHash: model.PasswordHash,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
	if model.Role != nil {
		user.Role = &application.Role{
			ID:          model.Role.ID,
			Name:        model.Role.Name,
			Permissions: append([]string(nil), model.Role.Permissions...),
		}
	}
	return user
}

func toApplicationUsers(models []persistence.User) []application.User {
	if len(models) == 0 {
		return nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users
}

func toPersistenceUser(user application.User) persistence.User {
	model := persistence.User{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Mobile:       user.Mobile,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	if user.Role != nil {
		model.RoleID = user.Role.ID
	}
	return model
}

func toApplicationEvent(model persistence.Event) application.Event {
	return application.Event{
		ID:                 model.ID,
		Title:              model.Title,
		Start:              model.Start,
		End:                model.End,
		OwnerID:            model.OwnerID,
		Status:             application.EventStatus(model.Status),
		ParticipantIDs:     append([]string(nil), model.ParticipantIDs...),
		CancelledAt:        model.CancelledAt,
		CancelledBy:        model.CancelledBy,
		CancellationReason: model.CancellationReason,
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:                 event.ID,
		Title:              event.Title,
		Start:              event.Start,
		End:                event.End,
		OwnerID:            event.OwnerID,
		Status:             string(event.Status),
		ParticipantIDs:     append([]string(nil), event.ParticipantIDs...),
		CancelledAt:        event.CancelledAt,
		CancelledBy:        event.CancelledBy,
		CancellationReason: event.CancellationReason,
		CreatedAt:          event.CreatedAt,
		UpdatedAt:          event.UpdatedAt,
	}
}
