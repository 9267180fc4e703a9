package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/event-scheduler/internal/access"
	"github.com/example/event-scheduler/internal/scheduler"
)

const reasonNotEventManager = "Only the owner or an administrator can change this event"

// EventService orchestrates event creation, update and cancellation. Conflict
// checks and the write that follows them share one transaction.
type EventService struct {
	store       Transactor
	detector    *scheduler.Detector
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(store Transactor, detector *scheduler.Detector, notifier Notifier, idGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(store, detector, notifier, idGenerator, now, nil)
}

// NewEventServiceWithLogger wires dependencies for event operations with a specified logger.
func NewEventServiceWithLogger(store Transactor, detector *scheduler.Detector, notifier Notifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if detector == nil {
		detector = scheduler.NewDetector(nil)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		store:       store,
		detector:    detector,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent books a new active event owned by the principal.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("event store not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"event_id", event.ID,
			"participant_count", len(event.ParticipantIDs),
		).InfoContext(ctx, "event created")
	}()

	input, vErr := normalizeEventInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		owner, err := repos.Users.GetUser(ctx, params.Principal.UserID)
		if err != nil {
			return err
		}
		if !access.HasPermission(owner.Subject(), access.PermissionCreateEvent) {
			return forbidden(access.ReasonInsufficientPermissions)
		}

		participants, err := resolveUsers(ctx, repos.Users, input.ParticipantIDs)
		if err != nil {
			return err
		}

		window := scheduler.Window{Start: input.Start, End: input.End}
		if err := s.ensureAvailable(ctx, repos.Events, owner, participants, window, ""); err != nil {
			return err
		}

		now := s.now().UTC()
		created, err := repos.Events.CreateEvent(ctx, Event{
			ID:             s.idGenerator(),
			Title:          input.Title,
			Start:          input.Start,
			End:            input.End,
			OwnerID:        owner.ID,
			Status:         EventStatusActive,
			ParticipantIDs: userIDs(participants),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return err
		}
		event = created
		return nil
	})
	if err != nil {
		event = Event{}
	}
	return
}

// UpdateEvent replaces the title, window and participants of an active event.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("event store not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("participant_count", len(event.ParticipantIDs)).InfoContext(ctx, "event updated")
	}()

	if strings.TrimSpace(params.EventID) == "" {
		err = ErrNotFound
		return
	}
	input, vErr := normalizeEventInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		current, err := repos.Events.GetEvent(ctx, params.EventID)
		if err != nil {
			return err
		}
		if current.Status == EventStatusCancelled {
			return &InvalidStateError{State: string(EventStatusCancelled)}
		}

		actor, err := repos.Users.GetUser(ctx, params.Principal.UserID)
		if err != nil {
			return err
		}
		if !canManageEvent(actor, current) {
			return forbidden(reasonNotEventManager)
		}

		owner := actor
		if current.OwnerID != actor.ID {
			owner, err = repos.Users.GetUser(ctx, current.OwnerID)
			if err != nil {
				return err
			}
		}

		participants, err := resolveUsers(ctx, repos.Users, input.ParticipantIDs)
		if err != nil {
			return err
		}

		window := scheduler.Window{Start: input.Start, End: input.End}
		if err := s.ensureAvailable(ctx, repos.Events, owner, participants, window, current.ID); err != nil {
			return err
		}

		current.Title = input.Title
		current.Start = input.Start
		current.End = input.End
		current.ParticipantIDs = userIDs(participants)
		current.UpdatedAt = s.now().UTC()

		updated, err := repos.Events.UpdateEvent(ctx, current)
		if err != nil {
			return err
		}
		event = updated
		return nil
	})
	if err != nil {
		event = Event{}
	}
	return
}

// CancelEvent moves an active event to cancelled and notifies everyone on it.
func (s *EventService) CancelEvent(ctx context.Context, params CancelEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("event store not configured")
		return
	}

	logger := s.loggerWith(ctx, "CancelEvent",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event cancellation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event cancelled")
	}()

	if strings.TrimSpace(params.EventID) == "" {
		err = ErrNotFound
		return
	}

	var notice CancellationNotice
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		current, err := repos.Events.GetEvent(ctx, params.EventID)
		if err != nil {
			return err
		}
		if current.Status == EventStatusCancelled {
			return ErrAlreadyCancelled
		}

		actor, err := repos.Users.GetUser(ctx, params.Principal.UserID)
		if err != nil {
			return err
		}
		if !canManageEvent(actor, current) {
			return forbidden(reasonNotEventManager)
		}

		now := s.now().UTC()
		current.Status = EventStatusCancelled
		current.CancelledAt = &now
		current.CancelledBy = actor.ID
		current.CancellationReason = strings.TrimSpace(params.Reason)
		current.UpdatedAt = now

		updated, err := repos.Events.UpdateEvent(ctx, current)
		if err != nil {
			return err
		}

		recipients, err := resolveUsers(ctx, repos.Users, append([]string{updated.OwnerID}, updated.ParticipantIDs...))
		if err != nil {
			return err
		}
		notice = CancellationNotice{
			Recipients:      userEmails(recipients),
			Title:           updated.Title,
			Start:           updated.Start,
			End:             updated.End,
			CancelledByName: displayName(actor),
		}
		event = updated
		return nil
	})
	if err != nil {
		event = Event{}
		return
	}

	s.notifyCancellation(ctx, logger, notice)
	return
}

// ListEvents returns the events the principal owns or participates in.
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("event store not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListEvents",
		"principal_id", params.Principal.UserID,
		"status", string(params.Status),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "event listing failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).InfoContext(ctx, "events listed")
	}()

	if params.Status != "" && !params.Status.Valid() {
		err = validationFailure("status", "status must be active or cancelled")
		return
	}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Users.GetUser(ctx, params.Principal.UserID); err != nil {
			return err
		}
		listed, err := repos.Events.ListEventsForUser(ctx, params.Principal.UserID, params.Status)
		if err != nil {
			return err
		}
		events = listed
		return nil
	})
	if err != nil {
		events = nil
	}
	return
}

// ensureAvailable checks the owner, then each participant in order, and
// reports the first eligible party with an overlapping active event.
func (s *EventService) ensureAvailable(ctx context.Context, events EventRepository, owner User, participants []User, window scheduler.Window, excludeEventID string) error {
	busy, err := s.detector.Busy(ctx, events, owner.party(), window, excludeEventID)
	if err != nil {
		return err
	}
	if busy {
		return &ConflictError{Party: "owner"}
	}

	for _, participant := range participants {
		busy, err := s.detector.Busy(ctx, events, participant.party(), window, excludeEventID)
		if err != nil {
			return err
		}
		if busy {
			return &ConflictError{Party: displayName(participant)}
		}
	}
	return nil
}

func (s *EventService) notifyCancellation(ctx context.Context, logger *slog.Logger, notice CancellationNotice) {
	if s.notifier == nil || len(notice.Recipients) == 0 {
		return
	}
	if err := s.notifier.SendCancellation(ctx, notice); err != nil {
		logger.WarnContext(ctx, "cancellation notice not delivered", "error", err, "recipient_count", len(notice.Recipients))
	}
}

func canManageEvent(actor User, event Event) bool {
	return actor.ID == event.OwnerID || access.IsPrivileged(actor.RoleName())
}

func normalizeEventInput(input EventInput) (EventInput, *ValidationError) {
	vErr := &ValidationError{}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		vErr.add("title", "title is required")
	}
	if input.Start.IsZero() {
		vErr.add("start_time", "start time is required")
	}
	if input.End.IsZero() {
		vErr.add("end_time", "end time is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.Start.Before(input.End) {
		vErr.add("end_time", "start time must be before end time")
	}

	return EventInput{
		Title:          title,
		Start:          input.Start.UTC(),
		End:            input.End.UTC(),
		ParticipantIDs: uniqueStrings(input.ParticipantIDs),
	}, vErr
}

// resolveUsers loads ids in the given order, silently dropping unknown ones.
func resolveUsers(ctx context.Context, users UserRepository, ids []string) ([]User, error) {
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := users.FindUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]User, len(found))
	for _, user := range found {
		byID[user.ID] = user
	}
	resolved := make([]User, 0, len(found))
	for _, id := range ids {
		if user, ok := byID[id]; ok {
			resolved = append(resolved, user)
		}
	}
	return resolved, nil
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func userIDs(users []User) []string {
	ids := make([]string, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	return ids
}

func userEmails(users []User) []string {
	emails := make([]string, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for _, user := range users {
		if user.Email == "" {
			continue
		}
		if _, ok := seen[user.Email]; ok {
			continue
		}
		seen[user.Email] = struct{}{}
		emails = append(emails, user.Email)
	}
	return emails
}

func displayName(user User) string {
	switch {
	case strings.TrimSpace(user.Name) != "":
		return user.Name
	case user.Email != "":
		return user.Email
	case user.Mobile != "":
		return user.Mobile
	default:
		return user.ID
	}
}
