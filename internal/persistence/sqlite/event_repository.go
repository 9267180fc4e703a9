package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/event-scheduler/internal/persistence"
)

const eventColumns = `
	id, title, start_time, end_time, owner_id, status,
	cancelled_at, cancelled_by, cancellation_reason, created_at, updated_at
FROM events`

// EventRepository implements persistence.EventRepository using SQLite
type EventRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

var _ persistence.EventRepository = (*EventRepository)(nil)

// NewEventRepository creates a new SQLite event repository
func NewEventRepository(q Queryer) *EventRepository {
	return &EventRepository{helper: NewQueryHelper(q), mapper: NewErrorMapper()}
}

// CreateEvent inserts the event row and its participants.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO events (
			id, title, start_time, end_time, owner_id, status,
			cancelled_at, cancelled_by, cancellation_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Title,
		formatTime(event.Start),
		formatTime(event.End),
		event.OwnerID,
		event.Status,
		nullableTime(event.CancelledAt),
		nullableString(event.CancelledBy),
		nullableString(event.CancellationReason),
		formatTime(event.CreatedAt),
		formatTime(event.UpdatedAt),
	)
	if err != nil {
		return err
	}
	return r.insertParticipants(ctx, event.ID, event.ParticipantIDs)
}

// UpdateEvent overwrites the event row and replaces its participant set.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE events
		SET title = ?, start_time = ?, end_time = ?, owner_id = ?, status = ?,
			cancelled_at = ?, cancelled_by = ?, cancellation_reason = ?, updated_at = ?
		WHERE id = ?`,
		event.Title,
		formatTime(event.Start),
		formatTime(event.End),
		event.OwnerID,
		event.Status,
		nullableTime(event.CancelledAt),
		nullableString(event.CancelledBy),
		nullableString(event.CancellationReason),
		formatTime(event.UpdatedAt),
		event.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return r.mapper.MapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	if _, err := r.helper.Exec(ctx, `DELETE FROM event_participants WHERE event_id = ?`, event.ID); err != nil {
		return err
	}
	return r.insertParticipants(ctx, event.ID, event.ParticipantIDs)
}

// GetEvent retrieves an event with its participants.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	events, err := r.list(ctx, "WHERE id = ?", id)
	if err != nil {
		return persistence.Event{}, err
	}
	if len(events) == 0 {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return events[0], nil
}

// ListEvents returns events the user owns or participates in, earliest first.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		clauses = append(clauses, `(owner_id = ? OR EXISTS (
			SELECT 1 FROM event_participants ep WHERE ep.event_id = events.id AND ep.user_id = ?))`)
		args = append(args, filter.UserID, filter.UserID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	return r.list(ctx, where, args...)
}

// HasOverlappingEvent reports whether the user owns or attends an active
// event intersecting [Start, End). Touching boundaries do not overlap.
func (r *EventRepository) HasOverlappingEvent(ctx context.Context, query persistence.OverlapQuery) (bool, error) {
	if query.UserID == "" || !query.Start.Before(query.End) {
		return false, nil
	}

	var exists int
	err := r.helper.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM events
			WHERE status = ?
				AND (owner_id = ? OR EXISTS (
					SELECT 1 FROM event_participants ep WHERE ep.event_id = events.id AND ep.user_id = ?))
				AND id != ?
				AND start_time < ?
				AND end_time > ?
		)`,
		persistence.EventStatusActive,
		query.UserID,
		query.UserID,
		query.ExcludeEventID,
		formatTime(query.End),
		formatTime(query.Start),
	).Scan(&exists)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return exists == 1, nil
}

func (r *EventRepository) insertParticipants(ctx context.Context, eventID string, userIDs []string) error {
	for _, userID := range userIDs {
		if _, err := r.helper.Exec(ctx,
			`INSERT OR IGNORE INTO event_participants (event_id, user_id) VALUES (?, ?)`,
			eventID, userID,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *EventRepository) list(ctx context.Context, where string, args ...any) ([]persistence.Event, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+eventColumns+" "+where+" ORDER BY start_time, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		events []persistence.Event
		ids    []string
	)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
		ids = append(ids, event.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	rows.Close()

	participants, err := r.participantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].ParticipantIDs = participants[events[i].ID]
	}
	return events, nil
}

func (r *EventRepository) participantsFor(ctx context.Context, eventIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(eventIDs))
	if len(eventIDs) == 0 {
		return result, nil
	}

	// rowid preserves insertion order, which keeps the caller's participant order.
	rows, err := r.helper.Query(ctx, `
		SELECT event_id, user_id FROM event_participants
		WHERE event_id IN (`+placeholders(len(eventIDs))+`)
		ORDER BY event_id, rowid`,
		stringArgs(eventIDs)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var eventID, userID string
		if err := rows.Scan(&eventID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		result[eventID] = append(result[eventID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return result, nil
}

func scanEvent(rows *sql.Rows) (persistence.Event, error) {
	var (
		event                    persistence.Event
		start, end               string
		createdAt, updatedAt     string
		cancelledAt, cancelledBy sql.NullString
		cancellationReason       sql.NullString
	)
	if err := rows.Scan(
		&event.ID,
		&event.Title,
		&start,
		&end,
		&event.OwnerID,
		&event.Status,
		&cancelledAt,
		&cancelledBy,
		&cancellationReason,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to scan event: %w", err)
	}

	var err error
	if event.Start, err = parseTime(start); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = parseTime(end); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Event{}, err
	}
	if cancelledAt.Valid {
		at, err := parseTime(cancelledAt.String)
		if err != nil {
			return persistence.Event{}, err
		}
		event.CancelledAt = &at
	}
	event.CancelledBy = cancelledBy.String
	event.CancellationReason = cancellationReason.String
	return event, nil
}

func validateEvent(event persistence.Event) error {
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.OwnerID) == "" {
		return persistence.ErrConstraintViolation
	}
	if !event.Start.Before(event.End) {
		return fmt.Errorf("%w: start must be before end", persistence.ErrConstraintViolation)
	}
	switch event.Status {
	case persistence.EventStatusActive, persistence.EventStatusCancelled:
	default:
		return fmt.Errorf("%w: unknown status %q", persistence.ErrConstraintViolation, event.Status)
	}
	return nil
}
