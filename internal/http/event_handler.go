package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/event-scheduler/internal/application"
)

var errInvalidEventID = errors.New("Event id is required")

// Timestamps without an offset are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

type eventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	CancelEvent(ctx context.Context, params application.CancelEventParams) (application.Event, error)
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, error)
}

type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	event, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "event creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toEventDTO(event))
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := strings.TrimSpace(r.PathValue("id"))
	if eventID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "event_id", eventID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	event, err := h.service.UpdateEvent(r.Context(), application.UpdateEventParams{
		Principal: principal,
		EventID:   eventID,
		Input:     input,
	})
	if err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "event_id", eventID).WarnContext(r.Context(), "event update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := strings.TrimSpace(r.PathValue("id"))
	if eventID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	// The reason is optional, so an empty body is fine.
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "event_id", eventID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode cancellation", "error", err)
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}

	event, err := h.service.CancelEvent(r.Context(), application.CancelEventParams{
		Principal: principal,
		EventID:   eventID,
		Reason:    req.Reason,
	})
	if err != nil {
		h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "event_id", eventID).WarnContext(r.Context(), "event cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	status := application.EventStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))

	events, err := h.service.ListEvents(r.Context(), application.ListEventsParams{
		Principal: principal,
		Status:    status,
	})
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID).WarnContext(r.Context(), "event listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTOs(events))
}

type eventRequest struct {
	Title          string   `json:"title"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	ParticipantIDs []string `json:"participant_ids"`
	Participants   []string `json:"participants"`
}

func (r eventRequest) toInput() (application.EventInput, error) {
	invalid := &application.ValidationError{}
	start, ok := parseTime(r.StartTime)
	if !ok {
		invalid.FieldErrors = map[string]string{"start_time": "start time must be an RFC 3339 timestamp"}
	}
	end, ok := parseTime(r.EndTime)
	if !ok {
		if invalid.FieldErrors == nil {
			invalid.FieldErrors = map[string]string{}
		}
		invalid.FieldErrors["end_time"] = "end time must be an RFC 3339 timestamp"
	}
	if invalid.HasErrors() {
		return application.EventInput{}, invalid
	}

	participants := r.ParticipantIDs
	if len(participants) == 0 {
		participants = r.Participants
	}
	return application.EventInput{
		Title:          r.Title,
		Start:          start,
		End:            end,
		ParticipantIDs: append([]string(nil), participants...),
	}, nil
}

// parseTime reports false only for a non-empty value that matches no layout.
func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, true
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type eventDTO struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	StartTime          string   `json:"start_time"`
	EndTime            string   `json:"end_time"`
	OwnerID            string   `json:"owner_id"`
	Status             string   `json:"status"`
	Participants       []string `json:"participants"`
	CancellationReason string   `json:"cancellation_reason,omitempty"`
	CancelledBy        string   `json:"cancelled_by,omitempty"`
	CancelledAt        string   `json:"cancelled_at,omitempty"`
}

func toEventDTO(event application.Event) eventDTO {
	participants := event.ParticipantIDs
	if participants == nil {
		participants = []string{}
	}
	dto := eventDTO{
		ID:                 event.ID,
		Title:              event.Title,
		StartTime:          event.Start.UTC().Format(time.RFC3339),
		EndTime:            event.End.UTC().Format(time.RFC3339),
		OwnerID:            event.OwnerID,
		Status:             string(event.Status),
		Participants:       participants,
		CancellationReason: event.CancellationReason,
		CancelledBy:        event.CancelledBy,
	}
	if event.CancelledAt != nil {
		dto.CancelledAt = event.CancelledAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toEventDTOs(events []application.Event) []eventDTO {
	result := make([]eventDTO, 0, len(events))
	for _, event := range events {
		result = append(result, toEventDTO(event))
	}
	return result
}
