package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/event-scheduler/internal/application"
)

const maxRequestBody = 1 << 20

var (
	errBadRequestBody      = errors.New("Invalid request body")
	errMissingSessionToken = errors.New("Authentication required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusCode(status), Message: message})
}

// handleServiceError maps application errors onto statuses and user facing messages.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status, body := describeError(err)
	if status >= http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}
	r.writeJSON(ctx, w, status, body)
}

func describeError(err error) (int, errorResponse) {
	code := strings.ToUpper(application.ErrorKind(err))

	var (
		forbiddenErr *application.ForbiddenError
		conflictErr  *application.ConflictError
		duplicateErr *application.DuplicateError
		validation   *application.ValidationError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, errorResponse{ErrorCode: code, Message: "Validation failed", Errors: validation.FieldErrors}
	case errors.As(err, &forbiddenErr):
		message := forbiddenErr.Reason
		if message == "" {
			message = "Insufficient permissions"
		}
		return http.StatusForbidden, errorResponse{ErrorCode: code, Message: message}
	case errors.Is(err, application.ErrForbidden):
		return http.StatusForbidden, errorResponse{ErrorCode: code, Message: "Insufficient permissions"}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{ErrorCode: code, Message: "Resource not found"}
	case errors.As(err, &conflictErr):
		return http.StatusConflict, errorResponse{ErrorCode: code, Message: conflictErr.Message()}
	case errors.Is(err, application.ErrInvalidState):
		return http.StatusConflict, errorResponse{ErrorCode: code, Message: "Cancelled events cannot be changed"}
	case errors.Is(err, application.ErrAlreadyCancelled):
		return http.StatusConflict, errorResponse{ErrorCode: code, Message: "Event already cancelled"}
	case errors.Is(err, application.ErrAlreadyActivated):
		return http.StatusConflict, errorResponse{ErrorCode: code, Message: "Account already activated"}
	case errors.As(err, &duplicateErr):
		return http.StatusConflict, errorResponse{ErrorCode: code, Message: duplicateErr.Message()}
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{ErrorCode: code, Message: "Already registered"}
	case errors.Is(err, application.ErrExpiredClaim):
		return http.StatusBadRequest, errorResponse{ErrorCode: code, Message: "Invite link expired"}
	case errors.Is(err, application.ErrInvalidClaim):
		return http.StatusBadRequest, errorResponse{ErrorCode: code, Message: "Invalid invite link"}
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{ErrorCode: code, Message: "Invalid credentials"}
	case errors.Is(err, application.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{ErrorCode: code, Message: "Authentication required"}
	}
	return http.StatusInternalServerError, errorResponse{ErrorCode: "INTERNAL", Message: "Internal server error"}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// decodeJSON reads a bounded JSON body into dst. An empty body is an error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty request body")
		}
		return err
	}
	return nil
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
