package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/event-scheduler/internal/application"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("assigns a request id and logs the outcome", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		var fromContext *slog.Logger
		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromContext = LoggerFromContext(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

		id := rec.Header().Get(RequestIDHeader)
		if id == "" {
			t.Fatalf("expected request id header")
		}
		if fromContext == nil {
			t.Fatalf("expected request scoped logger in context")
		}
		out := buf.String()
		if !strings.Contains(out, `"request_id":"`+id+`"`) || !strings.Contains(out, `"status":418`) {
			t.Fatalf("unexpected log output %s", out)
		}
	})

	t.Run("keeps a caller supplied request id", func(t *testing.T) {
		t.Parallel()
		handler := RequestLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Fatalf("expected caller id, got %q", got)
		}
	})
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("stores the principal for downstream handlers", func(t *testing.T) {
		t.Parallel()
		var got application.Principal
		handler := RequireSession(stubAuthService{}, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = PrincipalFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: testToken})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got.UserID != "user-1" {
			t.Fatalf("expected principal from cookie token, got %+v", got)
		}
	})

	t.Run("rejects an invalid token without detail", func(t *testing.T) {
		t.Parallel()
		handler := RequireSession(stubAuthService{}, logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Errorf("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer forged")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Authentication required") {
			t.Fatalf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("store failures are internal errors", func(t *testing.T) {
		t.Parallel()
		validator := stubAuthService{validate: func(context.Context, string) (application.Principal, error) {
			return application.Principal{}, errors.New("database is locked")
		}}
		handler := RequireSession(validator, logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+testToken)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	handler := Recoverer(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
