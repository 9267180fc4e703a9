package http

import (
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Events     *EventHandler
	Health     *HealthHandler
	Sessions   SessionValidator
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

// NewRouter registers the API routes. Routes behind a session are only
// mounted when cfg.Sessions is set.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		return RequireSession(cfg.Sessions, cfg.Logger)(h)
	}

	if cfg.Health != nil {
		mux.HandleFunc("GET /healthz", cfg.Health.Check)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /sessions", cfg.Auth.CreateSession)
		mux.HandleFunc("POST /users/login", cfg.Auth.CreateSession)
	}

	if cfg.Users != nil {
		mux.HandleFunc("POST /users/register", cfg.Users.Register)
		mux.HandleFunc("POST /users/register-from-invite", cfg.Users.RegisterFromInvite)

		if cfg.Sessions != nil {
			mux.Handle("GET /users/me", protect(cfg.Users.Me))
			mux.Handle("GET /users", protect(cfg.Users.List))
			mux.Handle("POST /users/invite", protect(cfg.Users.Invite))
			mux.Handle("POST /users/invite-user", protect(cfg.Users.Invite))
			mux.Handle("PUT /users/{id}/permissions", protect(cfg.Users.UpdatePermissions))
		}
	}

	if cfg.Events != nil && cfg.Sessions != nil {
		mux.Handle("GET /events", protect(cfg.Events.List))
		mux.Handle("POST /events", protect(cfg.Events.Create))
		mux.Handle("PUT /events/{id}", protect(cfg.Events.Update))
		mux.Handle("POST /events/{id}/cancel", protect(cfg.Events.Cancel))
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
