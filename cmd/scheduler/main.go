package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/event-scheduler/internal/application"
	"github.com/example/event-scheduler/internal/claims"
	"github.com/example/event-scheduler/internal/config"
	httptransport "github.com/example/event-scheduler/internal/http"
	"github.com/example/event-scheduler/internal/logging"
	"github.com/example/event-scheduler/internal/notify"
	"github.com/example/event-scheduler/internal/persistence/sqlite"
	"github.com/example/event-scheduler/internal/repository"
	"github.com/example/event-scheduler/internal/scheduler"
)

const (
	claimsIssuer         = "event-scheduler"
	notificationTimeout  = 30 * time.Second
	shutdownTimeout      = 10 * time.Second
	notificationDrainTTL = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "info").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	svc, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           svc.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduler API listening", "addr", server.Addr, "conflict_policy", cfg.ConflictPolicy)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// app owns everything main wires together.
type app struct {
	handler  http.Handler
	storage  *sqlite.Storage
	notifier *notify.Async
	logger   *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	storage, err := sqlite.OpenConfig(sqlite.DefaultConfig(cfg.SQLitePath), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	policy, err := scheduler.PolicyByName(cfg.ConflictPolicy)
	if err != nil {
		storage.Close()
		return nil, err
	}

	signer, err := claims.NewSigner(cfg.SessionSecret, claimsIssuer, time.Now)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to create claims signer: %w", err)
	}

	delivery, err := newNotifier(cfg.SMTP, logger)
	if err != nil {
		storage.Close()
		return nil, err
	}
	notifier := notify.NewAsync(delivery, notificationTimeout, logger)

	store := repository.NewTransactor(storage)
	hasher := application.NewArgon2idHasher()
	now := time.Now

	authService := application.NewAuthServiceWithLogger(store, hasher, signer, now, cfg.SessionTTL, logger)
	userService := application.NewUserServiceWithLogger(store, now, logger)
	eventService := application.NewEventServiceWithLogger(store, scheduler.NewDetector(policy), notifier, uuid.NewString, now, logger)
	invitationService := application.NewInvitationServiceWithLogger(store, hasher, signer, notifier, uuid.NewString, now, application.InvitationSettings{
		TTL:     cfg.InviteTTL,
		LinkURL: cfg.InviteURL,
	}, logger)

	if cfg.Bootstrap.Enabled() {
		if _, _, err := invitationService.EnsureSuperAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
			storage.Close()
			return nil, fmt.Errorf("failed to bootstrap super admin: %w", err)
		}
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:     httptransport.NewAuthHandler(authService, logger),
		Users:    httptransport.NewUserHandler(userService, invitationService, logger),
		Events:   httptransport.NewEventHandler(eventService, logger),
		Health:   httptransport.NewHealthHandler(storage, logger),
		Sessions: authService,
		Logger:   logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})

	return &app{handler: router, storage: storage, notifier: notifier, logger: logger}, nil
}

// Close drains pending notifications and closes the store.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), notificationDrainTTL)
	defer cancel()
	if err := a.notifier.Wait(ctx); err != nil {
		a.logger.Warn("notifications still pending at shutdown", "error", err)
	}
	if err := a.storage.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

// newNotifier sends mail when a relay is configured and logs otherwise.
func newNotifier(cfg config.SMTP, logger *slog.Logger) (application.Notifier, error) {
	if !cfg.Enabled() {
		logger.Info("smtp not configured, notifications are logged only")
		return notify.NewLogNotifier(logger), nil
	}
	mailer, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure smtp: %w", err)
	}
	return mailer, nil
}
