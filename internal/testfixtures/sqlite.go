package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/event-scheduler/internal/application"
	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/persistence/sqlite"
	"github.com/example/event-scheduler/internal/repository"
)

// SQLiteHarness provides a migrated SQLite store for integration-style tests.
type SQLiteHarness struct {
	Storage *sqlite.Storage
	Store   *repository.Transactor

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens a migrated database in a temporary file. File
// databases allow several connections, so concurrent writers really contend.
// Close is registered with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()
	return newHarness(tb, sqlite.TempFileTestConfig(filepath.Join(tb.TempDir(), "scheduler.db")))
}

// NewInMemorySQLiteHarness opens a migrated single-connection in-memory database.
func NewInMemorySQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()
	return newHarness(tb, sqlite.InMemoryTestConfig())
}

func newHarness(tb testing.TB, cfg sqlite.Config) *SQLiteHarness {
	tb.Helper()

	storage, err := sqlite.OpenConfig(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage: storage,
		Store:   repository.NewTransactor(storage),
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUsers inserts users in one transaction.
func (h *SQLiteHarness) SeedUsers(tb testing.TB, users ...UserFixture) {
	tb.Helper()
	err := h.Storage.WithinTransaction(context.Background(), func(ctx context.Context, repos persistence.Repositories) error {
		for _, user := range users {
			if err := repos.Users.CreateUser(ctx, user.Persistence()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tb.Fatalf("failed to seed users: %v", err)
	}
}

// SeedEvents inserts events in one transaction.
func (h *SQLiteHarness) SeedEvents(tb testing.TB, events ...EventFixture) {
	tb.Helper()
	err := h.Storage.WithinTransaction(context.Background(), func(ctx context.Context, repos persistence.Repositories) error {
		for _, event := range events {
			if err := repos.Events.CreateEvent(ctx, event.Persistence()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tb.Fatalf("failed to seed events: %v", err)
	}
}

// Event reads an event back through the application adapter.
func (h *SQLiteHarness) Event(tb testing.TB, id string) application.Event {
	tb.Helper()
	var event application.Event
	err := h.Store.WithinTransaction(context.Background(), func(ctx context.Context, repos application.Repositories) error {
		var err error
		event, err = repos.Events.GetEvent(ctx, id)
		return err
	})
	if err != nil {
		tb.Fatalf("failed to read event %s: %v", id, err)
	}
	return event
}
