package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// timeLayout keeps fractional seconds at fixed width so stored values sort
// lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Storage is the SQLite-backed persistence.Store.
type Storage struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	logger *slog.Logger
}

var _ persistence.Store = (*Storage)(nil)

// OpenConfig opens a Storage for cfg. A nil logger uses slog.Default.
func OpenConfig(cfg Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		logger: logger.With("component", "sqlite"),
	}, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Ping checks that the database answers.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	files, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	manager := migration.NewManager(
		migration.NewScanner(files, "."),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	return manager.Run(ctx)
}

// WithinTransaction runs fn with repositories bound to one IMMEDIATE
// transaction. The whole transaction is retried when SQLite reports a lock,
// so fn must not have side effects outside the database.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos persistence.Repositories) error) error {
	attempt := 0
	return s.retry.WithRetry(ctx, func() error {
		attempt++
		if attempt > 1 {
			s.logger.DebugContext(ctx, "retrying locked transaction", "attempt", attempt)
		}
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			return fn(ctx, repositoriesFor(tx))
		})
	})
}

func repositoriesFor(q Queryer) persistence.Repositories {
	return persistence.Repositories{
		Users:  NewUserRepository(q),
		Roles:  NewRoleRepository(q),
		Events: NewEventRepository(q),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullableString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
