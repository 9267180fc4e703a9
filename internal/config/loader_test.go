package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"SCHEDULER_HTTP_PORT",
	"SCHEDULER_SQLITE_PATH",
	"SCHEDULER_SESSION_SECRET",
	"SCHEDULER_SESSION_TTL",
	"SCHEDULER_INVITE_TTL",
	"SCHEDULER_INVITE_URL",
	"SCHEDULER_CONFLICT_POLICY",
	"SCHEDULER_LOG_LEVEL",
	"SCHEDULER_SMTP_HOST",
	"SCHEDULER_SMTP_PORT",
	"SCHEDULER_SMTP_USERNAME",
	"SCHEDULER_SMTP_PASSWORD",
	"SCHEDULER_SMTP_FROM",
	"SCHEDULER_BOOTSTRAP_ADMIN_EMAIL",
	"SCHEDULER_BOOTSTRAP_ADMIN_PASSWORD",
}

// clearEnv blanks every scheduler variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_SESSION_SECRET", "super-secret")

		cfg, err := LoadFile(noEnvFile(t))
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.Equal(t, ":8080", cfg.Addr())
		assert.Equal(t, "scheduler.db", cfg.SQLitePath)
		assert.Equal(t, "super-secret", cfg.SessionSecret)
		assert.Equal(t, time.Hour, cfg.SessionTTL)
		assert.Equal(t, 24*time.Hour, cfg.InviteTTL)
		assert.Equal(t, "http://localhost:3000/register", cfg.InviteURL)
		assert.Equal(t, "user_only", cfg.ConflictPolicy)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.False(t, cfg.SMTP.Enabled())
		assert.Equal(t, 465, cfg.SMTP.Port)
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := LoadFile(noEnvFile(t))
		require.Error(t, err)
		assert.Equal(t, "required environment variables are not set: SCHEDULER_SESSION_SECRET", err.Error())
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_SESSION_SECRET", "secret-value")
		t.Setenv("SCHEDULER_HTTP_PORT", "9090")
		t.Setenv("SCHEDULER_SQLITE_PATH", "/tmp/scheduler.db")
		t.Setenv("SCHEDULER_SESSION_TTL", "15m")
		t.Setenv("SCHEDULER_INVITE_TTL", "48h")
		t.Setenv("SCHEDULER_CONFLICT_POLICY", "ALL")
		t.Setenv("SCHEDULER_LOG_LEVEL", "Debug")
		t.Setenv("SCHEDULER_SMTP_HOST", "smtp.example.com")
		t.Setenv("SCHEDULER_SMTP_PORT", "587")
		t.Setenv("SCHEDULER_SMTP_FROM", "noreply@example.com")

		cfg, err := LoadFile(noEnvFile(t))
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.HTTPPort)
		assert.Equal(t, "/tmp/scheduler.db", cfg.SQLitePath)
		assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
		assert.Equal(t, 48*time.Hour, cfg.InviteTTL)
		assert.Equal(t, "all", cfg.ConflictPolicy)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.True(t, cfg.SMTP.Enabled())
		assert.Equal(t, 587, cfg.SMTP.Port)
	})

	t.Run("collects every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_SESSION_SECRET", "secret-value")
		t.Setenv("SCHEDULER_HTTP_PORT", "eighty")
		t.Setenv("SCHEDULER_SESSION_TTL", "-1m")
		t.Setenv("SCHEDULER_INVITE_URL", "not a url")
		t.Setenv("SCHEDULER_CONFLICT_POLICY", "nobody")
		t.Setenv("SCHEDULER_LOG_LEVEL", "loud")

		_, err := LoadFile(noEnvFile(t))
		require.Error(t, err)
		for _, key := range []string{
			"SCHEDULER_HTTP_PORT",
			"SCHEDULER_SESSION_TTL",
			"SCHEDULER_INVITE_URL",
			"SCHEDULER_CONFLICT_POLICY",
			"SCHEDULER_LOG_LEVEL",
		} {
			assert.Contains(t, err.Error(), key)
		}
	})

	t.Run("smtp host requires a sender address", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_SESSION_SECRET", "secret-value")
		t.Setenv("SCHEDULER_SMTP_HOST", "smtp.example.com")

		_, err := LoadFile(noEnvFile(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SCHEDULER_SMTP_FROM")
	})

	t.Run("bootstrap admin needs a password", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_SESSION_SECRET", "secret-value")
		t.Setenv("SCHEDULER_BOOTSTRAP_ADMIN_EMAIL", "root@example.com")

		_, err := LoadFile(noEnvFile(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SCHEDULER_BOOTSTRAP_ADMIN_PASSWORD")

		t.Setenv("SCHEDULER_BOOTSTRAP_ADMIN_PASSWORD", "pw")
		cfg, err := LoadFile(noEnvFile(t))
		require.NoError(t, err)
		assert.True(t, cfg.Bootstrap.Enabled())
		assert.Equal(t, "root@example.com", cfg.Bootstrap.AdminEmail)
	})
}

func TestLoader_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "SCHEDULER_SESSION_SECRET=from-file\nSCHEDULER_HTTP_PORT=7070\n# comment\nSCHEDULER_LOG_LEVEL=warn\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("SCHEDULER_HTTP_PORT", "6060")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.SessionSecret)
	assert.Equal(t, 6060, cfg.HTTPPort, "process environment wins over the file")
	assert.Equal(t, "warn", cfg.LogLevel)

	// Reading the file must not leak into the process environment.
	assert.Empty(t, os.Getenv("SCHEDULER_SESSION_SECRET"))
}

func TestLoader_UnreadableEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := LoadFile(dir)
	assert.Error(t, err)
}
