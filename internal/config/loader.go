package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/event-scheduler/internal/scheduler"
)

// DefaultEnvFile is read by Load when it exists.
const DefaultEnvFile = ".env"

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort       int
	SQLitePath     string
	SessionSecret  string
	SessionTTL     time.Duration
	InviteTTL      time.Duration
	InviteURL      string
	ConflictPolicy string
	LogLevel       string
	SMTP           SMTP
	Bootstrap      Bootstrap
}

// Bootstrap names the super administrator created at startup when absent.
type Bootstrap struct {
	AdminEmail    string
	AdminPassword string
}

// Enabled reports whether a bootstrap account is configured.
func (b Bootstrap) Enabled() bool {
	return b.AdminEmail != ""
}

// SMTP configures outbound mail. An empty Host disables email delivery.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether a mail relay is configured.
func (s SMTP) Enabled() bool {
	return s.Host != ""
}

// Load parses configuration from the process environment, falling back to
// values in DefaultEnvFile. Process variables always win over the file.
func Load() (Config, error) {
	return LoadFile(DefaultEnvFile)
}

// LoadFile is Load with an explicit env file. A missing file is not an error.
func LoadFile(path string) (Config, error) {
	values := map[string]string{}
	if path != "" {
		read, err := godotenv.Read(path)
		switch {
		case err == nil:
			values = read
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return parse(func(key string) string {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(values[key])
	})
}

func parse(getenv func(string) string) (Config, error) {
	cfg := Config{
		HTTPPort:       8080,
		SQLitePath:     "scheduler.db",
		SessionTTL:     time.Hour,
		InviteTTL:      24 * time.Hour,
		InviteURL:      "http://localhost:3000/register",
		ConflictPolicy: scheduler.PolicyUserOnly,
		LogLevel:       "info",
		SMTP:           SMTP{Port: 465},
	}

	var missing, invalid []string

	if portValue := getenv("SCHEDULER_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if path := getenv("SCHEDULER_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}

	if secret := getenv("SCHEDULER_SESSION_SECRET"); secret == "" {
		missing = append(missing, "SCHEDULER_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	for _, d := range []struct {
		key    string
		target *time.Duration
	}{
		{key: "SCHEDULER_SESSION_TTL", target: &cfg.SessionTTL},
		{key: "SCHEDULER_INVITE_TTL", target: &cfg.InviteTTL},
	} {
		value := getenv(d.key)
		if value == "" {
			continue
		}
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, d.key)
			continue
		}
		*d.target = ttl
	}

	if inviteURL := getenv("SCHEDULER_INVITE_URL"); inviteURL != "" {
		parsed, err := url.Parse(inviteURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			invalid = append(invalid, "SCHEDULER_INVITE_URL")
		} else {
			cfg.InviteURL = inviteURL
		}
	}

	if policy := getenv("SCHEDULER_CONFLICT_POLICY"); policy != "" {
		if _, err := scheduler.PolicyByName(policy); err != nil {
			invalid = append(invalid, "SCHEDULER_CONFLICT_POLICY")
		} else {
			cfg.ConflictPolicy = strings.ToLower(policy)
		}
	}

	if level := getenv("SCHEDULER_LOG_LEVEL"); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "warning", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
		}
	}

	cfg.SMTP.Host = getenv("SCHEDULER_SMTP_HOST")
	cfg.SMTP.Username = getenv("SCHEDULER_SMTP_USERNAME")
	cfg.SMTP.Password = getenv("SCHEDULER_SMTP_PASSWORD")
	cfg.SMTP.From = getenv("SCHEDULER_SMTP_FROM")
	if portValue := getenv("SCHEDULER_SMTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "SCHEDULER_SMTP_PORT")
		} else {
			cfg.SMTP.Port = port
		}
	}
	if cfg.SMTP.Enabled() && cfg.SMTP.From == "" && cfg.SMTP.Username == "" {
		missing = append(missing, "SCHEDULER_SMTP_FROM")
	}

	cfg.Bootstrap.AdminEmail = getenv("SCHEDULER_BOOTSTRAP_ADMIN_EMAIL")
	cfg.Bootstrap.AdminPassword = getenv("SCHEDULER_BOOTSTRAP_ADMIN_PASSWORD")
	if cfg.Bootstrap.Enabled() && cfg.Bootstrap.AdminPassword == "" {
		missing = append(missing, "SCHEDULER_BOOTSTRAP_ADMIN_PASSWORD")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}
