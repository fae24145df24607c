package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Session store backends.
const (
	SessionStoreSQLite = "sqlite"
	SessionStoreMemory = "memory"
)

// Config captures environment driven configuration values for the cohort bot.
type Config struct {
	HTTPPort            int
	SQLiteDSN           string
	WebhookToken        string
	AdminPassphraseHash string
	// RelayURL is where outbound messages are posted. Empty logs them instead.
	RelayURL         string
	NotifyTimeout    time.Duration
	Location         *time.Location
	ScheduleFile     string
	SessionStore     string
	SessionCacheSize int
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields and reports every missing
// or invalid variable at once.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:         8080,
		SQLiteDSN:        "cohort.db",
		NotifyTimeout:    10 * time.Second,
		SessionStore:     SessionStoreSQLite,
		SessionCacheSize: 1024,
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if portValue := env("COHORT_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "COHORT_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := env("COHORT_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if token := env("COHORT_WEBHOOK_TOKEN"); token == "" {
		missing = append(missing, "COHORT_WEBHOOK_TOKEN")
	} else {
		cfg.WebhookToken = token
	}

	if hash := env("COHORT_ADMIN_PASSPHRASE_HASH"); hash == "" {
		missing = append(missing, "COHORT_ADMIN_PASSPHRASE_HASH")
	} else if !strings.HasPrefix(hash, "$argon2id$") {
		invalid = append(invalid, "COHORT_ADMIN_PASSPHRASE_HASH")
	} else {
		cfg.AdminPassphraseHash = hash
	}

	cfg.RelayURL = env("COHORT_RELAY_URL")

	if timeoutValue := env("COHORT_NOTIFY_TIMEOUT"); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "COHORT_NOTIFY_TIMEOUT")
		} else {
			cfg.NotifyTimeout = timeout
		}
	}

	zone := env("COHORT_TIMEZONE")
	if zone == "" {
		zone = "Europe/Moscow"
	}
	if loc, err := time.LoadLocation(zone); err != nil {
		invalid = append(invalid, "COHORT_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	cfg.ScheduleFile = env("COHORT_SCHEDULE_FILE")

	if store := strings.ToLower(env("COHORT_SESSION_STORE")); store != "" {
		switch store {
		case SessionStoreSQLite, SessionStoreMemory:
			cfg.SessionStore = store
		default:
			invalid = append(invalid, "COHORT_SESSION_STORE")
		}
	}

	if sizeValue := env("COHORT_SESSION_CACHE_SIZE"); sizeValue != "" {
		size, err := strconv.Atoi(sizeValue)
		if err != nil || size <= 0 {
			invalid = append(invalid, "COHORT_SESSION_CACHE_SIZE")
		} else {
			cfg.SessionCacheSize = size
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
