package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const testHash = "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA"

var optionalKeys = []string{
	"COHORT_HTTP_PORT",
	"COHORT_SQLITE_DSN",
	"COHORT_RELAY_URL",
	"COHORT_NOTIFY_TIMEOUT",
	"COHORT_TIMEZONE",
	"COHORT_SCHEDULE_FILE",
	"COHORT_SESSION_STORE",
	"COHORT_SESSION_CACHE_SIZE",
}

func unsetAll(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		// Register restoration through Setenv before unsetting.
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unsetAll(t, optionalKeys...)
		t.Setenv("COHORT_WEBHOOK_TOKEN", "token")
		t.Setenv("COHORT_ADMIN_PASSPHRASE_HASH", testHash)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "cohort.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.NotifyTimeout != 10*time.Second {
			t.Fatalf("expected default notify timeout 10s, got %s", cfg.NotifyTimeout)
		}
		if cfg.Location == nil || cfg.Location.String() != "Europe/Moscow" {
			t.Fatalf("expected Europe/Moscow, got %v", cfg.Location)
		}
		if cfg.SessionStore != SessionStoreSQLite || cfg.SessionCacheSize != 1024 {
			t.Fatalf("unexpected session defaults: %q %d", cfg.SessionStore, cfg.SessionCacheSize)
		}
		if cfg.RelayURL != "" || cfg.ScheduleFile != "" {
			t.Fatalf("expected empty relay and schedule, got %q %q", cfg.RelayURL, cfg.ScheduleFile)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		unsetAll(t, "COHORT_WEBHOOK_TOKEN", "COHORT_ADMIN_PASSPHRASE_HASH")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "missing required environment variables: COHORT_WEBHOOK_TOKEN, COHORT_ADMIN_PASSPHRASE_HASH"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		t.Setenv("COHORT_WEBHOOK_TOKEN", "token")
		t.Setenv("COHORT_ADMIN_PASSPHRASE_HASH", "plaintext")
		t.Setenv("COHORT_HTTP_PORT", "http")
		t.Setenv("COHORT_NOTIFY_TIMEOUT", "-1s")
		t.Setenv("COHORT_TIMEZONE", "Mars/Olympus")
		t.Setenv("COHORT_SESSION_STORE", "redis")
		t.Setenv("COHORT_SESSION_CACHE_SIZE", "0")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for invalid values")
		}
		for _, key := range []string{
			"COHORT_HTTP_PORT",
			"COHORT_ADMIN_PASSPHRASE_HASH",
			"COHORT_NOTIFY_TIMEOUT",
			"COHORT_TIMEZONE",
			"COHORT_SESSION_STORE",
			"COHORT_SESSION_CACHE_SIZE",
		} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in %q", key, err.Error())
			}
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		t.Setenv("COHORT_WEBHOOK_TOKEN", "token")
		t.Setenv("COHORT_ADMIN_PASSPHRASE_HASH", testHash)
		t.Setenv("COHORT_HTTP_PORT", "9090")
		t.Setenv("COHORT_SQLITE_DSN", "/var/lib/cohort/bot.db")
		t.Setenv("COHORT_RELAY_URL", "http://relay.internal/send")
		t.Setenv("COHORT_NOTIFY_TIMEOUT", "3s")
		t.Setenv("COHORT_TIMEZONE", "UTC")
		t.Setenv("COHORT_SCHEDULE_FILE", "/etc/cohort/schedule.yaml")
		t.Setenv("COHORT_SESSION_STORE", "Memory")
		t.Setenv("COHORT_SESSION_CACHE_SIZE", "64")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 || cfg.SQLiteDSN != "/var/lib/cohort/bot.db" {
			t.Fatalf("unexpected listener settings: %d %q", cfg.HTTPPort, cfg.SQLiteDSN)
		}
		if cfg.NotifyTimeout != 3*time.Second {
			t.Fatalf("expected notify timeout 3s, got %s", cfg.NotifyTimeout)
		}
		if cfg.Location != time.UTC {
			t.Fatalf("expected UTC, got %v", cfg.Location)
		}
		if cfg.RelayURL != "http://relay.internal/send" || cfg.ScheduleFile != "/etc/cohort/schedule.yaml" {
			t.Fatalf("unexpected relay or schedule: %q %q", cfg.RelayURL, cfg.ScheduleFile)
		}
		if cfg.SessionStore != SessionStoreMemory || cfg.SessionCacheSize != 64 {
			t.Fatalf("unexpected session settings: %q %d", cfg.SessionStore, cfg.SessionCacheSize)
		}
	})
}
