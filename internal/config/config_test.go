package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("DEV_FALLBACK_OWNER", "")
	t.Setenv("FITBIT_SYNC_INTERVAL", "")

	cfg := FromEnv()
	if cfg.Store.Driver != "postgres" {
		t.Fatalf("driver = %q", cfg.Store.Driver)
	}
	if cfg.DevFallbackOwner != "" {
		t.Fatalf("fallback owner must be empty by default, got %q", cfg.DevFallbackOwner)
	}
	if cfg.Fitbit.SyncInterval != 0 {
		t.Fatalf("sync interval = %v, want disabled", cfg.Fitbit.SyncInterval)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("FITBIT_SYNC_INTERVAL", "15m")
	t.Setenv("REDIS_DB", "3")

	cfg := FromEnv()
	if cfg.Store.Driver != "sqlite" || cfg.Store.SQLite.Path != "/tmp/x.db" {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Fitbit.SyncInterval != 15*time.Minute {
		t.Fatalf("interval = %v", cfg.Fitbit.SyncInterval)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("redis db = %d", cfg.Redis.DB)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := FromEnv()
	cfg.Store.Driver = "cassandra"
	cfg.Fitbit.ClientID = "id-only"
	cfg.Fitbit.ClientSecret = ""
	cfg.Logger.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"STORE_DRIVER", "FITBIT_CLIENT_SECRET", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidateMemoryStore(t *testing.T) {
	cfg := FromEnv()
	cfg.Store.Driver = "memory"
	cfg.Fitbit.ClientID, cfg.Fitbit.ClientSecret = "", ""
	cfg.LibreLink.URL = ""
	cfg.Logger.Format = "text"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
