package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"WEBDB_HTTP", "WEBDB_DATA_DIR", "WEBDB_LOG_LEVEL", "WEBDB_LOGIN_RATE_PER_MIN", "WEBDB_HISTORY", "WEBDB_SHUTDOWN_TIMEOUT", "WEBDB_TRUST_PROXY", "WEBDB_ADMIN_PASSWORD"} {
		// Setenv restores the previous value on cleanup.
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP != "127.0.0.1:5555" || cfg.DataDir != "./data" || cfg.LoginRatePerMin != 10 || cfg.History || cfg.TrustProxy {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("WEBDB_HTTP", ":8080")
	t.Setenv("WEBDB_DATA_DIR", "/srv/webdb")
	t.Setenv("WEBDB_LOG_LEVEL", "debug")
	t.Setenv("WEBDB_LOGIN_RATE_PER_MIN", "0")
	t.Setenv("WEBDB_HISTORY", "true")
	t.Setenv("WEBDB_SHUTDOWN_TIMEOUT", "1m")
	t.Setenv("WEBDB_TRUST_PROXY", "true")
	t.Setenv("WEBDB_ADMIN_PASSWORD", "pw")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	want := Config{HTTP: ":8080", DataDir: "/srv/webdb", LogLevel: "debug", LoginRatePerMin: 0, History: true, ShutdownTimeout: time.Minute, TrustProxy: true, AdminPassword: "pw"}
	if *cfg != want {
		t.Errorf("got %+v, want %+v", *cfg, want)
	}
	if l, err := cfg.Level(); err != nil || l != slog.LevelDebug {
		t.Errorf("Level() = %v, %v", l, err)
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("WEBDB_LOGIN_RATE_PER_MIN", "lots")
	if _, err := Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{HTTP: ":0", DataDir: "d", LogLevel: "warn", LoginRatePerMin: 1, ShutdownTimeout: time.Second}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no http", func(c *Config) { c.HTTP = "" }},
		{"no data dir", func(c *Config) { c.DataDir = "" }},
		{"bad level", func(c *Config) { c.LogLevel = "chatty" }},
		{"negative rate", func(c *Config) { c.LoginRatePerMin = -1 }},
		{"zero timeout", func(c *Config) { c.ShutdownTimeout = 0 }},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
