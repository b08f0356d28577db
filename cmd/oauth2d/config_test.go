package main

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Backend != backendMemory {
		t.Errorf("Backend = %q, want %q", cfg.Backend, backendMemory)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if !cfg.AuditLogging {
		t.Error("AuditLogging should default to true")
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("OAUTH2D_BACKEND", "sqlite")
	t.Setenv("OAUTH2D_SQLITE_DSN", "file:/tmp/test.db")
	t.Setenv("OAUTH2D_LOG_LEVEL", "debug")
	t.Setenv("OAUTH2D_LOG_FORMAT", "json")
	t.Setenv("OAUTH2D_REFRESH_TOKEN_LIFETIME", "-1s")
	t.Setenv("OAUTH2D_RATE_LIMIT", "2.5")
	t.Setenv("OAUTH2D_TRUST_PROXY", "true")
	t.Setenv("OAUTH2D_SEED_USERNAME", "alice")
	t.Setenv("OAUTH2D_SEED_PASSWORD", "secret")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Backend != backendSQLite || cfg.SQLiteDSN != "file:/tmp/test.db" {
		t.Errorf("backend = %q dsn = %q", cfg.Backend, cfg.SQLiteDSN)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.RefreshTokenLifetime != -time.Second {
		t.Errorf("RefreshTokenLifetime = %v, want -1s", cfg.RefreshTokenLifetime)
	}
	if cfg.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", cfg.RateLimit)
	}
	if !cfg.TrustProxy {
		t.Error("TrustProxy should be true")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "unknown backend", env: map[string]string{"OAUTH2D_BACKEND": "postgres"}, want: "BACKEND"},
		{name: "bad duration", env: map[string]string{"OAUTH2D_ACCESS_TOKEN_LIFETIME": "soon"}, want: "ACCESS_TOKEN_LIFETIME"},
		{name: "bad bool", env: map[string]string{"OAUTH2D_TRUST_PROXY": "maybe"}, want: "TRUST_PROXY"},
		{name: "bad level", env: map[string]string{"OAUTH2D_LOG_LEVEL": "loud"}, want: "LOG_LEVEL"},
		{name: "bad format", env: map[string]string{"OAUTH2D_LOG_FORMAT": "xml"}, want: "LOG_FORMAT"},
		{name: "seed user without password", env: map[string]string{"OAUTH2D_SEED_USERNAME": "alice"}, want: "SEED_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig()
			if err == nil {
				t.Fatal("loadConfig() expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}
