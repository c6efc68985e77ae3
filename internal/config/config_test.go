package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL != "" || cfg.RedisAddr != "" {
		t.Fatalf("postgres and redis should be off by default")
	}
	if cfg.MaxUploadMB != 64 || cfg.ExplorerPageSize != 50 {
		t.Fatalf("unexpected limits %d %d", cfg.MaxUploadMB, cfg.ExplorerPageSize)
	}
	if cfg.BodyLimit() != 64*1024*1024 {
		t.Fatalf("unexpected body limit %d", cfg.BodyLimit())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_PASSWORD", "pw")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MAX_UPLOAD_MB", "8")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" || cfg.RedisPassword != "pw" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.MaxUploadMB != 8 || cfg.LogFormat != "json" {
		t.Fatalf("expected override limits and log format")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trailscope.yaml")
	body := "SERVER_PORT: \":7000\"\nEXPLORER_PAGE_SIZE: 25\nLOG_LEVEL: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerPort != ":7000" || cfg.ExplorerPageSize != 25 {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("environment should win over file, got %q", cfg.LogLevel)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadRejectsBadLimits(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero upload limit")
	}
}
