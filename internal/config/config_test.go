package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	testAccessSecret  = "access-secret-access-secret-0123456789"
	testRefreshSecret = "refresh-secret-refresh-secret-0123456789"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("TASKHUB_AUTH_ACCESS_SECRET", testAccessSecret)
	t.Setenv("TASKHUB_AUTH_REFRESH_SECRET", testRefreshSecret)
	t.Setenv("TASKHUB_AUTH_ACCESS_TTL", "5m")
	t.Setenv("TASKHUB_HTTP_ORIGIN", "http://a.test, http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.AccessTTL != 5*time.Minute {
		t.Fatalf("unexpected access ttl: %s", cfg.Auth.AccessTTL)
	}
	if cfg.Auth.RefreshTTL != 240*time.Hour {
		t.Fatalf("unexpected refresh ttl: %s", cfg.Auth.RefreshTTL)
	}
	if cfg.Auth.OneTimeTTL != 20*time.Minute {
		t.Fatalf("unexpected one-time ttl: %s", cfg.Auth.OneTimeTTL)
	}
	if cfg.Store.Driver != "memory" || cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Auth.RequireVerifiedEmail {
		t.Fatal("verified email should be required by default")
	}
	origins := cfg.HTTP.Origins()
	if len(origins) != 2 || origins[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %v", origins)
	}
}

func TestLoadRejectsWeakSecrets(t *testing.T) {
	t.Setenv("TASKHUB_AUTH_ACCESS_SECRET", "short")
	t.Setenv("TASKHUB_AUTH_REFRESH_SECRET", "short")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "access_secret") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsSharedSecret(t *testing.T) {
	t.Setenv("TASKHUB_AUTH_ACCESS_SECRET", testAccessSecret)
	t.Setenv("TASKHUB_AUTH_REFRESH_SECRET", testAccessSecret)
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected shared secret rejection, got %v", err)
	}
}

func TestLoadConfigFileAndDriverValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskhub.yaml")
	body := "store:\n  driver: postgres\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TASKHUB_CONFIG", path)
	t.Setenv("TASKHUB_AUTH_ACCESS_SECRET", testAccessSecret)
	t.Setenv("TASKHUB_AUTH_REFRESH_SECRET", testRefreshSecret)

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "postgres_dsn") {
		t.Fatalf("expected missing dsn error, got %v", err)
	}

	t.Setenv("TASKHUB_STORE_POSTGRES_DSN", "postgres://localhost/taskhub")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != "postgres" || cfg.Log.Level != "debug" {
		t.Fatalf("config file not applied: %+v", cfg)
	}
}

func TestProductionForcesSecureCookies(t *testing.T) {
	t.Setenv("TASKHUB_ENV", "production")
	t.Setenv("TASKHUB_AUTH_ACCESS_SECRET", testAccessSecret)
	t.Setenv("TASKHUB_AUTH_REFRESH_SECRET", testRefreshSecret)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Auth.CookieSecure {
		t.Fatal("expected secure cookies in production")
	}
}
