package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelayMs != 500 {
		t.Errorf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoad_JSON5WithComments(t *testing.T) {
	path := writeFile(t, `{
		// tighter retry budget for CI
		retry: {
			maxAttempts: 5,
			baseDelayMs: 100,
		},
		rateLimit: { perMinute: 30 },
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.BaseDelayMs != 100 {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.RateLimit.PerMinute != 30 {
		t.Errorf("perMinute = %d", cfg.RateLimit.PerMinute)
	}

	// Untouched sections keep their defaults.
	if cfg.Retry.Multiplier != 2.0 || cfg.Retry.MaxDelayMs != 10_000 {
		t.Errorf("unfilled retry fields = %+v", cfg.Retry)
	}
	if len(cfg.RiskControl.HTTPStatuses) == 0 {
		t.Error("risk-control defaults missing")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeFile(t, `{retry: [not an object`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestPolicy(t *testing.T) {
	cfg := Default()
	pol := cfg.Policy()
	if pol.MaxAttempts != 3 || pol.BaseDelay != 500*time.Millisecond || pol.MaxDelay != 10*time.Second {
		t.Errorf("policy = %+v", pol)
	}
}

func TestRefreshLead(t *testing.T) {
	cfg := Default()
	if cfg.RefreshLead() != 24*time.Hour {
		t.Errorf("lead = %v", cfg.RefreshLead())
	}
}

func TestCredentialPath_Override(t *testing.T) {
	cfg := Default()
	cfg.Storage.Dir = "/var/lib/livectl"
	path, err := cfg.CredentialPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join("/var/lib/livectl", "auth.json") {
		t.Errorf("path = %q", path)
	}
}
