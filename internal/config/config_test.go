package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProbeTimeout.Duration != 5*time.Second {
		t.Fatalf("probe timeout = %s", cfg.ProbeTimeout.Duration)
	}
	if cfg.DiscoveryConcurrency != 4 {
		t.Fatalf("concurrency = %d", cfg.DiscoveryConcurrency)
	}
	if cfg.ProbeProtocol != "auto" {
		t.Fatalf("protocol = %q", cfg.ProbeProtocol)
	}
}

func TestLoadTOMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
probe_timeout = "2s"
probe_protocol = "http2"
discovery_concurrency = 8
plex_url = "http://plex.local"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLOATFETCH_DISCOVERY_CONCURRENCY", "2")
	t.Setenv("FLOATFETCH_CONNECT_TIMEOUT", "30s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProbeTimeout.Duration != 2*time.Second {
		t.Fatalf("probe timeout = %s", cfg.ProbeTimeout.Duration)
	}
	if cfg.ProbeProtocol != "http2" {
		t.Fatalf("protocol = %q", cfg.ProbeProtocol)
	}
	if cfg.PlexURL != "http://plex.local" {
		t.Fatalf("plex url = %q", cfg.PlexURL)
	}
	if cfg.DiscoveryConcurrency != 2 {
		t.Fatalf("env should override file, got %d", cfg.DiscoveryConcurrency)
	}
	if cfg.ConnectTimeout.Duration != 30*time.Second {
		t.Fatalf("connect timeout = %s", cfg.ConnectTimeout.Duration)
	}
}

func TestLoadRejectsUnknownProtocol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`probe_protocol = "gopher"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("FLOATFETCH_PROBE_TIMEOUT", "fast")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProbeTimeout.Duration != 5*time.Second {
		t.Fatalf("malformed env should fall back, got %s", cfg.ProbeTimeout.Duration)
	}
}
