package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Duration decodes "5s"-style strings from config.toml.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds application settings that are not part of the operator's
// settings tree: where files live and how the network side behaves.
type Config struct {
	// SettingsPath is the settings.json the bootstrap fills in
	SettingsPath string `toml:"settings_path"`

	// StatePath is the SQLite database holding edge probe history
	StatePath string `toml:"state_path"`

	FloatplaneURL string `toml:"floatplane_url"`
	PlexURL       string `toml:"plex_url"`

	// ProbeTimeout bounds a single edge latency probe
	ProbeTimeout Duration `toml:"probe_timeout"`

	// ProbeScheme is the URL scheme used to reach edges
	ProbeScheme string `toml:"probe_scheme"`

	// ProbeProtocol is one of auto, http1, http2, http3
	ProbeProtocol string `toml:"probe_protocol"`

	// ConnectTimeout bounds connecting to and listing one media server
	ConnectTimeout Duration `toml:"connect_timeout"`

	// DiscoveryConcurrency caps how many media servers are queried at once
	DiscoveryConcurrency int `toml:"discovery_concurrency"`

	// RequestsPerSecond paces calls to the remote APIs; 0 disables pacing
	RequestsPerSecond float64 `toml:"requests_per_second"`

	// LogRetention is how many debug logs to keep; negative keeps all
	LogRetention int `toml:"log_retention"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		SettingsPath:         DefaultSettingsPath(),
		StatePath:            DefaultStatePath(),
		FloatplaneURL:        "https://www.floatplane.com",
		PlexURL:              "https://plex.tv",
		ProbeTimeout:         Duration{5 * time.Second},
		ProbeScheme:          "https",
		ProbeProtocol:        "auto",
		ConnectTimeout:       Duration{15 * time.Second},
		DiscoveryConcurrency: 4,
		RequestsPerSecond:    5,
		LogRetention:         5,
	}
}

// DefaultStatePath is the probe history database location.
func DefaultStatePath() string {
	return filepath.Join(GetStateDir(), "floatfetch.db")
}

// Load builds the configuration: defaults, then the TOML file at path (if it
// exists), then .env, then FLOATFETCH_* environment variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	// A missing .env is the normal case.
	_ = godotenv.Load()

	cfg.SettingsPath = getEnv("FLOATFETCH_SETTINGS_PATH", cfg.SettingsPath)
	cfg.StatePath = getEnv("FLOATFETCH_STATE_PATH", cfg.StatePath)
	cfg.FloatplaneURL = getEnv("FLOATFETCH_FLOATPLANE_URL", cfg.FloatplaneURL)
	cfg.PlexURL = getEnv("FLOATFETCH_PLEX_URL", cfg.PlexURL)
	cfg.ProbeTimeout.Duration = getEnvDuration("FLOATFETCH_PROBE_TIMEOUT", cfg.ProbeTimeout.Duration)
	cfg.ProbeScheme = strings.ToLower(getEnv("FLOATFETCH_PROBE_SCHEME", cfg.ProbeScheme))
	cfg.ProbeProtocol = strings.ToLower(getEnv("FLOATFETCH_PROBE_PROTOCOL", cfg.ProbeProtocol))
	cfg.ConnectTimeout.Duration = getEnvDuration("FLOATFETCH_CONNECT_TIMEOUT", cfg.ConnectTimeout.Duration)
	cfg.DiscoveryConcurrency = getEnvInt("FLOATFETCH_DISCOVERY_CONCURRENCY", cfg.DiscoveryConcurrency)
	cfg.RequestsPerSecond = getEnvFloat("FLOATFETCH_REQUESTS_PER_SECOND", cfg.RequestsPerSecond)
	cfg.LogRetention = getEnvInt("FLOATFETCH_LOG_RETENTION", cfg.LogRetention)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ProbeProtocol {
	case "auto", "http1", "http2", "http3":
	default:
		return fmt.Errorf("probe_protocol must be auto, http1, http2 or http3, got %q", c.ProbeProtocol)
	}
	if c.ProbeScheme != "http" && c.ProbeScheme != "https" {
		return fmt.Errorf("probe_scheme must be http or https, got %q", c.ProbeScheme)
	}
	if c.ProbeTimeout.Duration <= 0 || c.ConnectTimeout.Duration <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.DiscoveryConcurrency < 1 {
		c.DiscoveryConcurrency = 1
	}
	return nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("SettingsPath: %s", c.SettingsPath))
	parts = append(parts, fmt.Sprintf("StatePath: %s", c.StatePath))
	parts = append(parts, fmt.Sprintf("ProbeProtocol: %s", c.ProbeProtocol))
	parts = append(parts, fmt.Sprintf("ProbeTimeout: %s", c.ProbeTimeout.Duration))
	parts = append(parts, fmt.Sprintf("DiscoveryConcurrency: %d", c.DiscoveryConcurrency))
	return strings.Join(parts, ", ")
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
