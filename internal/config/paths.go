package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "floatfetch"

// HomeEnv overrides every per-user directory: config, state and logs all
// live under it. Useful for portable installs and for tests.
const HomeEnv = "FLOATFETCH_HOME"

// GetAppDir returns where settings.json and config.toml live.
func GetAppDir() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	return filepath.Join(userConfigBase(), appName)
}

func userConfigBase() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return appData
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg
		}
		return filepath.Join(home, ".config")
	}
}

// GetRuntimeDir holds the single-instance lock. With no XDG_RUNTIME_DIR on
// Linux (containers, headless hosts) it is the state dir.
func GetRuntimeDir() string {
	if os.Getenv(HomeEnv) != "" {
		return filepath.Join(GetAppDir(), "run")
	}
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.TempDir(), appName)
	case "darwin":
		return filepath.Join(os.TempDir(), appName+"-runtime")
	default:
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return filepath.Join(dir, appName)
		}
		return GetStateDir()
	}
}

// GetStateDir holds the probe history database and the client id.
func GetStateDir() string {
	return filepath.Join(GetAppDir(), "state")
}

func GetLogsDir() string {
	return filepath.Join(GetAppDir(), "logs")
}

// DefaultSettingsPath is where settings.json lives unless overridden.
func DefaultSettingsPath() string {
	return filepath.Join(GetAppDir(), "settings.json")
}

// DefaultConfigPath is the optional application config file.
func DefaultConfigPath() string {
	return filepath.Join(GetAppDir(), "config.toml")
}

// EnsureDirs creates every directory the application writes to.
func EnsureDirs() error {
	for _, dir := range []string{GetAppDir(), GetStateDir(), GetLogsDir(), GetRuntimeDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
