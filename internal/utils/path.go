package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// EnsureAbsPath normalizes a path so settings written from different
// working directories point at the same place.
func EnsureAbsPath(path string) string {
	if path == "" {
		path = "."
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// ExpandHome replaces a leading "~" with the user's home directory.
// Answers typed at a prompt never go through a shell, so nothing else expands it.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
