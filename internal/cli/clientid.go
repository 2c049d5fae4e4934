package cli

import (
	"floatfetch/internal/config"
	"floatfetch/internal/utils"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ensureClientID loads or generates the identifier sent to plex.tv as
// X-Plex-Client-Identifier. Plex lists each identifier as a device, so it
// must stay stable across runs.
func ensureClientID() string {
	return loadOrCreateClientID(filepath.Join(config.GetStateDir(), "client-id"))
}

func loadOrCreateClientID(path string) string {
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.New().String()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		utils.Debug("Failed to create client id directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(id), 0600); err != nil {
		utils.Debug("Failed to write client id file: %v", err)
	}
	return id
}
