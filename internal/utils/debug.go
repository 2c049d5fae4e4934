package utils

import (
	"floatfetch/internal/config"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	debugFile *os.File
	debugMu   sync.Mutex
	debugOnce sync.Once
	logsDir   atomic.Value // string
	verbose   atomic.Bool
)

// ConfigureDebug sets the directory debug logs are written to.
func ConfigureDebug(dir string) {
	logsDir.Store(dir)
}

// SetVerbose enables or disables verbose logging
func SetVerbose(enabled bool) {
	verbose.Store(enabled)
}

// IsVerbose returns true if verbose logging is enabled
func IsVerbose() bool {
	return verbose.Load()
}

func currentLogsDir() string {
	if val, ok := logsDir.Load().(string); ok && val != "" {
		return val
	}
	return config.GetLogsDir()
}

// Debug appends a timestamped line to this run's debug log when verbose is on.
func Debug(format string, args ...any) {
	if !IsVerbose() {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	debugOnce.Do(func() {
		dir := currentLogsDir()
		os.MkdirAll(dir, 0755)
		debugFile, _ = os.Create(filepath.Join(dir, fmt.Sprintf("debug-%s.log", time.Now().Format("20060102-150405"))))
	})
	if debugFile == nil {
		return
	}
	debugMu.Lock()
	defer debugMu.Unlock()
	fmt.Fprintf(debugFile, "[%s] %s\n", timestamp, fmt.Sprintf(format, args...))
}

// CloseDebug flushes and closes the debug log.
func CloseDebug() {
	debugMu.Lock()
	defer debugMu.Unlock()
	if debugFile != nil {
		debugFile.Sync()
		debugFile.Close()
		debugFile = nil
	}
}

// CleanupLogs removes old log files, keeping only the most recent retentionCount files
func CleanupLogs(retentionCount int) {
	if retentionCount < 0 {
		return // Keep all logs
	}

	dir, _ := logsDir.Load().(string)
	if dir == "" {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// If directory doesn't exist, nothing to clean
		return
	}

	var logs []fs.DirEntry
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "debug-") && strings.HasSuffix(entry.Name(), ".log") {
			logs = append(logs, entry)
		}
	}

	// debug-YYYYMMDD-HHMMSS.log: reverse lexical order is newest first.
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].Name() > logs[j].Name()
	})

	if len(logs) <= retentionCount {
		return
	}

	for _, log := range logs[retentionCount:] {
		_ = os.Remove(filepath.Join(dir, log.Name()))
	}
}
