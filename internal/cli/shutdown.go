package cli

import (
	"errors"
	"floatfetch/internal/utils"
	"fmt"
	"sync"
)

var (
	globalShutdownOnce sync.Once
	globalShutdownErr  error
	globalShutdownFn   = defaultGlobalShutdown

	cleanupMu sync.Mutex
	cleanups  []func() error
)

// onShutdown registers fn to run at shutdown, after those registered later.
func onShutdown(fn func() error) {
	cleanupMu.Lock()
	defer cleanupMu.Unlock()
	cleanups = append(cleanups, fn)
}

func defaultGlobalShutdown() error {
	cleanupMu.Lock()
	fns := cleanups
	cleanups = nil
	cleanupMu.Unlock()

	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func executeGlobalShutdown(reason string) error {
	// Ensure shutdown only happens once even if multiple paths reach it.
	globalShutdownOnce.Do(func() {
		utils.Debug("Executing shutdown (%s)", reason)
		globalShutdownErr = globalShutdownFn()
		if globalShutdownErr != nil {
			globalShutdownErr = fmt.Errorf("shutdown failed: %w", globalShutdownErr)
		}
		utils.CloseDebug()
	})
	return globalShutdownErr
}

func resetGlobalShutdownCoordinatorForTest(fn func() error) {
	globalShutdownOnce = sync.Once{}
	globalShutdownErr = nil
	cleanupMu.Lock()
	cleanups = nil
	cleanupMu.Unlock()
	if fn != nil {
		globalShutdownFn = fn
		return
	}
	globalShutdownFn = defaultGlobalShutdown
}
