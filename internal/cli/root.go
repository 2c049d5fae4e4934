package cli

import (
	"context"
	"errors"
	"floatfetch/internal/bootstrap"
	"floatfetch/internal/config"
	"floatfetch/internal/prompt"
	"floatfetch/internal/state"
	"floatfetch/internal/utils"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set via ldflags during build.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Command line flags
var (
	verbose      bool
	settingsPath string
	configPath   string
)

// appConfig is loaded once per invocation in PersistentPreRun.
var appConfig *config.Config

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "floatfetch",
	Short:   "Download Floatplane videos into your media library",
	Long:    `floatfetch downloads Floatplane videos and keeps your Plex libraries up to date. On first launch it walks you through setup.`,
	Version: Version,
	Args:    cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.SetVerbose(verbose)

		if configPath != "" {
			configPath = utils.EnsureAbsPath(utils.ExpandHome(configPath))
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if settingsPath != "" {
			cfg.SettingsPath = utils.EnsureAbsPath(utils.ExpandHome(settingsPath))
		}
		appConfig = cfg
		initializeGlobalState(cfg)
		utils.Debug("Config: %s", cfg)
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustStartApp()

		settings, err := a.store.Load(ctx)
		if err != nil {
			fatal(fmt.Errorf("load settings: %w", err))
		}

		if settings.RunQuickstartPrompts {
			if err := a.runFullSetup(ctx, settings); err != nil {
				fatal(err)
			}
		} else {
			orch := a.orchestrator(nil)
			if err := orch.EnsureMediaServerConfigured(ctx, &settings.Plex, true); err != nil {
				fatal(err)
			}
		}

		if err := a.store.Save(ctx, settings); err != nil {
			fatal(fmt.Errorf("save settings: %w", err))
		}
		fmt.Printf("Settings saved to %s\n", a.store.Path)
		_ = executeGlobalShutdown("root: done")
	},
}

// fatal prints err, runs shutdown and exits. Settings are never saved on this path.
func fatal(err error) {
	switch {
	case errors.Is(err, prompt.ErrAborted), errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "\nSetup aborted, nothing was saved.")
	case errors.Is(err, bootstrap.ErrAuthenticationFailed):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Nothing was saved; run the command again to retry.")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if shutdownErr := executeGlobalShutdown("fatal error"); shutdownErr != nil {
		utils.Debug("%v", shutdownErr)
	}
	os.Exit(1)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	_ = executeGlobalShutdown("exit")
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to settings.json (default: app config directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default: app config directory)")
	rootCmd.SetVersionTemplate("floatfetch v{{.Version}}\n")
}

// initializeGlobalState prepares directories, DB, and logging for CLI usage.
func initializeGlobalState(cfg *config.Config) {
	if err := config.EnsureDirs(); err != nil {
		utils.Debug("Failed to create app directories: %v", err)
	}

	// Config probe history
	state.Configure(cfg.StatePath)
	onShutdown(func() error {
		state.CloseDB()
		return nil
	})

	// Config logging
	utils.ConfigureDebug(config.GetLogsDir())

	// Clean up old logs
	utils.CleanupLogs(cfg.LogRetention)
}
