package cli

import (
	"floatfetch/internal/clipboard"
	"floatfetch/internal/login"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var plexCmd = &cobra.Command{
	Use:   "plex",
	Short: "Check or update the Plex integration",
	Long: `Fills in whatever the Plex integration is missing (a token or library sections).
Use --resync to choose the sections to refresh again.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		resync, _ := cmd.Flags().GetBool("resync")
		enable, _ := cmd.Flags().GetBool("enable")
		fromClipboard, _ := cmd.Flags().GetBool("token-from-clipboard")

		a := mustStartApp()
		settings, err := a.store.Load(ctx)
		if err != nil {
			fatal(fmt.Errorf("load settings: %w", err))
		}

		// A nil *TokenSource in the interface would not compare equal to nil.
		var tokens login.TokenSource
		if fromClipboard {
			tokens = clipboard.NewTokenSource()
			// A fresh token is wanted, so the stored one is ignored.
			settings.Plex.Token = ""
		}

		if enable {
			settings.Plex.Enabled = true
		}
		if !settings.Plex.Enabled {
			fmt.Println("Plex integration is disabled. Use --enable or run 'floatfetch setup' to turn it on.")
			return
		}

		orch := a.orchestrator(tokens)
		if resync {
			err = orch.SyncMediaServerSections(ctx, &settings.Plex)
		} else {
			err = orch.EnsureMediaServerConfigured(ctx, &settings.Plex, true)
		}
		if err != nil {
			fatal(err)
		}

		if err := a.store.Save(ctx, settings); err != nil {
			fatal(fmt.Errorf("save settings: %w", err))
		}
		if settings.Plex.Enabled {
			fmt.Printf("Plex will refresh: %s\n", strings.Join(settings.Plex.SectionsToUpdate, ", "))
		}
		fmt.Printf("Settings saved to %s\n", a.store.Path)
	},
}

func init() {
	plexCmd.Flags().Bool("resync", false, "Choose the Plex sections to refresh again")
	plexCmd.Flags().Bool("enable", false, "Turn the Plex integration on before checking it")
	plexCmd.Flags().Bool("token-from-clipboard", false, "Read the Plex token from the clipboard instead of signing in")
	rootCmd.AddCommand(plexCmd)
}
