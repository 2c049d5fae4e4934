package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the interactive setup again",
	Long:  `Walks through every setup question again using your current settings as defaults, then saves the result.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustStartApp()

		settings, err := a.store.Load(ctx)
		if err != nil {
			fatal(fmt.Errorf("load settings: %w", err))
		}
		if err := a.runFullSetup(ctx, settings); err != nil {
			fatal(err)
		}
		if err := a.store.Save(ctx, settings); err != nil {
			fatal(fmt.Errorf("save settings: %w", err))
		}
		fmt.Printf("Settings saved to %s\n", a.store.Path)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
