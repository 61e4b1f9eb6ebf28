package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "releasewall",
		Short:         "Track digital movie releases and publish the new release wall",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newBootstrapCommand(ctx))
	rootCmd.AddCommand(newDailyCommand(ctx))
	rootCmd.AddCommand(newCheckProvidersCommand(ctx))
	rootCmd.AddCommand(newAddCommand(ctx))
	rootCmd.AddCommand(newRefreshCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newWallCommand(ctx))
	rootCmd.AddCommand(newSiteCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))

	return rootCmd
}
