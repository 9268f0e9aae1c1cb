package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	app := newAppContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "packshuffle",
		Short:         "Detect, convert and shuffle game music packs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd == cmd.Root() {
				return nil
			}
			return app.ensureLoaded()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newTypesCommand(app))
	rootCmd.AddCommand(newScanCommand(app))
	rootCmd.AddCommand(newShowCommand(app))
	rootCmd.AddCommand(newConvertCommand(app))
	rootCmd.AddCommand(newAssignCommand(app))
	rootCmd.AddCommand(newRandomCommand(app))
	rootCmd.AddCommand(newShuffleCommand(app))
	rootCmd.AddCommand(newWatchCommand(app))

	return rootCmd
}
