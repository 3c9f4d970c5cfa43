package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd(app *AppContext) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "pipegate",
		Short: "pipegate decides whether pipelines are allowed to start",
		Long: `pipegate runs an ordered chain of validators against pipeline definitions
and reports, for each pipeline, whether it may start now or why it may not.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.configure(cmd.Context(), flags)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to the gate configuration file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newCheckCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newValidatorsCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
