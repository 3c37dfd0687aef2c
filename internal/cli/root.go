// Package cli handles the command-line interface logic using the Cobra
// library.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pushcart-deploy",
		Short: "Assemble and deploy declarative data pipeline metadata",
		Long: `pushcart-deploy assembles a multi-stage data pipeline definition from a
tree of configuration fragments, validates the merged result, and writes
the validated metadata to a deployment backend.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(NewDeployCmd())

	return rootCmd
}
