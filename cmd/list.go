package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"shcov.dev/pkg/shcov/internal/domain"
)

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered scripts and their relevant lines",
		Long: `List the scripts a run would report on, with the number of lines that
can be covered in each, without running anything.

` + includeHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadSettings()
			if err != nil {
				return err
			}

			root, err := workingRoot()
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			return workflow.List(context.Background(), domain.ListArgs{
				Root:    root,
				Include: loaded.Include,
			})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
