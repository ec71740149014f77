package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shcov.dev/pkg/shcov/internal/domain"
	m "shcov.dev/pkg/shcov/internal/model"
)

// mergeCmd represents the merge command.
var mergeCmd = newMergeCmd()

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <report>...",
		Short: "Merge the reports of several runs",
		Long: `Merge coverage reports of several runs into the reports directory.

Each argument is a reports directory or a coverage.yaml file. Hit counts are
added up and a line ignored in any report stays ignored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			inputs := make([]m.Path, 0, len(args))
			for _, arg := range args {
				inputs = append(inputs, m.Path(arg))
			}

			reportsPath := m.Path(viper.GetString(outputFlagName))

			return workflow.Merge(context.Background(), domain.MergeArgs{
				Reports: reportsPath,
				Inputs:  inputs,
			})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
