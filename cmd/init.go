package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const forceFlagName = "force"

// initCmd represents the init command.
var initCmd = newInitCmd()

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the shcov settings in effect to shcov.yaml",
		Long: `Write shcov.yaml to the current directory with the include patterns,
report directory, run options and log settings in effect, so they can be
edited by hand. Values coming from SHCOV_* variables are written too. An
existing file is kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			targetPath := filepath.Join(configFolderPath, configFileName)

			write := viper.SafeWriteConfigAs
			if force {
				write = viper.WriteConfigAs
			}

			if err := write(targetPath); err != nil {
				return fmt.Errorf("failed to write %s: %w", targetPath, err)
			}

			cmd.Printf("Wrote %s; scripts matching %v will be traced\n", targetPath, viper.GetStringSlice(includeConfigKey))

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, forceFlagName, false, "overwrite an existing shcov.yaml")

	return cmd
}

func init() {
	rootCmd.AddCommand(initCmd)
}
