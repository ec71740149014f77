package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anmitsu/go-shlex"
	"github.com/spf13/cobra"

	"shcov.dev/pkg/shcov/internal/domain"
	m "shcov.dev/pkg/shcov/internal/model"
)

var skipUncoveredFlag bool
var muteFlag bool
var timeoutFlag time.Duration

// runCmd represents the run command.
var runCmd = newRunCmd()

const runLongDescription = `Run a command with bash tracing enabled and report line coverage of the
scripts it executes.

Everything after the first argument is passed to the command unchanged, so
"--" is only needed when the command itself starts with a dash. A single
argument containing spaces is split with shell quoting rules.

` + includeHelp

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [--] <command> [args...]",
		Short: "Run a command and report shell script coverage",
		Long:  runLongDescription,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return domain.ErrNoCommand
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := parseCommand(args)
			if err != nil {
				return err
			}

			loaded, err := loadSettings()
			if err != nil {
				return err
			}

			root, err := workingRoot()
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			err = workflow.Run(context.Background(), domain.RunArgs{
				Command: command,
				Root:    root,
				Include: loaded.Include,
				Reports: m.Path(loaded.Output),
				Timeout: loaded.Timeout,
				Options: m.Options{
					SkipUncovered: loaded.SkipUncovered,
					Mute:          loaded.Mute,
				},
			})

			var exitErr *domain.ExitError
			if errors.As(err, &exitErr) {
				cmd.SilenceErrors = true
			}

			return err
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().SetInterspersed(false)

	cmd.Flags().BoolVarP(&skipUncoveredFlag, skipUncoveredFlagName, "s", defaultSkipUncovered, "do not report scripts that were never executed")
	bindFlagToConfig(cmd.Flags().Lookup(skipUncoveredFlagName), skipUncoveredConfigKey)

	cmd.Flags().BoolVarP(&muteFlag, muteFlagName, "m", defaultMute, "do not relay the command's stdout and stderr")
	bindFlagToConfig(cmd.Flags().Lookup(muteFlagName), muteConfigKey)

	cmd.Flags().DurationVar(&timeoutFlag, timeoutFlagName, defaultTimeout, "stop the command after this long (0 disables)")
	bindFlagToConfig(cmd.Flags().Lookup(timeoutFlagName), timeoutConfigKey)
}

// parseCommand splits a lone argument holding a whole command line.
func parseCommand(args []string) ([]string, error) {
	if len(args) != 1 || !strings.ContainsAny(args[0], " \t") {
		return args, nil
	}

	command, err := shlex.Split(args[0], true)
	if err != nil {
		return nil, fmt.Errorf("failed to split command %q: %w", args[0], err)
	}

	if len(command) == 0 {
		return nil, domain.ErrNoCommand
	}

	return command, nil
}
