// Package cmd provides the root command and CLI setup for shcov.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"shcov.dev/pkg/shcov/internal/adapter"
	"shcov.dev/pkg/shcov/internal/controller"
	"shcov.dev/pkg/shcov/internal/domain"
	m "shcov.dev/pkg/shcov/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var reportStore adapter.ReportStore
var processAdapter adapter.ProcessAdapter
var reporter domain.Reporter
var workflow domain.Workflow
var ui controller.UI

// reportsOutputDirFlag is a root-level flag shared by commands that read/write reports.
var reportsOutputDirFlag string

// includePatterns selects the scripts that are discovered.
var includePatterns []string

var verboseFlag bool
var logFileFlag string

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	reportStore = adapter.NewReportStore()
	processAdapter = adapter.NewLocalProcessAdapter()
	reporter = adapter.NewStreamReporter(os.Stderr, controller.IsTTY(os.Stderr))
	workflow = domain.NewWorkflow(
		fsAdapter,
		reportStore,
		ui,
		processAdapter,
		domain.NewLexer(),
		reporter,
		domain.Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr},
	)
}

const rootLongDescription = `shcov measures line coverage of shell scripts.

It runs a command with bash execution tracing enabled, attributes every
trace record to a script line and reports, for every script found under the
current directory, which lines were executed.`

const includeHelp = `Scripts are discovered recursively below the current directory. Include
patterns are shell globs matched against base names, or against the path
relative to the current directory when they contain a slash.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shcov",
		Short: "Shell script line coverage",
		Long:  rootLongDescription,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			configureLogger(logFileFlag, verboseFlag)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for coverage reports",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().StringArrayVarP(&includePatterns, includeFlagName, "i", viper.GetStringSlice(includeConfigKey), "include scripts matching glob (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(includeFlagName), includeConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", false, "write debug logs")
	cmd.PersistentFlags().StringVar(&logFileFlag, logFileFlagName, "", "log file path (default from config)")
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// A traced command's non-zero exit status becomes shcov's own.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var exitErr *domain.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}

	return 1
}

// workingRoot returns the absolute current directory.
func workingRoot() (m.Path, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	abs, err := filepath.Abs(wd)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}

	return m.Path(abs), nil
}
