package cmd

import (
	"os/exec"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

const shortFlagName = "short"

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the shcov version and the bash it traces",
		Long: `Print the shcov module version, the Go toolchain it was built with and
the bash found on PATH. Only bash honours the trace settings shcov injects,
so commands run through sh, dash or zsh report no coverage.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			version := moduleVersion()
			if short {
				cmd.Println(version)
				return
			}

			cmd.Printf("shcov\t%s\n", version)
			cmd.Printf("go\t%s\n", runtime.Version())
			cmd.Printf("bash\t%s\n", bashPath())
		},
	}

	cmd.Flags().BoolVar(&short, shortFlagName, false, "print the shcov version only")

	return cmd
}

func moduleVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "unknown"
	}

	return info.Main.Version
}

func bashPath() string {
	path, err := exec.LookPath("bash")
	if err != nil {
		return "not found"
	}

	return path
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
