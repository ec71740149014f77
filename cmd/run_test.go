package cmd

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shcov.dev/pkg/shcov/internal/domain"
	domainmocks "shcov.dev/pkg/shcov/internal/domain/mocks"
	m "shcov.dev/pkg/shcov/internal/model"
)

func newTestRunRoot(t *testing.T) (*cobra.Command, *domainmocks.MockWorkflow, *bytes.Buffer) {
	t.Helper()

	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newRunCmd())

	stderr := &bytes.Buffer{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(stderr)

	originalWorkflow := workflow
	workflow = mockWorkflow
	t.Cleanup(func() { workflow = originalWorkflow })

	return cmd, mockWorkflow, stderr
}

func TestRunCmd_PassesCommandAndDefaults(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRunRoot(t)

	wd, err := os.Getwd()
	require.NoError(t, err)

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args domain.RunArgs) bool {
		return assert.ObjectsAreEqual([]string{"./test.sh", "arg"}, args.Command) &&
			args.Root == m.Path(wd) &&
			args.Reports == m.Path(".shcov-reports") &&
			assert.ObjectsAreEqual([]string{"*.sh"}, args.Include) &&
			!args.Options.SkipUncovered &&
			!args.Options.Mute &&
			args.Timeout == 0
	})).Return(nil)

	cmd.SetArgs([]string{"run", "./test.sh", "arg"})
	require.NoError(t, cmd.Execute())
}

func TestRunCmd_OptionFlags(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRunRoot(t)

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args domain.RunArgs) bool {
		return args.Options.SkipUncovered &&
			args.Options.Mute &&
			args.Timeout == 5*time.Second
	})).Return(nil)

	cmd.SetArgs([]string{"run", "-s", "-m", "--timeout", "5s", "./test.sh"})
	require.NoError(t, cmd.Execute())
}

func TestRunCmd_FlagsAfterCommandBelongToCommand(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRunRoot(t)

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args domain.RunArgs) bool {
		return assert.ObjectsAreEqual([]string{"bash", "-x", "--mute", "script.sh"}, args.Command) &&
			!args.Options.Mute
	})).Return(nil)

	cmd.SetArgs([]string{"run", "bash", "-x", "--mute", "script.sh"})
	require.NoError(t, cmd.Execute())
}

func TestRunCmd_SplitsSingleCommandLine(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRunRoot(t)

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args domain.RunArgs) bool {
		return assert.ObjectsAreEqual([]string{"bash", "my script.sh", "--flag"}, args.Command)
	})).Return(nil)

	cmd.SetArgs([]string{"run", `bash "my script.sh" --flag`})
	require.NoError(t, cmd.Execute())
}

func TestRunCmd_IncludeFlag(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRunRoot(t)

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args domain.RunArgs) bool {
		return assert.ObjectsAreEqual([]string{"*.bash", "lib/*"}, args.Include)
	})).Return(nil)

	cmd.SetArgs([]string{"run", "-i", "*.bash", "--include", "lib/*", "./test.sh"})
	require.NoError(t, cmd.Execute())
}

func TestRunCmd_WithoutCommandFails(t *testing.T) {
	cmd, _, stderr := newTestRunRoot(t)

	cmd.SetArgs([]string{"run"})
	err := cmd.Execute()
	require.ErrorIs(t, err, domain.ErrNoCommand)
	assert.Contains(t, stderr.String(), "you must give exactly one command to execute")
}

func TestRunCmd_ExitErrorIsSilent(t *testing.T) {
	cmd, mockWorkflow, stderr := newTestRunRoot(t)

	mockWorkflow.On("Run", mock.Anything, mock.Anything).Return(&domain.ExitError{Code: 3})

	cmd.SetArgs([]string{"run", "./failing.sh"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))
	assert.NotContains(t, stderr.String(), "Error:")
}

func TestNewRunCmd(t *testing.T) {
	cmd := newRunCmd()

	assert.Equal(t, "run [flags] [--] <command> [args...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.Equal(t, runLongDescription, cmd.Long)

	for _, name := range []string{skipUncoveredFlagName, muteFlagName, timeoutFlagName} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}

	assert.Equal(t, "s", cmd.Flags().Lookup(skipUncoveredFlagName).Shorthand)
	assert.Equal(t, "m", cmd.Flags().Lookup(muteFlagName).Shorthand)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"single word", []string{"./test.sh"}, []string{"./test.sh"}},
		{"several args kept", []string{"bash", "a b.sh"}, []string{"bash", "a b.sh"}},
		{"command line split", []string{"bash -c 'echo hi'"}, []string{"bash", "-c", "echo hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
