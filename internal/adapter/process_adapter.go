package adapter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrLaunch wraps every failure to start the child process.
var ErrLaunch = errors.New("failed to launch command")

// LineHandler receives one line of child output, including its trailing
// newline when there is one.
type LineHandler func(line string) error

// ProcessSpec describes a child process.
type ProcessSpec struct {
	Command []string
	Dir     string
	Env     []string
	Stdin   io.Reader
}

// ProcessResult is the outcome of a child process that was started.
type ProcessResult struct {
	ExitCode int
	// Killed is set when the process was stopped by context cancellation.
	Killed bool
}

// ProcessAdapter runs a child process and hands its output streams to line
// handlers as they are produced.
type ProcessAdapter interface {
	// Run starts the process, drains stdout and stderr concurrently and
	// returns after the process exited and both streams were drained.
	// Launch failures wrap ErrLaunch; all other errors leave the result
	// valid.
	Run(ctx context.Context, spec ProcessSpec, stdout, stderr LineHandler) (ProcessResult, error)
}

// LocalProcessAdapter provides a concrete implementation using os/exec.
type LocalProcessAdapter struct {
	waitDelay time.Duration
}

// NewLocalProcessAdapter constructs a LocalProcessAdapter. Output pipes held
// open by orphaned descendants are closed 2s after the child exits.
func NewLocalProcessAdapter() *LocalProcessAdapter {
	return &LocalProcessAdapter{
		waitDelay: 2 * time.Second,
	}
}

// Run implements ProcessAdapter.
func (a *LocalProcessAdapter) Run(ctx context.Context, spec ProcessSpec, stdout, stderr LineHandler) (ProcessResult, error) {
	if len(spec.Command) == 0 {
		return ProcessResult{}, fmt.Errorf("%w: empty command", ErrLaunch)
	}

	cmd := exec.CommandContext(ctx, spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = spec.Stdin
	cmd.WaitDelay = a.waitDelay

	stdoutReader, stdoutWriter := io.Pipe()
	stderrReader, stderrWriter := io.Pipe()
	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter

	if err := cmd.Start(); err != nil {
		_ = stdoutWriter.Close()
		_ = stderrWriter.Close()

		slog.Error("Failed to start command", "command", spec.Command, "error", err)

		return ProcessResult{}, fmt.Errorf("%w %q: %w", ErrLaunch, spec.Command[0], err)
	}

	slog.Debug("Started command", "command", spec.Command, "pid", cmd.Process.Pid)

	var group errgroup.Group

	group.Go(func() error {
		return drain(stdoutReader, stdout)
	})
	group.Go(func() error {
		return drain(stderrReader, stderr)
	})

	waitErr := cmd.Wait()

	_ = stdoutWriter.Close()
	_ = stderrWriter.Close()

	drainErr := group.Wait()

	result := ProcessResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Killed:   ctx.Err() != nil,
	}

	slog.Debug("Command finished", "command", spec.Command, "exitCode", result.ExitCode, "killed", result.Killed)

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		slog.Warn("Command output was not fully collected", "command", spec.Command, "error", waitErr)
		return result, fmt.Errorf("wait for command: %w", waitErr)
	}

	if drainErr != nil {
		return result, fmt.Errorf("drain output: %w", drainErr)
	}

	return result, nil
}

// drain feeds every line of r to handle. After a handler error the rest of
// the stream is still read so the child never blocks on a full pipe.
func drain(r io.Reader, handle LineHandler) error {
	reader := bufio.NewReader(r)

	var handleErr error

	for {
		line, err := reader.ReadString('\n')
		if line != "" && handleErr == nil {
			handleErr = handle(line)
		}

		if errors.Is(err, io.EOF) {
			return handleErr
		}

		if err != nil {
			return errors.Join(handleErr, err)
		}
	}
}
