package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shcov.dev/pkg/shcov/internal/adapter"
	m "shcov.dev/pkg/shcov/internal/model"
	"shcov.dev/pkg/shcov/pkg"
)

// ErrNoCommand is returned when a run has nothing to execute.
var ErrNoCommand = errors.New("you must give exactly one command to execute")

// ExitError carries a non-zero exit status of the traced command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

const (
	envPS4       = "PS4"
	envShellOpts = "SHELLOPTS"
	envBashEnv   = "BASH_ENV"
	xtraceFlag   = "xtrace"
)

// InjectXtraceFlag adds xtrace to a colon separated SHELLOPTS value,
// keeping every other flag in place.
func InjectXtraceFlag(existing string) string {
	flags := make([]string, 0)

	for _, flag := range strings.Split(existing, ":") {
		if flag != "" {
			flags = append(flags, flag)
		}
	}

	for _, flag := range flags {
		if flag == xtraceFlag {
			return strings.Join(flags, ":")
		}
	}

	return strings.Join(append(flags, xtraceFlag), ":")
}

// TraceEnv returns a copy of base that enables tracing in bash and all of
// its descendants. startup is the file bash sources through BASH_ENV before
// it runs a script; base keeps its own BASH_ENV when startup is empty.
func TraceEnv(base []string, startup string) []string {
	env := make([]string, 0, len(base)+3)
	shellOpts := ""

	for _, entry := range base {
		key, value, _ := strings.Cut(entry, "=")

		switch {
		case key == envPS4:
			continue
		case key == envShellOpts:
			shellOpts = value
			continue
		case key == envBashEnv && startup != "":
			continue
		}

		env = append(env, entry)
	}

	env = append(env,
		envPS4+"="+PS4(),
		envShellOpts+"="+InjectXtraceFlag(shellOpts),
	)

	if startup != "" {
		env = append(env, envBashEnv+"="+startup)
	}

	return env
}

// StartupScript returns the BASH_ENV file content that sets PS4 inside
// bash, which ignores PS4 from the environment when it runs as root. The
// assignment itself is not traced. userEnv, the BASH_ENV the command would
// have used, is sourced afterwards and expanded the way bash expands
// BASH_ENV.
func StartupScript(userEnv string) string {
	script := "{ " + envPS4 + "='" + PS4() + "'; } 2>/dev/null\n"

	if userEnv != "" {
		script += `. "` + strings.ReplaceAll(userEnv, `"`, `\"`) + "\"\n"
	}

	return script
}

func lookupEnv(env []string, key string) string {
	value := ""

	for _, entry := range env {
		if k, v, ok := strings.Cut(entry, "="); ok && k == key {
			value = v
		}
	}

	return value
}

// Streams are where the traced command's input and output are relayed.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// RunSpec describes one traced command.
type RunSpec struct {
	Command []string
	// Dir is the working directory; relative script paths resolve against it.
	Dir m.Path
	// Env is the base environment. os.Environ() is used when nil.
	Env     []string
	Timeout time.Duration
}

// RunResult is the outcome of a traced run.
type RunResult struct {
	ExitCode int
	Killed   bool
	// Files holds the parsed trace, before aggregation.
	Files m.Coverage
}

// Runner launches a command with bash tracing enabled and parses the
// resulting trace.
type Runner struct {
	process  adapter.ProcessAdapter
	reporter Reporter
	options  m.Options
	streams  Streams
	spoolDir string
}

// NewRunner constructs a Runner.
func NewRunner(process adapter.ProcessAdapter, reporter Reporter, options m.Options, streams Streams) *Runner {
	if reporter == nil {
		reporter = DiscardReporter
	}

	if streams.Stdout == nil {
		streams.Stdout = io.Discard
	}

	if streams.Stderr == nil {
		streams.Stderr = io.Discard
	}

	return &Runner{
		process:  process,
		reporter: reporter,
		options:  options,
		streams:  streams,
	}
}

// Run executes spec and returns the parsed trace. Only launch failures are
// returned as errors; a killed or failing command still yields whatever
// trace was captured.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	if len(spec.Command) == 0 {
		return RunResult{}, ErrNoCommand
	}

	base := spec.Env
	if base == nil {
		base = os.Environ()
	}

	spool, err := pkg.NewSpool[string](r.spoolDir)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to create trace spool: %w", err)
	}

	defer func() {
		if err := spool.Close(); err != nil {
			slog.Warn("Failed to remove trace spool", "path", spool.Path(), "error", err)
		}
	}()

	startup, err := r.writeStartup(lookupEnv(base, envBashEnv))
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to write bash startup file: %w", err)
	}

	defer func() {
		if err := os.Remove(startup); err != nil {
			slog.Warn("Failed to remove bash startup file", "path", startup, "error", err)
		}
	}()

	if spec.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	processResult, err := r.process.Run(ctx, adapter.ProcessSpec{
		Command: spec.Command,
		Dir:     string(spec.Dir),
		Env:     TraceEnv(base, startup),
		Stdin:   r.streams.Stdin,
	}, r.relayStdout, r.relayStderr(spool))
	if errors.Is(err, adapter.ErrLaunch) {
		return RunResult{}, err
	}

	if err != nil {
		slog.Warn("Traced command output was incomplete", "command", spec.Command, "error", err)
	}

	if processResult.Killed {
		r.reporter.Warnf("%s was stopped before it finished; coverage is partial", spec.Command[0])
	}

	xtrace := NewXtrace(spec.Dir, r.reporter)
	xtrace.Exclude(m.Path(startup))

	err = spool.Range(func(_ uint64, line string) error {
		xtrace.Feed(line)
		return nil
	})
	if err != nil {
		slog.Error("Failed to replay trace", "path", spool.Path(), "error", err)
	}

	slog.Debug("Parsed trace", "records", spool.Len(), "files", len(xtrace.Files()))

	return RunResult{
		ExitCode: processResult.ExitCode,
		Killed:   processResult.Killed,
		Files:    xtrace.Files(),
	}, nil
}

func (r *Runner) relayStdout(line string) error {
	if r.options.Mute {
		return nil
	}

	_, err := io.WriteString(r.streams.Stdout, line)

	return err
}

// relayStderr spools trace records and relays everything else. The lines
// that continue a record holding a newline are dropped. Records of other
// processes may arrive in between; they are spooled without ending the
// continuation.
func (r *Runner) relayStderr(spool pkg.Spool[string]) adapter.LineHandler {
	var continuation traceContinuation

	return func(line string) error {
		command, record := RecordCommand(line)

		switch {
		case record && continuation.open():
			return spool.Append(line)
		case record:
			continuation.start(command)
			return spool.Append(line)
		case continuation.open():
			continuation.next(line)
			return nil
		case r.options.Mute:
			return nil
		}

		_, err := io.WriteString(r.streams.Stderr, line)

		return err
	}
}

// writeStartup writes the BASH_ENV file for one run and returns its
// absolute path.
func (r *Runner) writeStartup(userEnv string) (string, error) {
	file, err := os.CreateTemp(r.spoolDir, "shcov-env-*.sh")
	if err != nil {
		return "", err
	}

	path, err := filepath.Abs(file.Name())
	if err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())

		return "", err
	}

	if _, err := file.WriteString(StartupScript(userEnv)); err != nil {
		_ = file.Close()
		_ = os.Remove(path)

		return "", err
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}

	return path, nil
}
