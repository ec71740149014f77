package domain

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shcov.dev/pkg/shcov/internal/adapter"
	m "shcov.dev/pkg/shcov/internal/model"
)

func requireBash(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

// traceScripts runs bash on script inside dir and aggregates the coverage
// of every script found there.
func traceScripts(t *testing.T, dir string, script string, reporter Reporter, streams Streams) m.Coverage {
	t.Helper()

	fsAdapter := adapter.NewLocalSourceFSAdapter()

	scripts, err := fsAdapter.FindScripts(context.Background(), m.Path(dir), []string{"*.sh"})
	require.NoError(t, err)

	aggregator := NewAggregator(fsAdapter, NewLexer(), reporter, m.Options{})
	discovery := aggregator.Discover(context.Background(), scripts)

	runner := NewRunner(adapter.NewLocalProcessAdapter(), reporter, m.Options{}, streams)
	runner.spoolDir = t.TempDir()

	result, err := runner.Run(context.Background(), RunSpec{
		Command: []string{"bash", script},
		Dir:     m.Path(dir),
		Timeout: 30 * time.Second,
	})
	require.NoError(t, err)
	require.Zero(t, result.ExitCode)

	return aggregator.Aggregate(discovery, result.Files)
}

func TestIntegration_BasicFixture(t *testing.T) {
	requireBash(t)

	root, err := filepath.Abs("../../examples/basic")
	require.NoError(t, err)

	fsAdapter := adapter.NewLocalSourceFSAdapter()
	reporter := &recordingReporter{}
	stdout := &bytes.Buffer{}

	scripts, err := fsAdapter.FindScripts(context.Background(), m.Path(root), []string{"*.sh"})
	require.NoError(t, err)
	require.Len(t, scripts, 2)

	aggregator := NewAggregator(fsAdapter, NewLexer(), reporter, m.Options{})
	discovery := aggregator.Discover(context.Background(), scripts)

	runner := NewRunner(adapter.NewLocalProcessAdapter(), reporter, m.Options{}, Streams{Stdout: stdout})
	runner.spoolDir = t.TempDir()

	result, err := runner.Run(context.Background(), RunSpec{
		Command: []string{"bash", "main.sh"},
		Dir:     m.Path(root),
		Timeout: 30 * time.Second,
	})
	require.NoError(t, err)
	require.Zero(t, result.ExitCode)

	coverage := aggregator.Aggregate(discovery, result.Files)

	assert.Equal(t, "Hello, world!\n", stdout.String())
	assert.Empty(t, reporter.Messages())

	main := coverage[m.Path(filepath.Join(root, "main.sh"))]
	require.Len(t, main, 14)
	for _, lineno := range []int{3, 5, 6, 12, 13} {
		assert.True(t, main[lineno-1].IsCovered(), "main.sh line %d", lineno)
	}
	for _, lineno := range []int{1, 2, 4, 7, 10, 11, 14} {
		assert.Equal(t, m.Ignored, main[lineno-1], "main.sh line %d", lineno)
	}
	assert.Equal(t, m.Uncovered, main[8])

	greet := coverage[m.Path(filepath.Join(root, "lib", "greet.sh"))]
	assert.Equal(t, []m.LineStatus{
		m.Ignored, m.Ignored, m.Ignored, m.Ignored,
		m.Covered(1), m.Covered(1), m.Ignored,
		m.Ignored, m.Ignored, m.Uncovered, m.Ignored,
	}, greet)
}

func TestIntegration_MuteAndSkipUncovered(t *testing.T) {
	requireBash(t)

	dir := t.TempDir()
	script := filepath.Join(dir, "hello.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/usr/bin/env bash\necho hello\necho oops >&2\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "idle.sh"), []byte("echo idle\n"), 0o755))

	options := m.Options{Mute: true, SkipUncovered: true}
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

	fsAdapter := adapter.NewLocalSourceFSAdapter()
	aggregator := NewAggregator(fsAdapter, NewLexer(), nil, options)

	runner := NewRunner(adapter.NewLocalProcessAdapter(), nil, options, Streams{Stdout: stdout, Stderr: stderr})
	runner.spoolDir = t.TempDir()

	result, err := runner.Run(context.Background(), RunSpec{Command: []string{"bash", "hello.sh"}, Dir: m.Path(dir)})
	require.NoError(t, err)

	coverage := aggregator.Aggregate(aggregator.Discover(context.Background(), nil), result.Files)

	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
	assert.Equal(t, m.Coverage{
		m.Path(script): {m.Ignored, m.Covered(1), m.Covered(1)},
	}, coverage)
}

func TestIntegration_CorruptedLineno(t *testing.T) {
	requireBash(t)

	dir := t.TempDir()
	script := filepath.Join(dir, "hello.sh")
	require.NoError(t, os.WriteFile(script, []byte(
		"#!/usr/bin/env bash\n\necho \"Hello, world!\"\nLINENO= echo \"What line is this?\"\necho \"Hello? Is anyone there?\"\n",
	), 0o755))

	reporter := &recordingReporter{}
	coverage := traceScripts(t, dir, "hello.sh", reporter, Streams{})

	one, zero := 1, 0
	assert.Equal(t, []*int{nil, nil, &one, &zero, &zero}, coverage.SimpleCov()[script])
	assert.Equal(t, []string{script + ": expected integer for LINENO, got nil"}, reporter.Messages())
}

func TestIntegration_MultilineFixture(t *testing.T) {
	requireBash(t)

	dir, err := filepath.Abs("../../examples/multiline")
	require.NoError(t, err)

	reporter := &recordingReporter{}
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

	coverage := traceScripts(t, dir, "report.sh", reporter, Streams{Stdout: stdout, Stderr: stderr})

	lines := coverage[m.Path(filepath.Join(dir, "report.sh"))]
	require.Len(t, lines, 20)

	for i, status := range lines {
		assert.NotEqual(t, m.Uncovered, status, "report.sh line %d", i+1)
	}

	for _, lineno := range []int{3, 8, 9, 10, 15, 16, 18, 19} {
		assert.True(t, lines[lineno-1].IsCovered(), "report.sh line %d", lineno)
	}

	assert.Empty(t, stderr.String())
	assert.Empty(t, reporter.Messages())
	assert.Contains(t, stdout.String(), "FIRST LINE\nSECOND LINE\n")
}
