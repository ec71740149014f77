package controller

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "shcov.dev/pkg/shcov/internal/model"
)

func sampleReport() m.Report {
	return m.Report{
		Root: "/work",
		Files: m.Coverage{
			"/work/a.sh":     {m.Ignored, m.Covered(2), m.Uncovered},
			"/work/lib/b.sh": {m.Covered(1), m.Indeterminate},
			"/outside/c.sh":  {m.Ignored},
		},
	}
}

func newTestCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer

	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	return cmd, &stdout, &stderr
}

func TestSimpleUI_DisplayCoverage(t *testing.T) {
	cmd, stdout, _ := newTestCommand()
	ui := NewSimpleUI(cmd)

	require.NoError(t, ui.DisplayCoverage(context.Background(), sampleReport()))

	got := stdout.String()
	for _, want := range []string{
		"PATH", "RELEVANT", "COVERED", "INDETERMINATE", "COVERAGE",
		"a.sh", "50.00%",
		"lib/b.sh", "100.00%",
		"/outside/c.sh",
		"TOTAL FILES 3", "66.67%",
	} {
		assert.Contains(t, got, want)
	}

	assert.NotContains(t, got, "/work/a.sh")
}

func TestSimpleUI_DisplayScripts(t *testing.T) {
	tests := []struct {
		name         string
		scripts      []m.ScriptInfo
		wantContains []string
	}{
		{
			name:         "no scripts",
			scripts:      nil,
			wantContains: []string{"TOTAL FILES 0"},
		},
		{
			name: "scripts with totals",
			scripts: []m.ScriptInfo{
				{Path: "/work/main.sh", Lines: 14, Relevant: 7},
				{Path: "/work/lib/greet.sh", Lines: 11, Relevant: 3},
			},
			wantContains: []string{"main.sh", "lib/greet.sh", "14", "TOTAL FILES 2", "25", "10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, stdout, _ := newTestCommand()
			ui := NewSimpleUI(cmd)

			require.NoError(t, ui.DisplayScripts(context.Background(), "/work", tt.scripts))

			for _, want := range tt.wantContains {
				assert.Contains(t, stdout.String(), want)
			}
		})
	}
}

func TestSimpleUI_DisplayRunInfo(t *testing.T) {
	cmd, stdout, stderr := newTestCommand()
	ui := NewSimpleUI(cmd)

	ui.DisplayRunInfo(context.Background(), []string{"bash", "test.sh"}, 3)

	assert.Empty(t, stdout.String())
	assert.Equal(t, "Tracing bash test.sh (3 script(s) discovered)\n", stderr.String())
}

func TestSimpleUI_CancelledContext(t *testing.T) {
	cmd, stdout, stderr := newTestCommand()
	ui := NewSimpleUI(cmd)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, ui.Start(ctx))
	assert.Error(t, ui.DisplayCoverage(ctx, sampleReport()))
	assert.Error(t, ui.DisplayScripts(ctx, "/work", nil))
	ui.DisplayRunInfo(ctx, []string{"x"}, 1)

	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestDisplayPath(t *testing.T) {
	tests := []struct {
		root, path m.Path
		want       string
	}{
		{"/work", "/work/a.sh", "a.sh"},
		{"/work", "/work/lib/b.sh", "lib/b.sh"},
		{"/work", "/elsewhere/c.sh", "/elsewhere/c.sh"},
		{"", "/work/a.sh", "/work/a.sh"},
	}

	for _, tt := range tests {
		t.Run(string(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.want, displayPath(tt.root, tt.path))
		})
	}
}

func TestNewUI(t *testing.T) {
	cmd, _, _ := newTestCommand()

	assert.IsType(t, &SimpleUI{}, NewUI(cmd, false))
	assert.IsType(t, &TUI{}, NewUI(cmd, true))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}
