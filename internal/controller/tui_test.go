package controller

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTUI_RunModeUsesTable(t *testing.T) {
	cmd, stdout, _ := newTestCommand()
	ui := NewTUI(cmd)

	require.NoError(t, ui.Start(context.Background(), WithRunMode()))
	require.NoError(t, ui.DisplayCoverage(context.Background(), sampleReport()))

	assert.Contains(t, stdout.String(), "TOTAL FILES 3")
	assert.Nil(t, ui.viewer)
}

func TestTUI_ViewModePreparesViewer(t *testing.T) {
	cmd, stdout, _ := newTestCommand()
	ui := NewTUI(cmd)

	require.NoError(t, ui.Start(context.Background(), WithViewMode()))
	require.NoError(t, ui.DisplayCoverage(context.Background(), sampleReport()))

	require.NotNil(t, ui.viewer)
	assert.Equal(t, 3, ui.viewer.count)
	assert.Empty(t, stdout.String())

	ui.Close(context.Background())
	assert.Nil(t, ui.viewer)

	// Nothing to run after Close.
	ui.Wait(context.Background())
}

func TestCoverageModel_View(t *testing.T) {
	model := newCoverageModel(sampleReport())

	view := model.View()

	for _, want := range []string{
		"shcov: 3 file(s), 2/3 relevant lines covered (66.67%)",
		"a.sh",
		"lib/b.sh",
		"/outside/c.sh",
		"q quit",
	} {
		assert.Contains(t, view, want)
	}
}

func TestCoverageModel_Update(t *testing.T) {
	t.Run("quit keys", func(t *testing.T) {
		for _, key := range []tea.KeyMsg{
			{Type: tea.KeyRunes, Runes: []rune{'q'}},
			{Type: tea.KeyEsc},
			{Type: tea.KeyCtrlC},
		} {
			_, cmd := newCoverageModel(sampleReport()).Update(key)
			require.NotNil(t, cmd, key.String())
			assert.IsType(t, tea.QuitMsg{}, cmd(), key.String())
		}
	})

	t.Run("window size", func(t *testing.T) {
		updated, cmd := newCoverageModel(sampleReport()).Update(tea.WindowSizeMsg{Width: 120, Height: 40})
		assert.Nil(t, cmd)

		model, ok := updated.(coverageModel)
		require.True(t, ok)
		assert.Equal(t, 120, model.width)
		assert.Equal(t, 120, model.files.Width())
		assert.Equal(t, 40-reservedLines, model.files.Height())
	})

	t.Run("navigation keys move the selection", func(t *testing.T) {
		updated, _ := newCoverageModel(sampleReport()).Update(tea.KeyMsg{Type: tea.KeyDown})

		model, ok := updated.(coverageModel)
		require.True(t, ok)
		assert.Equal(t, 1, model.files.Index())
	})
}

func TestPercentStyle(t *testing.T) {
	assert.Equal(t, lipgloss.Color("10"), percentStyle(95).GetForeground())
	assert.Equal(t, lipgloss.Color("11"), percentStyle(75).GetForeground())
	assert.Equal(t, lipgloss.Color("9"), percentStyle(10).GetForeground())
}

func TestTruncateToWidth(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 4, "abc…"},
		{"abc", 1, "…"},
		{"abc", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateToWidth(tt.text, tt.width))
		})
	}
}
