package controller

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	m "shcov.dev/pkg/shcov/internal/model"
)

// TUI implements UI using Bubble Tea for the interactive report viewer.
// Run and list output is static and goes through SimpleUI.
type TUI struct {
	*SimpleUI
	cmd    *cobra.Command
	mode   StartMode
	viewer *coverageModel
}

// NewTUI creates a new TUI.
func NewTUI(cmd *cobra.Command) *TUI {
	return &TUI{
		SimpleUI: NewSimpleUI(cmd),
		cmd:      cmd,
	}
}

// Start records the mode for the following Display calls.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mode = newStartConfig(options).mode
	t.viewer = nil

	return nil
}

// DisplayCoverage prepares the interactive viewer in view mode.
func (t *TUI) DisplayCoverage(ctx context.Context, report m.Report) error {
	if t.mode != ModeView {
		return t.SimpleUI.DisplayCoverage(ctx, report)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	model := newCoverageModel(report)

	if f, ok := t.cmd.OutOrStdout().(*os.File); ok {
		if width, height, err := term.GetSize(int(f.Fd())); err == nil {
			model.resize(width, height)
		}
	}

	t.viewer = &model

	return nil
}

// Wait runs the viewer until the user quits.
func (t *TUI) Wait(ctx context.Context) {
	if t.viewer == nil || ctx.Err() != nil {
		return
	}

	program := tea.NewProgram(*t.viewer,
		tea.WithContext(ctx),
		tea.WithInput(t.cmd.InOrStdin()),
		tea.WithOutput(t.cmd.OutOrStdout()),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		_, _ = fmt.Fprintf(t.cmd.ErrOrStderr(), "viewer error: %v\n", err)
	}
}

// Close releases the viewer.
func (t *TUI) Close(_ context.Context) {
	t.viewer = nil
}

type fileItem struct {
	path    string
	summary m.FileSummary
}

func (i fileItem) FilterValue() string { return i.path }

var (
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("6")).
			Bold(true)
	pathStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	countStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// percentStyle colours a coverage ratio red, yellow or green.
func percentStyle(percent float64) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true).Width(8).Align(lipgloss.Right)

	switch {
	case percent >= 90:
		return style.Foreground(lipgloss.Color("10"))
	case percent >= 60:
		return style.Foreground(lipgloss.Color("11"))
	}

	return style.Foreground(lipgloss.Color("9"))
}

type coverageDelegate struct{}

func (d coverageDelegate) Height() int                             { return 1 }
func (d coverageDelegate) Spacing() int                            { return 0 }
func (d coverageDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d coverageDelegate) Render(w io.Writer, model list.Model, index int, item list.Item) {
	file, ok := item.(fileItem)
	if !ok {
		return
	}

	percent := percentStyle(file.summary.Percent()).Render(fmt.Sprintf("%.2f%%", file.summary.Percent()))
	counts := fmt.Sprintf("%d/%d", file.summary.Covered, file.summary.Relevant)

	width := model.Width() - lipgloss.Width(percent) - len(counts) - 4
	path := truncateToWidth(file.path, width)

	if index == model.Index() {
		path = selectedStyle.Render(path)
	} else {
		path = pathStyle.Render(path)
	}

	_, _ = fmt.Fprintf(w, "%s  %s  %s", percent, path, countStyle.Render(counts))
}

func truncateToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}

	if lipgloss.Width(text) <= width {
		return text
	}

	const ellipsis = "…"

	if width <= 1 {
		return ellipsis
	}

	maxWidth := width - lipgloss.Width(ellipsis)
	currentWidth := 0

	result := make([]rune, 0, len(text))
	for _, r := range text {
		rWidth := lipgloss.Width(string(r))
		if currentWidth+rWidth > maxWidth {
			break
		}

		result = append(result, r)
		currentWidth += rWidth
	}

	return string(result) + ellipsis
}

// coverageModel is the Bubble Tea model of the report viewer.
type coverageModel struct {
	files list.Model
	total m.FileSummary
	count int
	width int
}

func newCoverageModel(report m.Report) coverageModel {
	summaries, total := report.Summary()

	items := make([]list.Item, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, fileItem{
			path:    displayPath(report.Root, summary.Path),
			summary: summary,
		})
	}

	files := list.New(items, coverageDelegate{}, 80, 20)
	files.SetShowPagination(true)
	files.SetShowFilter(true)
	files.SetShowHelp(false)
	files.SetShowTitle(false)
	files.SetShowStatusBar(false)
	files.FilterInput.Placeholder = "Filter by path…"

	return coverageModel{
		files: files,
		total: total,
		count: len(summaries),
		width: 80,
	}
}

// reservedLines is the height of the header and footer.
const reservedLines = 4

func (cm *coverageModel) resize(width, height int) {
	cm.width = width
	cm.files.SetSize(width, max(height-reservedLines, 1))
}

func (cm coverageModel) Init() tea.Cmd {
	return nil
}

func (cm coverageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		cm.resize(msg.Width, msg.Height)
		return cm, nil

	case tea.KeyMsg:
		if cm.files.FilterState() != list.Filtering {
			switch msg.String() {
			case "q", "esc", "ctrl+c":
				return cm, tea.Quit
			}
		} else if msg.String() == "ctrl+c" {
			return cm, tea.Quit
		}
	}

	var cmd tea.Cmd

	cm.files, cmd = cm.files.Update(msg)

	return cm, cmd
}

func (cm coverageModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf(
		"shcov: %d file(s), %d/%d relevant lines covered (%.2f%%)",
		cm.count, cm.total.Covered, cm.total.Relevant, cm.total.Percent(),
	)))
	b.WriteString("\n\n")
	b.WriteString(cm.files.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ move • / filter • q quit"))

	return b.String()
}
