package controller

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "shcov.dev/pkg/shcov/internal/model"
)

// SimpleUI implements UI using cobra Command's output streams.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	return ctx.Err()
}

// Close finalizes the UI.
func (s *SimpleUI) Close(_ context.Context) {}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(_ context.Context) {}

// DisplayRunInfo announces a traced run on stderr so the command's own
// stdout stays clean.
func (s *SimpleUI) DisplayRunInfo(ctx context.Context, command []string, scripts int) {
	if err := ctx.Err(); err != nil {
		return
	}

	_, _ = fmt.Fprintf(s.cmd.ErrOrStderr(), "Tracing %s (%d script(s) discovered)\n", strings.Join(command, " "), scripts)
}

// DisplayScripts prints the discovered scripts with their relevant line counts.
func (s *SimpleUI) DisplayScripts(ctx context.Context, root m.Path, scripts []m.ScriptInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderScriptsTable(root, scripts))

	return nil
}

// DisplayCoverage prints the per-file coverage table of a report.
func (s *SimpleUI) DisplayCoverage(ctx context.Context, report m.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderCoverageTable(report))

	return nil
}

func renderScriptsTable(root m.Path, scripts []m.ScriptInfo) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Path", "Lines", "Relevant"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})

	lines, relevant := 0, 0

	for _, script := range scripts {
		table.Append([]string{
			displayPath(root, script.Path),
			fmt.Sprintf("%d", script.Lines),
			fmt.Sprintf("%d", script.Relevant),
		})

		lines += script.Lines
		relevant += script.Relevant
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(scripts)),
		fmt.Sprintf("%d", lines),
		fmt.Sprintf("%d", relevant),
	})

	table.Render()

	return tableBuffer.String()
}

func renderCoverageTable(report m.Report) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Path", "Relevant", "Covered", "Indeterminate", "Coverage"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})

	summaries, total := report.Summary()
	for _, summary := range summaries {
		table.Append(summaryRow(displayPath(report.Root, summary.Path), summary))
	}

	table.SetFooter(summaryRow(fmt.Sprintf("Total Files %d", len(summaries)), total))
	table.Render()

	return tableBuffer.String()
}

func summaryRow(label string, summary m.FileSummary) []string {
	return []string{
		label,
		fmt.Sprintf("%d", summary.Relevant),
		fmt.Sprintf("%d", summary.Covered),
		fmt.Sprintf("%d", summary.Indeterminate),
		fmt.Sprintf("%.2f%%", summary.Percent()),
	}
}

// displayPath shortens paths below root.
func displayPath(root, path m.Path) string {
	if root == "" {
		return string(path)
	}

	rel, err := filepath.Rel(string(root), string(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return string(path)
	}

	return rel
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
