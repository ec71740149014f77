// Package domain implements the shell coverage engine and its workflows.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shcov.dev/pkg/shcov/internal/adapter"
	"shcov.dev/pkg/shcov/internal/controller"
	m "shcov.dev/pkg/shcov/internal/model"
)

// RunArgs contains the arguments for a traced run.
type RunArgs struct {
	Command []string
	Root    m.Path
	Include []string
	Reports m.Path
	Timeout time.Duration
	Options m.Options
}

// ListArgs contains the arguments for listing scripts.
type ListArgs struct {
	Root    m.Path
	Include []string
}

// ViewArgs contains the arguments for viewing a saved report.
type ViewArgs struct {
	Reports m.Path
}

// MergeArgs contains the arguments for merging reports.
type MergeArgs struct {
	Reports m.Path
	Inputs  []m.Path
}

// Workflow defines the user-facing operations of shcov.
type Workflow interface {
	Run(ctx context.Context, args RunArgs) error
	List(ctx context.Context, args ListArgs) error
	View(ctx context.Context, args ViewArgs) error
	Merge(ctx context.Context, args MergeArgs) error
}

type workflow struct {
	adapter.SourceFSAdapter
	adapter.ReportStore
	controller.UI
	process  adapter.ProcessAdapter
	lexer    Lexer
	reporter Reporter
	streams  Streams
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(
	fsAdapter adapter.SourceFSAdapter,
	reportStore adapter.ReportStore,
	ui controller.UI,
	process adapter.ProcessAdapter,
	lexer Lexer,
	reporter Reporter,
	streams Streams,
) Workflow {
	return &workflow{
		SourceFSAdapter: fsAdapter,
		ReportStore:     reportStore,
		UI:              ui,
		process:         process,
		lexer:           lexer,
		reporter:        reporter,
		streams:         streams,
	}
}

// Run traces args.Command, aggregates the coverage of every script under
// args.Root and saves the report. A non-zero exit of the command is
// returned as *ExitError after the report is saved.
func (w *workflow) Run(ctx context.Context, args RunArgs) error {
	if len(args.Command) == 0 {
		return ErrNoCommand
	}

	if err := w.Start(ctx, controller.WithRunMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	scripts, err := w.FindScripts(ctx, args.Root, args.Include)
	if err != nil {
		slog.Error("Failed to discover scripts", "root", args.Root, "error", err)
		return fmt.Errorf("discover scripts: %w", err)
	}

	aggregator := NewAggregator(w.SourceFSAdapter, w.lexer, w.reporter, args.Options)
	discovery := aggregator.Discover(ctx, scripts)

	if !args.Options.Mute {
		w.DisplayRunInfo(ctx, args.Command, len(scripts))
	}

	runner := NewRunner(w.process, w.reporter, args.Options, w.streams)

	result, err := runner.Run(ctx, RunSpec{
		Command: args.Command,
		Dir:     args.Root,
		Timeout: args.Timeout,
	})
	if err != nil {
		slog.Error("Failed to run command", "command", args.Command, "error", err)
		return fmt.Errorf("run command: %w", err)
	}

	report := m.Report{
		Version:   m.CurrentReportVersion,
		Command:   args.Command,
		Root:      args.Root,
		ExitCode:  result.ExitCode,
		CreatedAt: time.Now().UTC(),
		Files:     aggregator.Aggregate(discovery, result.Files),
	}

	if err := w.SaveReport(args.Reports, report); err != nil {
		slog.Error("Failed to save report", "reports", args.Reports, "error", err)
		return fmt.Errorf("save report: %w", err)
	}

	if err := w.DisplayCoverage(ctx, report); err != nil {
		slog.Error("Failed to display coverage", "error", err)
		return fmt.Errorf("display: %w", err)
	}

	if result.ExitCode != 0 {
		return &ExitError{Code: result.ExitCode}
	}

	return nil
}

// List shows the scripts a run would report on, with their relevant lines.
func (w *workflow) List(ctx context.Context, args ListArgs) error {
	if err := w.Start(ctx, controller.WithListMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	scripts, err := w.FindScripts(ctx, args.Root, args.Include)
	if err != nil {
		slog.Error("Failed to discover scripts", "root", args.Root, "error", err)
		return fmt.Errorf("discover scripts: %w", err)
	}

	infos := make([]m.ScriptInfo, 0, len(scripts))

	for _, script := range scripts {
		content, err := w.ReadFile(script)
		if err != nil {
			w.reporter.Warnf("%s: cannot read script: %v", script, err)
			continue
		}

		lines := m.CountLines(content)
		irrelevant := 0

		for _, lineno := range w.lexer.IrrelevantLines(content) {
			if lineno <= lines {
				irrelevant++
			}
		}

		infos = append(infos, m.ScriptInfo{
			Path:     script,
			Lines:    lines,
			Relevant: lines - irrelevant,
		})
	}

	if err := w.DisplayScripts(ctx, args.Root, infos); err != nil {
		slog.Error("Failed to display scripts", "error", err)
		return fmt.Errorf("display: %w", err)
	}

	return nil
}

// View displays a saved report.
func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	report, err := w.LoadReport(args.Reports)
	if err != nil {
		slog.Error("Failed to load report", "reports", args.Reports, "error", err)
		return fmt.Errorf("load report: %w", err)
	}

	if err := w.Start(ctx, controller.WithViewMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	if err := w.DisplayCoverage(ctx, report); err != nil {
		w.Close(ctx)
		slog.Error("Failed to display coverage", "error", err)

		return fmt.Errorf("display: %w", err)
	}

	w.Wait(ctx)
	w.Close(ctx)

	return nil
}

// Merge combines the reports of several runs into args.Reports.
func (w *workflow) Merge(ctx context.Context, args MergeArgs) error {
	if len(args.Inputs) == 0 {
		return errors.New("no reports to merge")
	}

	reports := make([]m.Report, 0, len(args.Inputs))
	maps := make([]m.Coverage, 0, len(args.Inputs))

	for _, input := range args.Inputs {
		report, err := w.LoadReport(input)
		if err != nil {
			slog.Error("Failed to load report", "report", input, "error", err)
			return fmt.Errorf("load report %s: %w", input, err)
		}

		reports = append(reports, report)
		maps = append(maps, report.Files)
	}

	merged := m.Report{
		Version:   m.CurrentReportVersion,
		Root:      commonRoot(reports),
		CreatedAt: time.Now().UTC(),
		Files:     MergeCoverage(maps...),
	}

	for _, report := range reports {
		if report.ExitCode != 0 && merged.ExitCode == 0 {
			merged.ExitCode = report.ExitCode
		}
	}

	if err := w.SaveReport(args.Reports, merged); err != nil {
		slog.Error("Failed to save report", "reports", args.Reports, "error", err)
		return fmt.Errorf("save report: %w", err)
	}

	if err := w.Start(ctx, controller.WithRunMode()); err != nil {
		return err
	}
	defer w.Close(ctx)

	if err := w.DisplayCoverage(ctx, merged); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	return nil
}

// commonRoot returns the shared root of the reports or "" when they differ.
func commonRoot(reports []m.Report) m.Path {
	root := reports[0].Root
	for _, report := range reports[1:] {
		if report.Root != root {
			return ""
		}
	}

	return root
}
