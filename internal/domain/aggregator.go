package domain

import (
	"context"
	"log/slog"

	"shcov.dev/pkg/shcov/internal/adapter"
	m "shcov.dev/pkg/shcov/internal/model"
)

// Aggregator combines discovery, trace results and relevance
// classification into the final coverage map.
type Aggregator struct {
	fs       adapter.SourceFSAdapter
	lexer    Lexer
	reporter Reporter
	options  m.Options
}

// NewAggregator constructs an Aggregator.
func NewAggregator(fs adapter.SourceFSAdapter, lexer Lexer, reporter Reporter, options m.Options) *Aggregator {
	if reporter == nil {
		reporter = DiscardReporter
	}

	return &Aggregator{
		fs:       fs,
		lexer:    lexer,
		reporter: reporter,
		options:  options,
	}
}

// Discover builds the discovery set: every script filled with Uncovered.
// It is empty when uncovered files are skipped.
func (a *Aggregator) Discover(ctx context.Context, scripts []m.Path) m.Coverage {
	discovery := make(m.Coverage)
	if a.options.SkipUncovered {
		return discovery
	}

	for _, script := range scripts {
		if ctx.Err() != nil {
			break
		}

		content, err := a.fs.ReadFile(script)
		if err != nil {
			slog.Warn("Skipping unreadable script", "path", script, "error", err)
			continue
		}

		discovery[script] = m.NewLines(m.CountLines(content), m.Uncovered)
	}

	return discovery
}

// Aggregate merges the traced hit arrays into discovery and applies the
// relevance classification. Neither input is modified. It runs to
// completion even for a cancelled run so partial traces are kept.
func (a *Aggregator) Aggregate(discovery, traced m.Coverage) m.Coverage {
	result := discovery.Clone()
	if a.options.SkipUncovered {
		result = make(m.Coverage)
	}

	contents := make(map[m.Path][]byte)
	unreadable := make(map[m.Path]bool)

	for _, path := range traced.Paths() {
		lines, ok := result[path]
		if !ok {
			content, readable := a.read(path)
			if readable == readDirectory {
				continue
			}

			if readable == readFailed {
				unreadable[path] = true
				result[path] = append([]m.LineStatus(nil), traced[path]...)
				continue
			}

			contents[path] = content
			lines = m.NewLines(m.CountLines(content), m.Uncovered)
		}

		for i, status := range traced[path] {
			if status == m.Unknown || i >= len(lines) {
				continue
			}

			lines[i] = status
		}

		result[path] = lines
	}

	for _, path := range result.Paths() {
		if unreadable[path] {
			continue
		}

		content, ok := contents[path]
		if !ok {
			var readable readResult

			content, readable = a.read(path)
			if readable != readOK {
				continue
			}
		}

		lines := result[path]
		for _, lineno := range a.lexer.IrrelevantLines(content) {
			if lineno-1 < len(lines) {
				lines[lineno-1] = m.Ignored
			}
		}
	}

	for _, lines := range result {
		for i, status := range lines {
			if status == m.Unknown {
				lines[i] = m.Uncovered
			}
		}
	}

	return result
}

type readResult int

const (
	readOK readResult = iota
	readDirectory
	readFailed
)

func (a *Aggregator) read(path m.Path) ([]byte, readResult) {
	info, err := a.fs.FileInfo(path)
	if err == nil && info.IsDir() {
		slog.Debug("Dropping trace records for directory", "path", path)
		return nil, readDirectory
	}

	content, err := a.fs.ReadFile(path)
	if err != nil {
		a.reporter.Warnf("%s: cannot read traced file: %v", path, err)
		return nil, readFailed
	}

	return content, readOK
}
