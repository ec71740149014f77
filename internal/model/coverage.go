// Package model defines the data structures for shell script coverage.
package model

import (
	"bytes"
	"sort"
	"strconv"
)

// LineStatus is the coverage state of one physical line.
//
// Non-negative values are hit counts: 0 means the line is relevant but was
// never executed, n > 0 means it was executed n times. Negative values are
// reserved markers.
type LineStatus int

const (
	// Unknown marks a position that was never classified. It only pads
	// trace arrays and never survives aggregation.
	Unknown LineStatus = -3
	// Indeterminate marks a line without a reliable hit count, null in reports.
	Indeterminate LineStatus = -2
	// Ignored marks a line that can never be traced on its own.
	Ignored LineStatus = -1
	// Uncovered marks a relevant line that was never executed.
	Uncovered LineStatus = 0
)

// Covered returns the status of a line executed hits times.
func Covered(hits int) LineStatus {
	if hits < 1 {
		hits = 1
	}

	return LineStatus(hits)
}

// Hits returns the number of recorded executions.
func (s LineStatus) Hits() int {
	if s > 0 {
		return int(s)
	}

	return 0
}

// IsCovered reports whether the line was executed at least once.
func (s LineStatus) IsCovered() bool {
	return s > 0
}

// IsRelevant reports whether the line counts towards the coverage ratio.
func (s LineStatus) IsRelevant() bool {
	return s >= Uncovered
}

func (s LineStatus) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Indeterminate:
		return "indeterminate"
	case Ignored:
		return "ignored"
	case Uncovered:
		return "uncovered"
	}

	if s < 0 {
		return "invalid(" + strconv.Itoa(int(s)) + ")"
	}

	return "covered(" + strconv.Itoa(int(s)) + ")"
}

// NewLines returns n statuses set to fill.
func NewLines(n int, fill LineStatus) []LineStatus {
	lines := make([]LineStatus, n)
	for i := range lines {
		lines[i] = fill
	}

	return lines
}

// CountLines returns the number of line terminators in content. A trailing
// line without a newline is not counted.
func CountLines(content []byte) int {
	return bytes.Count(content, []byte{'\n'})
}

// Coverage maps absolute script paths to per-line statuses.
type Coverage map[Path][]LineStatus

// Paths returns the covered paths in lexical order.
func (c Coverage) Paths() []Path {
	paths := make([]Path, 0, len(c))
	for path := range c {
		paths = append(paths, path)
	}

	sort.Slice(paths, func(i, j int) bool {
		return paths[i] < paths[j]
	})

	return paths
}

// Clone returns a deep copy of the coverage map.
func (c Coverage) Clone() Coverage {
	clone := make(Coverage, len(c))
	for path, lines := range c {
		clone[path] = append([]LineStatus(nil), lines...)
	}

	return clone
}

// SimpleCov returns the coverage in the encoding SimpleCov reporters expect:
// hit counts for relevant lines and nil for everything else.
func (c Coverage) SimpleCov() map[string][]*int {
	out := make(map[string][]*int, len(c))

	for path, lines := range c {
		encoded := make([]*int, len(lines))

		for i, status := range lines {
			if !status.IsRelevant() {
				continue
			}

			hits := status.Hits()
			encoded[i] = &hits
		}

		out[string(path)] = encoded
	}

	return out
}

// FileSummary aggregates the statuses of one file.
type FileSummary struct {
	Path          Path
	Lines         int
	Relevant      int
	Covered       int
	Ignored       int
	Indeterminate int
}

// Percent returns the covered share of relevant lines, in percent.
func (s FileSummary) Percent() float64 {
	if s.Relevant == 0 {
		return 100
	}

	return float64(s.Covered) / float64(s.Relevant) * 100
}

// Add accumulates other into s.
func (s *FileSummary) Add(other FileSummary) {
	s.Lines += other.Lines
	s.Relevant += other.Relevant
	s.Covered += other.Covered
	s.Ignored += other.Ignored
	s.Indeterminate += other.Indeterminate
}

// Summarize computes the summary of a single file.
func Summarize(path Path, lines []LineStatus) FileSummary {
	summary := FileSummary{Path: path, Lines: len(lines)}

	for _, status := range lines {
		switch {
		case status.IsCovered():
			summary.Relevant++
			summary.Covered++
		case status == Uncovered:
			summary.Relevant++
		case status == Ignored:
			summary.Ignored++
		case status == Indeterminate:
			summary.Indeterminate++
		}
	}

	return summary
}

// Summaries returns one summary per file, ordered by path.
func (c Coverage) Summaries() []FileSummary {
	paths := c.Paths()
	summaries := make([]FileSummary, 0, len(paths))

	for _, path := range paths {
		summaries = append(summaries, Summarize(path, c[path]))
	}

	return summaries
}
