package domain

import (
	m "shcov.dev/pkg/shcov/internal/model"
)

// MergeStatus combines the status of one line from two runs. Ignored wins,
// hit counts add up, and otherwise Covered beats Indeterminate beats
// Uncovered beats Unknown.
func MergeStatus(a, b m.LineStatus) m.LineStatus {
	switch {
	case a == m.Ignored || b == m.Ignored:
		return m.Ignored
	case a.IsCovered() || b.IsCovered():
		return m.Covered(a.Hits() + b.Hits())
	case a == m.Indeterminate || b == m.Indeterminate:
		return m.Indeterminate
	case a == m.Uncovered || b == m.Uncovered:
		return m.Uncovered
	}

	return m.Unknown
}

// MergeCoverage merges several coverage maps into a new one. Arrays of
// different lengths are merged up to the longer one.
func MergeCoverage(maps ...m.Coverage) m.Coverage {
	merged := make(m.Coverage)

	for _, coverage := range maps {
		for path, lines := range coverage {
			current := merged[path]
			if len(current) < len(lines) {
				current = append(current, m.NewLines(len(lines)-len(current), m.Unknown)...)
			}

			for i, status := range lines {
				current[i] = MergeStatus(current[i], status)
			}

			merged[path] = current
		}
	}

	for _, lines := range merged {
		for i, status := range lines {
			if status == m.Unknown {
				lines[i] = m.Uncovered
			}
		}
	}

	return merged
}
