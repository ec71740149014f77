package model

import "time"

// CurrentReportVersion is the version written into new reports.
const CurrentReportVersion = 1

// Report is the persisted result of one or more coverage runs.
type Report struct {
	Version   int       `yaml:"version" json:"version"`
	Command   []string  `yaml:"command,omitempty" json:"command,omitempty"`
	Root      Path      `yaml:"root" json:"root"`
	ExitCode  int       `yaml:"exit_code" json:"exit_code"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	Files     Coverage  `yaml:"files" json:"files"`
}

// Summary returns the per-file summaries together with their total.
func (r Report) Summary() ([]FileSummary, FileSummary) {
	summaries := r.Files.Summaries()

	var total FileSummary
	for _, summary := range summaries {
		total.Add(summary)
	}

	return summaries, total
}
