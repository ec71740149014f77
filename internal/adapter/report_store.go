package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	m "shcov.dev/pkg/shcov/internal/model"
)

const (
	// ReportFileName is the YAML report written into the reports directory.
	ReportFileName = "coverage.yaml"
	// ResultSetFileName is the SimpleCov compatible result set.
	ResultSetFileName = ".resultset.json"
	// ResultSetCommandName keys the result set entry.
	ResultSetCommandName = "shcov"
)

// ReportStore persists coverage reports.
type ReportStore interface {
	// SaveReport writes the report files into dir, creating it if needed.
	SaveReport(dir m.Path, report m.Report) error
	// LoadReport reads a report from a reports directory or a report file.
	LoadReport(path m.Path) (m.Report, error)
}

// LocalReportStore implements ReportStore on top of an afero.Fs.
type LocalReportStore struct {
	fs afero.Fs
}

// NewReportStore constructs a store backed by the OS filesystem.
func NewReportStore() *LocalReportStore {
	return NewReportStoreWithFs(afero.NewOsFs())
}

// NewReportStoreWithFs constructs a store backed by fs.
func NewReportStoreWithFs(fs afero.Fs) *LocalReportStore {
	return &LocalReportStore{fs: fs}
}

type resultSetEntry struct {
	Coverage  map[string]resultSetFile `json:"coverage"`
	Timestamp int64                    `json:"timestamp"`
}

type resultSetFile struct {
	Lines []*int `json:"lines"`
}

// SaveReport implements ReportStore.
func (s *LocalReportStore) SaveReport(dir m.Path, report m.Report) error {
	if err := s.fs.MkdirAll(string(dir), 0o755); err != nil {
		return fmt.Errorf("failed to create reports directory %s: %w", dir, err)
	}

	if report.Version == 0 {
		report.Version = m.CurrentReportVersion
	}

	var buffer bytes.Buffer

	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(2)

	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	reportPath := filepath.Join(string(dir), ReportFileName)
	if err := afero.WriteFile(s.fs, reportPath, buffer.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", reportPath, err)
	}

	resultSet, err := EncodeResultSet(report)
	if err != nil {
		return err
	}

	resultSetPath := filepath.Join(string(dir), ResultSetFileName)
	if err := afero.WriteFile(s.fs, resultSetPath, resultSet, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", resultSetPath, err)
	}

	return nil
}

// EncodeResultSet renders the report in the SimpleCov result set format.
func EncodeResultSet(report m.Report) ([]byte, error) {
	files := make(map[string]resultSetFile, len(report.Files))
	for path, lines := range report.Files.SimpleCov() {
		files[path] = resultSetFile{Lines: lines}
	}

	data, err := json.MarshalIndent(map[string]resultSetEntry{
		ResultSetCommandName: {
			Coverage:  files,
			Timestamp: report.CreatedAt.Unix(),
		},
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result set: %w", err)
	}

	return append(data, '\n'), nil
}

// LoadReport implements ReportStore.
func (s *LocalReportStore) LoadReport(path m.Path) (m.Report, error) {
	file := string(path)

	info, err := s.fs.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			return m.Report{}, fmt.Errorf("no report found at %s: %w", path, err)
		}

		return m.Report{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if info.IsDir() {
		file = filepath.Join(file, ReportFileName)
	}

	data, err := afero.ReadFile(s.fs, file)
	if err != nil {
		return m.Report{}, fmt.Errorf("failed to read %s: %w", file, err)
	}

	var report m.Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		return m.Report{}, fmt.Errorf("failed to decode %s: %w", file, err)
	}

	if report.Version > m.CurrentReportVersion {
		return m.Report{}, fmt.Errorf("%s: unsupported report version %d", file, report.Version)
	}

	if report.Files == nil {
		report.Files = make(m.Coverage)
	}

	return report, nil
}
