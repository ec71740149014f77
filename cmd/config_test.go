package cmd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "shcov", configBaseName)
	assert.Equal(t, "shcov.yaml", configFileName)
	assert.Equal(t, ".", configFolderPath)
	assert.Equal(t, "output", outputFlagName)
	assert.Equal(t, "paths.include", includeConfigKey)
	assert.Equal(t, "run.skip_uncovered", skipUncoveredConfigKey)
	assert.Equal(t, "run.mute", muteConfigKey)
	assert.Equal(t, "run.timeout", timeoutConfigKey)
	assert.Equal(t, ".shcov-reports", defaultReportsDir)
	assert.Equal(t, "SHCOV", envPrefix)
}

func TestConfigVersionConstants(t *testing.T) {
	assert.Equal(t, "version", configVersionKey)
	assert.Equal(t, 1, currentConfigVersion)
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"-4", slog.LevelDebug},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSlogLevel(tt.value, slog.LevelInfo))
		})
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	newRootCmd()

	loaded, err := loadSettings()
	require.NoError(t, err)

	assert.Equal(t, defaultReportsDir, loaded.Output)
	assert.Equal(t, []string{"*.sh"}, loaded.Include)
	assert.False(t, loaded.SkipUncovered)
	assert.False(t, loaded.Mute)
	assert.Equal(t, time.Duration(0), loaded.Timeout)
}

func TestValidateSettings(t *testing.T) {
	valid := settings{
		Output:      defaultReportsDir,
		Include:     []string{"*.sh"},
		LogFilename: defaultLogFilename,
	}
	require.NoError(t, validateSettings(valid))

	tests := []struct {
		name   string
		mutate func(*settings)
		field  string
	}{
		{"negative timeout", func(s *settings) { s.Timeout = -time.Second }, "Timeout"},
		{"no include patterns", func(s *settings) { s.Include = nil }, "Include"},
		{"empty include pattern", func(s *settings) { s.Include = []string{""} }, "Include"},
		{"empty output", func(s *settings) { s.Output = "" }, "Output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := valid
			tt.mutate(&broken)

			err := validateSettings(broken)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
