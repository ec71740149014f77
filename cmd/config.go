package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "shcov"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName        = "output"
	includeFlagName       = "include"
	skipUncoveredFlagName = "skip-uncovered"
	muteFlagName          = "mute"
	timeoutFlagName       = "timeout"
	verboseFlagName       = "verbose"
	logFileFlagName       = "log-file"

	includeConfigKey       = "paths.include"
	skipUncoveredConfigKey = "run.skip_uncovered"
	muteConfigKey          = "run.mute"
	timeoutConfigKey       = "run.timeout"

	defaultReportsDir    = ".shcov-reports"
	defaultSkipUncovered = false
	defaultMute          = false
	defaultTimeout       = time.Duration(0)

	envPrefix = "SHCOV"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".shcov.log"
	defaultLogLevel      = "info"
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var defaultInclude = []string{"*.sh"}

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultReportsDir)
	viper.SetDefault(includeConfigKey, defaultInclude)
	viper.SetDefault(skipUncoveredConfigKey, defaultSkipUncovered)
	viper.SetDefault(muteConfigKey, defaultMute)
	viper.SetDefault(timeoutConfigKey, defaultTimeout.String())

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

// settings are the resolved config values a command works with.
type settings struct {
	Output        string        `validate:"required"`
	Include       []string      `validate:"min=1,dive,required"`
	SkipUncovered bool
	Mute          bool
	Timeout       time.Duration `validate:"gte=0"`
	LogFilename   string        `validate:"required"`
	LogMaxSize    int           `validate:"gte=0"`
	LogMaxBackups int           `validate:"gte=0"`
	LogMaxAge     int           `validate:"gte=0"`
}

var settingsValidator = validator.New()

// loadSettings reads the settings from viper and validates them.
func loadSettings() (settings, error) {
	loaded := settings{
		Output:        viper.GetString(outputFlagName),
		Include:       viper.GetStringSlice(includeConfigKey),
		SkipUncovered: viper.GetBool(skipUncoveredConfigKey),
		Mute:          viper.GetBool(muteConfigKey),
		Timeout:       viper.GetDuration(timeoutConfigKey),
		LogFilename:   viper.GetString(logFilenameKey),
		LogMaxSize:    viper.GetInt(logMaxSizeKey),
		LogMaxBackups: viper.GetInt(logMaxBackupsKey),
		LogMaxAge:     viper.GetInt(logMaxAgeKey),
	}

	if err := validateSettings(loaded); err != nil {
		return settings{}, err
	}

	return loaded, nil
}

func validateSettings(loaded settings) error {
	err := settingsValidator.Struct(loaded)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		first := validationErrors[0]
		return fmt.Errorf("invalid configuration: %s failed %q", first.Namespace(), first.Tag())
	}

	return fmt.Errorf("invalid configuration: %w", err)
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose || viper.GetBool(logVerboseKey) {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
