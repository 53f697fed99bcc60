package config

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls the global logrus logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`

	// Format is text or json.
	Format string `yaml:"format" env:"FORMAT"`

	// Output is stdout or stderr.
	Output string `yaml:"output" env:"OUTPUT"`

	EnableCaller bool `yaml:"enable_caller" env:"CALLER"`
	EnableColors bool `yaml:"enable_colors" env:"COLORS"`
}

// DefaultLoggingConfig returns info-level text logs on stderr.
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}
}

// Validate checks the level, format and output names.
func (c *LoggingConfig) Validate() error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid log format: %s, must be 'text' or 'json'", c.Format)
	}
	if c.Output != "stdout" && c.Output != "stderr" {
		return fmt.Errorf("invalid log output: %s, must be 'stdout' or 'stderr'", c.Output)
	}
	return nil
}

// SetupLogger applies config to the standard logrus logger. A nil config
// selects DefaultLoggingConfig.
func SetupLogger(config *LoggingConfig) error {
	return setupLogger(logrus.StandardLogger(), config)
}

func setupLogger(logger *logrus.Logger, config *LoggingConfig) error {
	if config == nil {
		config = DefaultLoggingConfig()
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	logger.SetLevel(level)

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	}
	logger.SetOutput(output)

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FullTimestamp:   true,
			ForceColors:     config.EnableColors,
		})
	}
	logger.SetReportCaller(config.EnableCaller)

	return nil
}
