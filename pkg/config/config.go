package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	goble "github.com/srg/blecentral/internal/device/go-ble"
)

// Config holds application configuration
type Config struct {
	LogLevel        string        `yaml:"log_level" default:""`
	ScanOnce        bool          `yaml:"scan_once" default:"false"`
	Connect         bool          `yaml:"connect" default:"false"`
	AllowDuplicates bool          `yaml:"allow_duplicates" default:"false"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"30s"`
	ScanTimeout     time.Duration `yaml:"scan_timeout" default:"0s"`
	EventBuffer     int           `yaml:"event_buffer" default:"256"`
	Color           bool          `yaml:"color" default:"true"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file on top of the defaults.
// Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout must not be negative: %s", c.ConnectTimeout)
	}
	if c.ScanTimeout < 0 {
		return fmt.Errorf("scan_timeout must not be negative: %s", c.ScanTimeout)
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("event_buffer must be positive: %d", c.EventBuffer)
	}
	return nil
}

// Level maps LogLevel to a logrus level. An empty level is silent.
func (c *Config) Level() (logrus.Level, error) {
	switch c.LogLevel {
	case "":
		return logrus.PanicLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.PanicLevel, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}

// CentralOptions converts the configuration into go-ble Central options.
func (c *Config) CentralOptions() *goble.Options {
	return &goble.Options{
		AllowDuplicates: c.AllowDuplicates,
		ConnectTimeout:  c.ConnectTimeout,
		ScanTimeout:     c.ScanTimeout,
		EventBuffer:     c.EventBuffer,
	}
}
