/*
Package config loads server configuration.

PRECEDENCE (lowest to highest):
  1. Default()
  2. YAML file (optional; a missing file is not an error)
  3. Environment variables
  4. Command-line flags (applied by cmd/server)

ENVIRONMENT:
  BALANCER_PORT                      HTTP port
  BALANCER_DB_PATH                   SQLite path, ":memory:" for in-memory
  BALANCER_REDISTRIBUTION_THRESHOLD  drift fraction that triggers a run (0.1)
  BALANCER_TIMEZONE_OFFSET           minutes from UTC used for "today"
  BALANCER_SCHEDULER_INTERVAL        Go duration, e.g. "30m"
  BALANCER_LOG_LEVEL                 debug, info, warn, error

EXAMPLE FILE:
  server:
    port: 8080
    allowed_origins: ["http://localhost:5173"]
  database:
    path: ./data/milestones.db
  balancer:
    redistribution_threshold: 0.1
    timezone_offset_minutes: 330
  scheduler:
    enabled: true
    interval: 1h
  log:
    level: info
*/
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Balancer  BalancerConfig  `yaml:"balancer"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BalancerConfig struct {
	// Fraction of the target that recorded progress may drift from observed
	// progress before the scheduler redistributes.
	RedistributionThreshold float64 `yaml:"redistribution_threshold"`

	// Minutes from UTC used to decide the current day.
	TimezoneOffsetMinutes int `yaml:"timezone_offset_minutes"`
}

// Threshold returns RedistributionThreshold as a decimal.
func (b BalancerConfig) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(b.RedistributionThreshold)
}

type SchedulerConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration is a time.Duration written as "90s", "30m", "1h" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Database: DatabaseConfig{Path: "milestones.db"},
		Balancer: BalancerConfig{RedistributionThreshold: 0.1},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Interval: Duration(time.Hour),
		},
		Log: LogConfig{Level: "info"},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// EnvLookup mirrors os.LookupEnv.
type EnvLookup func(string) (string, bool)

type loadOptions struct {
	envLookup EnvLookup
	readFile  func(string) ([]byte, error)
}

// Option customizes Load.
type Option func(*loadOptions)

// WithEnvLookup replaces os.LookupEnv.
func WithEnvLookup(lookup EnvLookup) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// WithReadFile replaces os.ReadFile.
func WithReadFile(read func(string) ([]byte, error)) Option {
	return func(o *loadOptions) { o.readFile = read }
}

// Load reads path (if set and present) over Default(), then applies
// environment overrides. The result is not validated.
func Load(path string, opts ...Option) (Config, error) {
	options := loadOptions{envLookup: os.LookupEnv, readFile: os.ReadFile}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		data, err := options.readFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config file: %w", err)
		case len(bytes.TrimSpace(data)) > 0:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg, options.envLookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup EnvLookup) error {
	if v, ok := lookupTrimmed(lookup, "BALANCER_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BALANCER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookupTrimmed(lookup, "BALANCER_DB_PATH"); ok {
		cfg.Database.Path = v
	}
	if v, ok := lookupTrimmed(lookup, "BALANCER_REDISTRIBUTION_THRESHOLD"); ok {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BALANCER_REDISTRIBUTION_THRESHOLD: %w", err)
		}
		cfg.Balancer.RedistributionThreshold = threshold
	}
	if v, ok := lookupTrimmed(lookup, "BALANCER_TIMEZONE_OFFSET"); ok {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BALANCER_TIMEZONE_OFFSET: %w", err)
		}
		cfg.Balancer.TimezoneOffsetMinutes = offset
	}
	if v, ok := lookupTrimmed(lookup, "BALANCER_SCHEDULER_INTERVAL"); ok {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BALANCER_SCHEDULER_INTERVAL: %w", err)
		}
		cfg.Scheduler.Interval = Duration(interval)
	}
	if v, ok := lookupTrimmed(lookup, "BALANCER_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	return nil
}

func lookupTrimmed(lookup EnvLookup, key string) (string, bool) {
	if lookup == nil {
		return "", false
	}
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// =============================================================================
// VALIDATION
// =============================================================================

const maxTimezoneOffsetMinutes = 14 * 60

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if t := c.Balancer.RedistributionThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("balancer.redistribution_threshold %v must be in (0, 1]", t))
	}
	if o := c.Balancer.TimezoneOffsetMinutes; o < -maxTimezoneOffsetMinutes || o > maxTimezoneOffsetMinutes {
		errs = append(errs, fmt.Errorf("balancer.timezone_offset_minutes %d out of range", o))
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("scheduler.interval must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}
