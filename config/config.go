// Package config loads the household configuration file. Chore-level
// settings always win over these values; the defaults here are what
// unset chores fall back to.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/librota/librota/recurrence"
	"github.com/librota/librota/rotation"
)

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone used for rotation checks and
	// calendar rendering (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone"`

	// DatabasePath is the SQLite database location.
	DatabasePath string `yaml:"database_path"`

	// RotationCheckCron is the cron schedule for the rotation sweep.
	RotationCheckCron string `yaml:"rotation_check"`

	// DefaultRotationFrequency applies to chores without their own
	// frequency: "daily", "weekly" or "monthly".
	DefaultRotationFrequency string `yaml:"default_rotation_frequency"`

	// WeeklyAnchorDay is the weekday (0 = Sunday) weekly rotations
	// fire on when a chore has no anchor of its own.
	WeeklyAnchorDay int `yaml:"weekly_anchor_day"`

	// MonthlyAnchorDay is the day of month monthly rotations fire on
	// when a chore has no anchor of its own.
	MonthlyAnchorDay int `yaml:"monthly_anchor_day"`

	// MonthlyOverflow picks the policy for monthly rules targeting a
	// day short months don't have: "skip" or "clamp".
	MonthlyOverflow string `yaml:"monthly_overflow"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Timezone:                 "Local",
		DatabasePath:             "./data/librota.db",
		RotationCheckCron:        "*/5 * * * *",
		DefaultRotationFrequency: string(rotation.FrequencyWeekly),
		WeeklyAnchorDay:          rotation.FallbackWeeklyAnchor,
		MonthlyAnchorDay:         rotation.FallbackMonthlyAnchor,
		MonthlyOverflow:          "skip",
	}
}

// Normalize fills in missing or out-of-range values so partially
// filled configs still behave.
func (c *Config) Normalize() {
	d := Default()

	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.DatabasePath == "" {
		c.DatabasePath = d.DatabasePath
	}
	if c.RotationCheckCron == "" {
		c.RotationCheckCron = d.RotationCheckCron
	}

	switch rotation.Frequency(c.DefaultRotationFrequency) {
	case rotation.FrequencyDaily, rotation.FrequencyWeekly, rotation.FrequencyMonthly:
	default:
		c.DefaultRotationFrequency = d.DefaultRotationFrequency
	}

	if c.WeeklyAnchorDay < 0 || c.WeeklyAnchorDay > 6 {
		c.WeeklyAnchorDay = d.WeeklyAnchorDay
	}
	if c.MonthlyAnchorDay < 1 || c.MonthlyAnchorDay > 31 {
		c.MonthlyAnchorDay = d.MonthlyAnchorDay
	}

	switch c.MonthlyOverflow {
	case "skip", "clamp":
	default:
		c.MonthlyOverflow = d.MonthlyOverflow
	}
}

// Load reads configuration from the given YAML path. A missing file is
// not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// RotationDefaults converts the config into the defaults the rotation
// scheduler consumes.
func (c *Config) RotationDefaults() rotation.Defaults {
	return rotation.Defaults{
		Frequency:     rotation.Frequency(c.DefaultRotationFrequency),
		WeeklyAnchor:  c.WeeklyAnchorDay,
		MonthlyAnchor: c.MonthlyAnchorDay,
	}
}

// EvaluatorOptions converts the config into recurrence evaluator
// options.
func (c *Config) EvaluatorOptions() recurrence.Options {
	opts := recurrence.DefaultOptions
	if c.MonthlyOverflow == "clamp" {
		opts.MonthlyOverflow = recurrence.OverflowClamp
	}
	return opts
}
