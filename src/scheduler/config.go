package scheduler

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"snapzone/src/screenshot"
)

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrAlreadyRunning = errors.New("capture session already active")
)

// Config is the immutable input of one capture session.
type Config struct {
	Duration time.Duration // 0 means unlimited
	Interval time.Duration
	SaveDir  string
	Region   screenshot.Rectangle
}

// ConfigError names the offending setting. It matches ErrInvalidConfig.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason) }

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// ConfigFromSeconds builds a Config from the whole-second values the settings
// window and the environment use.
func ConfigFromSeconds(durationSec, intervalSec int, saveDir string, region screenshot.Rectangle) Config {
	return Config{
		Duration: time.Duration(durationSec) * time.Second,
		Interval: time.Duration(intervalSec) * time.Second,
		SaveDir:  saveDir,
		Region:   region,
	}
}

// ParseSeconds parses a seconds field typed by the user.
func ParseSeconds(field, text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, &ConfigError{Field: field, Reason: "must be a whole number of seconds"}
	}
	return n, nil
}

// Validate checks every setting without touching the file system beyond
// reading the save directory's permissions.
func Validate(cfg Config) error {
	if cfg.Duration < 0 {
		return &ConfigError{Field: "duration", Reason: "cannot be negative"}
	}
	if cfg.Interval <= 0 {
		return &ConfigError{Field: "interval", Reason: "must be positive"}
	}

	dir := strings.TrimSpace(cfg.SaveDir)
	if dir == "" {
		return &ConfigError{Field: "save directory", Reason: "is required"}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return &ConfigError{Field: "save directory", Reason: fmt.Sprintf("cannot write to directory: %s", dir)}
	}
	if !info.IsDir() {
		return &ConfigError{Field: "save directory", Reason: fmt.Sprintf("not a directory: %s", dir)}
	}
	if err := checkWritable(dir); err != nil {
		return &ConfigError{Field: "save directory", Reason: fmt.Sprintf("cannot write to directory: %s", dir)}
	}

	if cfg.Region.IsZero() {
		return &ConfigError{Field: "region", Reason: "no capture region selected"}
	}
	if !cfg.Region.Valid() {
		return &ConfigError{Field: "region", Reason: fmt.Sprintf("region %s is smaller than %dx%d", cfg.Region, screenshot.MinSide, screenshot.MinSide)}
	}
	return nil
}
