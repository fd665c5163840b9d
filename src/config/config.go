package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvFileVar names an alternative .env file, used when none sits beside the executable.
const EnvFileVar = "SNAPZONE_ENV"

type LoadOptions struct {
	// EnvPathOverride replaces the .env lookup when set.
	EnvPathOverride string
}

type Config struct {
	DurationSec       int    `env:"SNAPZONE_DURATION" envDefault:"60"`
	IntervalSec       int    `env:"SNAPZONE_INTERVAL" envDefault:"5"`
	SaveDir           string `env:"SNAPZONE_SAVE_DIR"`
	EnableFileLogging bool   `env:"ENABLE_FILE_LOGGING" envDefault:"false"`
	NotifyOnShot      bool   `env:"NOTIFY_ON_SHOT" envDefault:"true"`
	NotifyOnComplete  bool   `env:"NOTIFY_ON_COMPLETE" envDefault:"true"`
	PauseHotkey       string `env:"HOTKEY_PAUSE" envDefault:"Ctrl+Alt+P"`
	StopHotkey        string `env:"HOTKEY_STOP" envDefault:"Ctrl+Alt+S"`
	StartInTray       bool   `env:"START_IN_TRAY" envDefault:"false"`

	// EnvPath is the .env file that was loaded, if any.
	EnvPath string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order: process environment, then the .env file.
	// godotenv never overrides variables that are already set.
	envPath := strings.TrimSpace(opts.EnvPathOverride)
	if envPath == "" {
		envPath = resolveEnvPath()
	}
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	cfg := &Config{EnvPath: envPath}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.SaveDir = resolveSaveDir(cfg.SaveDir)
	return cfg, nil
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return ""
}

// DefaultSaveDir is ~/Desktop, or the home directory when there is no Desktop.
func DefaultSaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	desktop := filepath.Join(home, "Desktop")
	if fi, err := os.Stat(desktop); err == nil && fi.IsDir() {
		return desktop
	}
	return home
}

func resolveSaveDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return DefaultSaveDir()
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") || strings.HasPrefix(dir, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, dir[1:])
		}
	}
	return dir
}
