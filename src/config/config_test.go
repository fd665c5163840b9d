package config

import (
	"os"
	"path/filepath"
	"testing"
)

var configVars = []string{
	"SNAPZONE_DURATION", "SNAPZONE_INTERVAL", "SNAPZONE_SAVE_DIR", "ENABLE_FILE_LOGGING",
	"NOTIFY_ON_SHOT", "NOTIFY_ON_COMPLETE", "HOTKEY_PAUSE", "HOTKEY_STOP", "START_IN_TRAY",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadWithOptions(LoadOptions{EnvPathOverride: writeEnv(t, "")})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.DurationSec != 60 || cfg.IntervalSec != 5 {
		t.Errorf("Expected 60s/5s defaults, got %d/%d", cfg.DurationSec, cfg.IntervalSec)
	}
	if !cfg.NotifyOnShot || !cfg.NotifyOnComplete {
		t.Errorf("Expected notifications enabled by default")
	}
	if cfg.EnableFileLogging || cfg.StartInTray {
		t.Errorf("Expected file logging and tray start disabled by default")
	}
	if cfg.PauseHotkey != "Ctrl+Alt+P" || cfg.StopHotkey != "Ctrl+Alt+S" {
		t.Errorf("Unexpected default hotkeys %q %q", cfg.PauseHotkey, cfg.StopHotkey)
	}
	if cfg.SaveDir != DefaultSaveDir() {
		t.Errorf("Expected default save dir %q, got %q", DefaultSaveDir(), cfg.SaveDir)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeEnv(t, "SNAPZONE_DURATION=0\nSNAPZONE_INTERVAL=2\nSNAPZONE_SAVE_DIR="+dir+"\nNOTIFY_ON_SHOT=false\nHOTKEY_STOP=Ctrl+Shift+F12\n")

	cfg, err := LoadWithOptions(LoadOptions{EnvPathOverride: path})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.DurationSec != 0 || cfg.IntervalSec != 2 {
		t.Errorf("Expected 0/2, got %d/%d", cfg.DurationSec, cfg.IntervalSec)
	}
	if cfg.SaveDir != dir {
		t.Errorf("Expected save dir %q, got %q", dir, cfg.SaveDir)
	}
	if cfg.NotifyOnShot {
		t.Error("Expected NotifyOnShot=false from the env file")
	}
	if cfg.StopHotkey != "Ctrl+Shift+F12" {
		t.Errorf("Expected stop hotkey from env file, got %q", cfg.StopHotkey)
	}
	if cfg.EnvPath != path {
		t.Errorf("Expected EnvPath %q, got %q", path, cfg.EnvPath)
	}
}

func TestProcessEnvWinsOverFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("SNAPZONE_INTERVAL", "9")
	cfg, err := LoadWithOptions(LoadOptions{EnvPathOverride: writeEnv(t, "SNAPZONE_INTERVAL=2\n")})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IntervalSec != 9 {
		t.Errorf("Expected process env to win, got %d", cfg.IntervalSec)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("SNAPZONE_DURATION", "sixty")
	if _, err := LoadWithOptions(LoadOptions{EnvPathOverride: writeEnv(t, "")}); err == nil {
		t.Error("Expected a parse error for a non-numeric duration")
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadWithOptions(LoadOptions{EnvPathOverride: filepath.Join(t.TempDir(), "missing.env")})
	if err == nil {
		t.Error("Expected an error for a missing override file")
	}
}

func TestResolveSaveDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"~", home},
		{"~/shots", filepath.Join(home, "shots")},
		{"/var/tmp", "/var/tmp"},
		{"  relative ", "relative"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := resolveSaveDir(tt.in); got != tt.want {
				t.Errorf("resolveSaveDir(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
