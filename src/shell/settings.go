package shell

import (
	"errors"
	"strconv"
	"sync"

	"snapzone/src/scheduler"
	"snapzone/src/screenshot"
	"snapzone/src/status"
)

// Settings holds what the window's inputs currently say. The window writes it
// from the UI goroutine; the control loop reads it from its own goroutine.
type Settings struct {
	mu       sync.Mutex
	duration string
	interval string
	saveDir  string
	region   screenshot.Rectangle
}

func NewSettings(durationSec, intervalSec int, saveDir string) *Settings {
	return &Settings{
		duration: strconv.Itoa(durationSec),
		interval: strconv.Itoa(intervalSec),
		saveDir:  saveDir,
	}
}

func (s *Settings) SetDuration(text string) { s.set(&s.duration, text) }
func (s *Settings) SetInterval(text string) { s.set(&s.interval, text) }
func (s *Settings) SetSaveDir(dir string)   { s.set(&s.saveDir, dir) }

func (s *Settings) set(field *string, v string) {
	s.mu.Lock()
	*field = v
	s.mu.Unlock()
}

func (s *Settings) SetRegion(r screenshot.Rectangle) {
	s.mu.Lock()
	s.region = r
	s.mu.Unlock()
}

func (s *Settings) Region() screenshot.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.region
}

// Texts returns the raw input values.
func (s *Settings) Texts() (duration, interval, saveDir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration, s.interval, s.saveDir
}

// Config parses and validates the current inputs.
func (s *Settings) Config() (scheduler.Config, error) {
	s.mu.Lock()
	duration, interval, dir, region := s.duration, s.interval, s.saveDir, s.region
	s.mu.Unlock()

	d, err := scheduler.ParseSeconds("duration", duration)
	if err != nil {
		return scheduler.Config{}, err
	}
	i, err := scheduler.ParseSeconds("interval", interval)
	if err != nil {
		return scheduler.Config{}, err
	}
	cfg := scheduler.ConfigFromSeconds(d, i, dir, region)
	if err := scheduler.Validate(cfg); err != nil {
		return scheduler.Config{}, err
	}
	return cfg, nil
}

// ErrorTitle picks the dialog title for a start failure.
func ErrorTitle(err error) string {
	var ce *scheduler.ConfigError
	switch {
	case errors.As(err, &ce) && ce.Field == "save directory":
		return "Invalid Directory"
	case errors.As(err, &ce) && ce.Field == "region":
		return "No Region Selected"
	case errors.Is(err, scheduler.ErrInvalidConfig):
		return "Invalid Input"
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		return "Capture Running"
	default:
		return "Capture Failed"
	}
}

// StatusText is the window's status label for v.
func StatusText(v status.View) string {
	if v.Status == scheduler.Idle {
		if v.SessionDir == "" {
			return "Ready"
		}
		return "Stopped"
	}
	return v.Status.String()
}

// RegionText is the region label: "<w>x<h> px" or "Not selected".
func RegionText(r screenshot.Rectangle) string {
	if r.IsZero() {
		return "Not selected"
	}
	return r.Size()
}
