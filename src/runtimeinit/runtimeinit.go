package runtimeinit

import (
	"fmt"
	"log"

	"snapzone/src/clipboard"
	"snapzone/src/config"
	"snapzone/src/notification"
)

type Options struct {
	LoadOptions       config.LoadOptions
	SetupLogging      func(bool)
	ShowBlockingError bool
}

// Bootstrap loads configuration, sets up logging and initializes the clipboard.
// A missing clipboard only disables "copy session path".
func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		err = fmt.Errorf("failed to load configuration: %w", err)
		if opts.ShowBlockingError {
			notification.ShowBlockingError("SnapZone configuration", err.Error())
		}
		return nil, err
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}
	if cfg.EnvPath != "" {
		log.Printf("Loaded configuration from %s", cfg.EnvPath)
	}

	if err := clipboard.Init(); err != nil {
		log.Printf("Clipboard unavailable: %v", err)
	}
	return cfg, nil
}
