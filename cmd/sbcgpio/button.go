package main

import (
	"fmt"
	"strings"

	"github.com/LearningToPi/sbc-gpio/gpio"
)

// activeLow interprets the button wiring mode.  A normally closed (NC)
// contact holds the line high at rest, so low means pressed.  Normally
// open (NO) and unrecognised modes report high as pressed.
func activeLow(mode string) bool {
	return strings.EqualFold(strings.TrimSpace(mode), "NC")
}

// inputConfig converts the YAML form into a gpio.InputConfig.
func (b *ButtonConfig) inputConfig() (gpio.InputConfig, error) {
	cfg := gpio.DefaultInputConfig()
	cfg.Name = b.Name
	cfg.ActiveLow = activeLow(b.Mode)

	var err error
	if b.Pull != "" {
		if cfg.Pull, err = gpio.ParsePull(b.Pull); err != nil {
			return cfg, fmt.Errorf("button.pull: %w", err)
		}
	}
	if cfg.Edge, err = gpio.ParseEdge(b.Edge); err != nil {
		return cfg, fmt.Errorf("button.edge: %w", err)
	}
	if cfg.Strategy, err = gpio.ParseStrategy(b.Strategy); err != nil {
		return cfg, fmt.Errorf("button.strategy: %w", err)
	}
	if b.Debounce < 0 {
		return cfg, fmt.Errorf("button.debounce must not be negative")
	}
	if b.Debounce > 0 {
		cfg.Debounce = b.Debounce
	}
	return cfg, nil
}

// pressed reports whether a button event means the button went down.
func pressed(ev gpio.Event) bool { return ev.Level == gpio.High }
