package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/LearningToPi/sbc-gpio/gpio"
)

// LEDConfig describes the output exercised by a run: it is toggled every
// Interval.
type LEDConfig struct {
	Pin      string        `yaml:"pin"`
	Name     string        `yaml:"name,omitempty"`
	Interval time.Duration `yaml:"interval"`
}

// ButtonConfig describes the input watched during a run.
type ButtonConfig struct {
	Pin      string        `yaml:"pin"`
	Name     string        `yaml:"name,omitempty"`
	Pull     string        `yaml:"pull"`               // up, down or none
	Edge     string        `yaml:"edge"`               // rising, falling or both
	Mode     string        `yaml:"mode"`               // NO or NC
	Strategy string        `yaml:"strategy,omitempty"` // poll or edge
	Debounce time.Duration `yaml:"debounce"`
}

// Config is the run configuration stored as YAML.
type Config struct {
	RunFor time.Duration `yaml:"run_for"`
	// Output receives one line per event.  Empty logs events only.
	Output string        `yaml:"output,omitempty"`
	LED    *LEDConfig    `yaml:"led,omitempty"`
	Button *ButtonConfig `yaml:"button,omitempty"`
}

// SampleConfig is what write-config produces.  The pins are Radxa ROCK 5B
// header pins.
func SampleConfig() Config {
	return Config{
		RunFor: 60 * time.Second,
		Output: "sbcgpio-events.log",
		LED: &LEDConfig{
			Pin:      "3A7",
			Name:     "led",
			Interval: 500 * time.Millisecond,
		},
		Button: &ButtonConfig{
			Pin:      "3B6",
			Name:     "button",
			Pull:     "down",
			Edge:     "both",
			Mode:     "NO",
			Strategy: "poll",
			Debounce: gpio.DefaultDebounce,
		},
	}
}

// Validate checks the configuration and returns every problem found.
func (c Config) Validate() error {
	var err error
	if c.RunFor <= 0 {
		err = multierr.Append(err, errors.New("run_for must be positive"))
	}
	if c.LED == nil && c.Button == nil {
		err = multierr.Append(err, errors.New("nothing to run: configure led or button"))
	}
	if c.LED != nil {
		if c.LED.Pin == "" {
			err = multierr.Append(err, errors.New("led.pin is required"))
		}
		if c.LED.Interval <= 0 {
			err = multierr.Append(err, errors.New("led.interval must be positive"))
		}
	}
	if b := c.Button; b != nil {
		if b.Pin == "" {
			err = multierr.Append(err, errors.New("button.pin is required"))
		}
		if _, perr := b.inputConfig(); perr != nil {
			err = multierr.Append(err, perr)
		}
	}
	return err
}

// parseRunFor accepts whole seconds ("60") or a duration ("90s").
func parseRunFor(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("--time must be positive, got %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("--time: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("--time must be positive, got %s", d)
	}
	return d, nil
}
