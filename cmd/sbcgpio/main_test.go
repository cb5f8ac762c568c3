package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LearningToPi/sbc-gpio/address"
	"github.com/LearningToPi/sbc-gpio/gpio"
	"github.com/LearningToPi/sbc-gpio/platform"
)

const modelFile = "/sys/firmware/devicetree/base/model"

type noCommands struct{}

func (noCommands) Output(context.Context, string) ([]byte, error) {
	return nil, errors.New("exit status 127")
}

func testApp(t *testing.T, files map[string]string) *app {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
	return &app{fs: fs, evidence: platform.Evidence{FS: fs, Runner: noCommands{}}}
}

func execute(a *app, args ...string) (string, error) {
	cmd := a.rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestWriteConfig(t *testing.T) {
	a := testApp(t, nil)

	out, err := execute(a, "write-config", "/etc/sbcgpio.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote /etc/sbcgpio.yaml")

	_, err = execute(a, "write-config", "/etc/sbcgpio.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = execute(a, "write-config", "/etc/sbcgpio.yaml", "--force")
	require.NoError(t, err)

	cm := NewConfigManager(a.fs, "/etc/sbcgpio.yaml")
	require.NoError(t, cm.Load())
	assert.Equal(t, SampleConfig(), cm.Get())

	exists, err := afero.Exists(a.fs, "/etc/sbcgpio.yaml.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConfigLoadErrors(t *testing.T) {
	a := testApp(t, map[string]string{
		"/bad.yaml":   "run_for: [",
		"/empty.yaml": "run_for: 0s\n",
		"/edge.yaml":  "run_for: 1s\nbutton:\n  pin: 3B6\n  edge: sideways\n",
	})

	assert.ErrorContains(t, NewConfigManager(a.fs, "/missing.yaml").Load(), "write-config")
	assert.Error(t, NewConfigManager(a.fs, "/bad.yaml").Load())

	err := NewConfigManager(a.fs, "/empty.yaml").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run_for must be positive")
	assert.Contains(t, err.Error(), "nothing to run")

	assert.ErrorContains(t, NewConfigManager(a.fs, "/edge.yaml").Load(), "button.edge")
}

func TestButtonInputConfig(t *testing.T) {
	b := ButtonConfig{Pull: "up", Edge: "falling", Mode: "nc", Strategy: "edge", Debounce: 20 * time.Millisecond}
	cfg, err := b.inputConfig()
	require.NoError(t, err)
	assert.Equal(t, gpio.PullUp, cfg.Pull)
	assert.Equal(t, gpio.EdgeFalling, cfg.Edge)
	assert.Equal(t, gpio.EdgeWait, cfg.Strategy)
	assert.True(t, cfg.ActiveLow)
	assert.Equal(t, 20*time.Millisecond, cfg.Debounce)

	cfg, err = (&ButtonConfig{Mode: "NO"}).inputConfig()
	require.NoError(t, err)
	assert.False(t, cfg.ActiveLow)
	assert.Equal(t, gpio.PullDown, cfg.Pull)
	assert.Equal(t, gpio.DefaultDebounce, cfg.Debounce)
}

func TestParseRunFor(t *testing.T) {
	d, err := parseRunFor("60")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)
	d, err = parseRunFor("250ms")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
	_, err = parseRunFor("0")
	assert.Error(t, err)
	_, err = parseRunFor("soon")
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	a := testApp(t, map[string]string{modelFile: "Radxa ROCK 5B\x00"})

	out, err := execute(a, "convert", "3B6", "110")
	require.NoError(t, err)
	assert.Contains(t, out, "3B6 -> 3:14 (3B6)")
	assert.Contains(t, out, "110 -> 3:14 (3B6)")

	out, err = execute(a, "convert", "3B6", "0A0")
	require.Error(t, err)
	assert.Contains(t, out, "0A0: ")
	assert.Contains(t, err.Error(), "0A0")

	out, err = execute(a, "--model", platform.ModelPi4B, "convert", "GPIO17")
	require.NoError(t, err)
	assert.Contains(t, out, "GPIO17 -> 0:17 (17)")
}

func TestInfo(t *testing.T) {
	a := testApp(t, map[string]string{
		modelFile: "Raspberry Pi 4 Model B Rev 1.4\x00",
		"/sys/firmware/devicetree/base/serial-number": "10000000deadbeef\x00",
		"/dev/i2c-1":     "",
		"/dev/spidev0.0": "",
	})
	out, err := execute(a, "--sim", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Pi4B")
	assert.Contains(t, out, "10000000deadbeef")
	assert.Contains(t, out, "Backend:     sim")
	assert.Contains(t, out, "I2C buses:   [1]")
	assert.Contains(t, out, "SPI buses:   [0]")
}

func TestInfoUnknownBoard(t *testing.T) {
	a := testApp(t, nil)
	_, err := execute(a, "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to identify platform")
}

func TestList(t *testing.T) {
	a := testApp(t, map[string]string{modelFile: "BQ-H616"})
	out, err := execute(a, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* CB1")
	assert.Contains(t, out, "  Rock5B")
}

func TestRunWithSimulator(t *testing.T) {
	a := testApp(t, nil)
	cfg := SampleConfig()
	cfg.RunFor = 400 * time.Millisecond
	cfg.Output = "/var/log/events.log"
	cfg.LED.Interval = 20 * time.Millisecond
	cfg.Button.Debounce = 10 * time.Millisecond
	require.NoError(t, NewConfigManager(a.fs, "/run.yaml").Update(func(c *Config) error {
		*c = cfg
		return nil
	}))

	sim := a.simulator()
	btn := address.Address{Chip: 3, Pin: 14}
	go func() {
		time.Sleep(100 * time.Millisecond)
		sim.Drive(btn, gpio.High)
		time.Sleep(100 * time.Millisecond)
		sim.Drive(btn, gpio.Low)
	}()

	out, err := execute(a, "--sim", "--model", platform.ModelRock5B, "run", "--config", "/run.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "presses=1")
	assert.NotContains(t, out, "toggles=0")

	events, err := afero.ReadFile(a.fs, "/var/log/events.log")
	require.NoError(t, err)
	assert.Contains(t, string(events), "button button pressed")
	assert.Contains(t, string(events), "button button released")
	assert.Contains(t, string(events), "run complete")

	led := address.Address{Chip: 3, Pin: 7}
	assert.False(t, sim.IsOpen(led))
	assert.False(t, sim.IsOpen(btn))
	assert.Greater(t, len(sim.Writes(led)), 2)
}

func TestEventLoggerWithoutFile(t *testing.T) {
	el := NewEventLogger(afero.NewMemMapFs(), "", zap.NewNop())
	el.Log("nothing %d", 1)
}
