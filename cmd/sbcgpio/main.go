// Command sbcgpio identifies the board it runs on, converts pin designators
// and exercises an LED and a button.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LearningToPi/sbc-gpio/gpio"
	"github.com/LearningToPi/sbc-gpio/gpio/gpiotest"
	"github.com/LearningToPi/sbc-gpio/internal/log"
	"github.com/LearningToPi/sbc-gpio/platform"
)

type app struct {
	fs       afero.Fs
	evidence platform.Evidence

	logLevel string
	dev      bool
	model    string
	sim      bool

	simBackend *gpiotest.Backend
}

func newApp() *app {
	return &app{fs: afero.NewOsFs(), evidence: platform.HostEvidence()}
}

func (a *app) simulator() *gpiotest.Backend {
	if a.simBackend == nil {
		a.simBackend = gpiotest.New()
	}
	return a.simBackend
}

// identify forces --model when given, otherwise inspects the host.
func (a *app) identify(ctx context.Context) (*platform.Handle, error) {
	opts := []platform.Option{platform.WithEvidence(a.evidence)}
	if a.sim {
		sim := a.simulator()
		load := func() (gpio.Backend, error) { return sim, nil }
		opts = append(opts,
			platform.WithBackendLoader(gpio.KindCdev, load),
			platform.WithBackendLoader(gpio.KindPeriph, load))
	}
	id := platform.NewIdentifier(opts...)
	if a.model != "" {
		return id.Force(ctx, a.model)
	}
	return id.Identify(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sbcgpio",
		Short:         "Identify single-board computers and drive their GPIO",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := log.New(a.logLevel, a.dev)
			if err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			cmd.SetContext(log.WithLogger(cmd.Context(), logger))
			return nil
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.BoolVar(&a.dev, "dev", false, "human readable log output")
	f.StringVar(&a.model, "model", "", "skip identification and use this board model")
	f.BoolVar(&a.sim, "sim", false, "use a simulated gpio backend")

	root.AddCommand(a.infoCmd(), a.listCmd(), a.convertCmd(), a.runCmd(), a.writeConfigCmd())
	return root
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the identified board, serial number and buses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			h, err := a.identify(ctx)
			if err != nil {
				return err
			}
			defer h.Release()
			return printInfo(ctx, cmd.OutOrStdout(), h)
		},
	}
}

func printInfo(ctx context.Context, w io.Writer, h *platform.Handle) error {
	backend := "none"
	if b := h.Backend(); b != nil {
		backend = string(b.Kind())
	}
	serial, ok := h.SerialNumber(ctx)
	if !ok {
		serial = "n/a"
	}
	fingerprint, ok := h.Fingerprint(ctx)
	if !ok {
		fingerprint = "n/a"
	}
	spi, err := h.SPIBuses()
	if err != nil {
		log.FromContext(ctx).Debug("spi scan failed", zap.Error(err))
	}
	i2c, err := h.I2CBuses()
	if err != nil {
		log.FromContext(ctx).Debug("i2c scan failed", zap.Error(err))
	}

	rows := [][2]string{
		{"Model", h.Model()},
		{"Description", h.Description()},
		{"Matched by", h.MatchedBy()},
		{"Backend", backend},
		{"Serial", serial},
		{"Fingerprint", fingerprint},
		{"Pin syntax", h.Descriptor().Codec.Syntax()},
		{"Valid GPIO", h.ValidPins().String()},
		{"SPI buses", fmt.Sprint(spi)},
		{"I2C buses", fmt.Sprint(i2c)},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%-12s %s\n", r[0]+":", r[1]); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Evaluate every supported board against this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := platform.NewIdentifier(platform.WithEvidence(a.evidence))
			cands, err := id.List(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, c := range cands {
				mark := " "
				if c.Matched {
					mark = "*"
				}
				fmt.Fprintf(w, "%s %-14s %s\n", mark, c.Model, c.Description)
			}
			return nil
		},
	}
}

func (a *app) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert DESIGNATOR...",
		Short: "Resolve pin designators to chip:pin addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.identify(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Release()
			w := cmd.OutOrStdout()
			var failed []string
			for _, d := range args {
				addr, err := h.AddressOf(d)
				if err != nil {
					fmt.Fprintf(w, "%s: %v\n", d, err)
					failed = append(failed, d)
					continue
				}
				canon, _ := h.Format(addr)
				fmt.Fprintf(w, "%s -> %s (%s)\n", d, addr, canon)
			}
			if len(failed) > 0 {
				return fmt.Errorf("unable to convert %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}

func (a *app) runCmd() *cobra.Command {
	var (
		configPath string
		output     string
		runFor     string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Blink the configured LED and report button presses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := log.FromContext(ctx)

			cm := NewConfigManager(a.fs, configPath)
			if err := cm.Load(); err != nil {
				return err
			}
			cfg := cm.Get()
			if cmd.Flags().Changed("output") {
				cfg.Output = output
			}
			if runFor != "" {
				d, err := parseRunFor(runFor)
				if err != nil {
					return err
				}
				cfg.RunFor = d
			}

			h, err := a.identify(ctx)
			if err != nil {
				return err
			}
			defer h.Release()

			events := NewEventLogger(a.fs, cfg.Output, logger)
			events.Log("run started on %s for %s", h.Description(), cfg.RunFor)
			res, err := runExercise(ctx, h, cfg, events, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "toggles=%d presses=%d bounces=%d callback_errors=%d\n",
				res.Toggles, res.Presses, res.Button.Bounces, res.Button.CallbackErrors)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "sbcgpio.yaml", "configuration file")
	cmd.Flags().StringVar(&output, "output", "", "event output file (overrides the config)")
	cmd.Flags().StringVar(&runFor, "time", "", "run time, seconds or a duration such as 90s (overrides the config)")
	return cmd
}

func (a *app) writeConfigCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "write-config PATH",
		Short: "Write a sample configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := NewConfigManager(a.fs, args[0]).WriteSample(force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func main() {
	if err := newApp().rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
