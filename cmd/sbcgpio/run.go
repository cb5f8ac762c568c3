package main

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LearningToPi/sbc-gpio/gpio"
	"github.com/LearningToPi/sbc-gpio/platform"
)

// Results summarises a run.
type Results struct {
	Toggles uint64
	Presses uint64
	Button  gpio.Stats
}

// runExercise toggles the LED and watches the button until cfg.RunFor
// elapses or ctx is cancelled.
func runExercise(ctx context.Context, h *platform.Handle, cfg Config, events *EventLogger, logger *zap.Logger) (Results, error) {
	var res Results
	ctx, cancel := context.WithTimeout(ctx, cfg.RunFor)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if c := cfg.LED; c != nil {
		led, err := h.Output(c.Pin, gpio.Low, gpio.OutputConfig{Name: c.Name})
		if err != nil {
			return res, err
		}
		events.Log("led %s on %s opened", c.Name, led.Address())
		g.Go(func() error {
			return multierr.Append(blink(gctx, led, c.Interval, &res.Toggles), led.Close())
		})
	}

	if c := cfg.Button; c != nil {
		icfg, err := c.inputConfig()
		if err != nil {
			return res, err
		}
		icfg.Logger = logger
		var presses atomic.Uint64
		btn, err := h.Input(gctx, c.Pin, icfg, func(ev gpio.Event) error {
			if pressed(ev) {
				presses.Add(1)
				events.Log("button %s pressed", ev.Name)
			} else {
				events.Log("button %s released", ev.Name)
			}
			return nil
		})
		if err != nil {
			cancel()
			return res, multierr.Append(err, g.Wait())
		}
		events.Log("button %s on %s watching (%s, debounce %s)", c.Name, btn.Address(), icfg.Strategy, icfg.Debounce)
		g.Go(func() error {
			<-gctx.Done()
			err := btn.Close()
			res.Presses = presses.Load()
			res.Button = btn.Stats()
			return err
		})
	}

	err := g.Wait()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		err = nil
	}
	events.Log("run complete: %d toggles, %d presses", res.Toggles, res.Presses)
	return res, err
}

func blink(ctx context.Context, led *gpio.OutputLine, every time.Duration, toggles *uint64) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := led.Toggle(); err != nil {
				return err
			}
			*toggles++
		}
	}
}
