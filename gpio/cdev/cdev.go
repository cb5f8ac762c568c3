//go:build linux

// Package cdev drives GPIO lines through the Linux character device
// (/dev/gpiochipN) using go-gpiocdev.  It is the backend for every board
// whose pins are addressed as chip and offset.
package cdev

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/LearningToPi/sbc-gpio/address"
	"github.com/LearningToPi/sbc-gpio/errcode"
	"github.com/LearningToPi/sbc-gpio/gpio"
)

// Backend requests lines from gpiochip devices.
type Backend struct {
	chips []string
}

// New returns a backend if at least one gpiochip device is present.
func New() (*Backend, error) {
	chips := gpiocdev.Chips()
	if len(chips) == 0 {
		return nil, errcode.New(errcode.BackendUnavailable, "cdev", "no gpiochip devices found")
	}
	return &Backend{chips: chips}, nil
}

func (b *Backend) Kind() gpio.BackendKind { return gpio.KindCdev }

// Chips lists the gpiochip devices found at startup.
func (b *Backend) Chips() []string { return append([]string(nil), b.chips...) }

func chipName(n uint32) string { return fmt.Sprintf("gpiochip%d", n) }

func biasOption(p gpio.Pull) gpiocdev.LineReqOption {
	switch p {
	case gpio.PullUp:
		return gpiocdev.WithPullUp
	case gpio.PullDown:
		return gpiocdev.WithPullDown
	default:
		return gpiocdev.WithBiasAsIs
	}
}

func edgeOption(e gpio.Edge) gpiocdev.LineReqOption {
	switch e {
	case gpio.EdgeRising:
		return gpiocdev.WithRisingEdge
	case gpio.EdgeFalling:
		return gpiocdev.WithFallingEdge
	default:
		return gpiocdev.WithBothEdges
	}
}

func (b *Backend) OpenOutput(req gpio.Request) (gpio.BackendLine, error) {
	l, err := gpiocdev.RequestLine(chipName(req.Address.Chip), int(req.Address.Pin),
		gpiocdev.AsOutput(int(req.Initial)),
		biasOption(req.Pull),
		gpiocdev.WithConsumer(req.Consumer),
	)
	if err != nil {
		return nil, fmt.Errorf("cdev: request output %s: %w", req.Address, err)
	}
	return &line{l: l, addr: req.Address}, nil
}

func (b *Backend) OpenInput(req gpio.Request) (gpio.BackendLine, error) {
	ln := &line{addr: req.Address}
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		biasOption(req.Pull),
		gpiocdev.WithConsumer(req.Consumer),
	}
	if req.Edge != gpio.EdgeNone {
		ln.events = make(chan gpio.EdgeEvent, 16)
		opts = append(opts, edgeOption(req.Edge), gpiocdev.WithEventHandler(ln.handle))
	}
	l, err := gpiocdev.RequestLine(chipName(req.Address.Chip), int(req.Address.Pin), opts...)
	if err != nil {
		return nil, fmt.Errorf("cdev: request input %s: %w", req.Address, err)
	}
	ln.l = l
	return ln, nil
}

type line struct {
	l      *gpiocdev.Line
	addr   address.Address
	events chan gpio.EdgeEvent
}

// handle runs on the gpiocdev watcher goroutine.  Events are dropped when
// the buffer is full; the worker re-reads the line on every quiet tick.
func (ln *line) handle(evt gpiocdev.LineEvent) {
	ev := gpio.EdgeEvent{Edge: gpio.EdgeFalling, Time: time.Now()}
	if evt.Type == gpiocdev.LineEventRisingEdge {
		ev.Edge = gpio.EdgeRising
	}
	select {
	case ln.events <- ev:
	default:
	}
}

func (ln *line) Read() (gpio.Level, error) {
	v, err := ln.l.Value()
	if err != nil {
		return gpio.Low, err
	}
	if v != 0 {
		return gpio.High, nil
	}
	return gpio.Low, nil
}

func (ln *line) Write(v gpio.Level) error {
	return ln.l.SetValue(int(v))
}

func (ln *line) WaitForEdge(timeout time.Duration) (gpio.EdgeEvent, bool, error) {
	if ln.events == nil {
		return gpio.EdgeEvent{}, false, fmt.Errorf("cdev: %s requested without edge detection", ln.addr)
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case ev := <-ln.events:
		return ev, true, nil
	case <-t.C:
		return gpio.EdgeEvent{}, false, nil
	}
}

func (ln *line) Close() error {
	return ln.l.Close()
}
