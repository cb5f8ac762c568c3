// Package periphio drives Raspberry Pi GPIO through periph.io.  Pins are
// addressed by their BCM numbers, so only chip 0 is accepted.
package periphio

import (
	"fmt"
	"sync"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/LearningToPi/sbc-gpio/address"
	"github.com/LearningToPi/sbc-gpio/errcode"
	"github.com/LearningToPi/sbc-gpio/gpio"
)

var (
	initOnce sync.Once
	initErr  error
)

// Backend opens BCM numbered pins from the periph.io registry.
type Backend struct{}

// New initialises the periph host drivers once per process.
func New() (*Backend, error) {
	initOnce.Do(func() {
		_, initErr = host.Init()
	})
	if initErr != nil {
		return nil, errcode.Wrap(errcode.BackendUnavailable, "periph init", initErr)
	}
	return &Backend{}, nil
}

func (b *Backend) Kind() gpio.BackendKind { return gpio.KindPeriph }

func lookup(a address.Address) (pgpio.PinIO, error) {
	if a.Chip != 0 {
		return nil, fmt.Errorf("periph: %s: only chip 0 (BCM numbering) is addressable", a)
	}
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", a.Pin))
	if p == nil {
		return nil, fmt.Errorf("periph: no pin named GPIO%d", a.Pin)
	}
	return p, nil
}

func pull(p gpio.Pull) pgpio.Pull {
	switch p {
	case gpio.PullUp:
		return pgpio.PullUp
	case gpio.PullDown:
		return pgpio.PullDown
	default:
		return pgpio.Float
	}
}

func edge(e gpio.Edge) pgpio.Edge {
	switch e {
	case gpio.EdgeRising:
		return pgpio.RisingEdge
	case gpio.EdgeFalling:
		return pgpio.FallingEdge
	case gpio.EdgeBoth:
		return pgpio.BothEdges
	default:
		return pgpio.NoEdge
	}
}

func level(l gpio.Level) pgpio.Level { return pgpio.Level(l == gpio.High) }

func (b *Backend) OpenOutput(req gpio.Request) (gpio.BackendLine, error) {
	p, err := lookup(req.Address)
	if err != nil {
		return nil, err
	}
	if err := p.Out(level(req.Initial)); err != nil {
		return nil, fmt.Errorf("periph: %s as output: %w", p, err)
	}
	return &line{p: p, output: true}, nil
}

func (b *Backend) OpenInput(req gpio.Request) (gpio.BackendLine, error) {
	p, err := lookup(req.Address)
	if err != nil {
		return nil, err
	}
	if err := p.In(pull(req.Pull), edge(req.Edge)); err != nil {
		return nil, fmt.Errorf("periph: %s as input: %w", p, err)
	}
	return &line{p: p, edges: req.Edge != gpio.EdgeNone}, nil
}

type line struct {
	p      pgpio.PinIO
	output bool
	edges  bool
}

func (l *line) Read() (gpio.Level, error) {
	if l.p.Read() == pgpio.High {
		return gpio.High, nil
	}
	return gpio.Low, nil
}

func (l *line) Write(v gpio.Level) error {
	if !l.output {
		return fmt.Errorf("periph: %s is an input", l.p)
	}
	return l.p.Out(level(v))
}

// WaitForEdge reports the level read right after the edge, since periph
// does not say which edge fired.
func (l *line) WaitForEdge(timeout time.Duration) (gpio.EdgeEvent, bool, error) {
	if !l.edges {
		return gpio.EdgeEvent{}, false, fmt.Errorf("periph: %s requested without edge detection", l.p)
	}
	if !l.p.WaitForEdge(timeout) {
		return gpio.EdgeEvent{}, false, nil
	}
	ev := gpio.EdgeEvent{Edge: gpio.EdgeFalling, Time: time.Now()}
	if l.p.Read() == pgpio.High {
		ev.Edge = gpio.EdgeRising
	}
	return ev, true, nil
}

func (l *line) Close() error {
	if l.edges {
		if err := l.p.In(pgpio.PullNoChange, pgpio.NoEdge); err != nil {
			return err
		}
	}
	return l.p.Halt()
}
