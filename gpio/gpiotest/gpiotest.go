// Package gpiotest provides an in-memory GPIO backend for tests and dry
// runs.  Pins float to the level implied by their pull until driven with
// Drive, and input lines opened with edge detection receive an EdgeEvent
// for every level change.
package gpiotest

import (
	"fmt"
	"sync"
	"time"

	"github.com/LearningToPi/sbc-gpio/address"
	"github.com/LearningToPi/sbc-gpio/gpio"
)

type pin struct {
	level   gpio.Level
	driven  bool
	writes  []gpio.Level
	line    *Line
	opens   int
	lastReq gpio.Request
}

// Backend is a simulated GPIO controller.  The zero value is not usable;
// call New.
type Backend struct {
	mu       sync.Mutex
	pins     map[address.Address]*pin
	failOpen error
	failRead error
}

// New returns an empty simulated controller.
func New() *Backend {
	return &Backend{pins: make(map[address.Address]*pin)}
}

func (b *Backend) Kind() gpio.BackendKind { return gpio.KindSim }

func (b *Backend) pin(a address.Address) *pin {
	p, ok := b.pins[a]
	if !ok {
		p = &pin{}
		b.pins[a] = p
	}
	return p
}

// FailOpen makes subsequent opens return err.  Pass nil to clear.
func (b *Backend) FailOpen(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failOpen = err
}

// FailRead makes reads on every line return err.  Pass nil to clear.
func (b *Backend) FailRead(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRead = err
}

// OpenOutput claims the pin and drives it to req.Initial.
func (b *Backend) OpenOutput(req gpio.Request) (gpio.BackendLine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.claim(req)
	if err != nil {
		return nil, err
	}
	p.level = req.Initial
	p.driven = true
	p.writes = append(p.writes, req.Initial)
	p.line = &Line{b: b, addr: req.Address, output: true}
	return p.line, nil
}

// OpenInput claims the pin.  Edge events are queued only when req.Edge
// is not EdgeNone.
func (b *Backend) OpenInput(req gpio.Request) (gpio.BackendLine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.claim(req)
	if err != nil {
		return nil, err
	}
	if !p.driven {
		p.level = gpio.Low
		if req.Pull == gpio.PullUp {
			p.level = gpio.High
		}
	}
	l := &Line{b: b, addr: req.Address}
	if req.Edge != gpio.EdgeNone {
		l.events = make(chan gpio.EdgeEvent, 64)
		l.edge = req.Edge
	}
	p.line = l
	return l, nil
}

// claim checks that the pin is free, like the kernel refusing a second
// request for a busy line.  Callers hold mu.
func (b *Backend) claim(req gpio.Request) (*pin, error) {
	if b.failOpen != nil {
		return nil, b.failOpen
	}
	p := b.pin(req.Address)
	if p.line != nil {
		return nil, fmt.Errorf("gpiotest: %s: device or resource busy", req.Address)
	}
	p.opens++
	p.lastReq = req
	return p, nil
}

// Drive sets the level seen on a pin from outside, as a button or another
// device would.
func (b *Backend) Drive(a address.Address, l gpio.Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pin(a)
	prev := p.level
	p.level = l
	p.driven = true
	if prev != l && p.line != nil {
		p.line.notify(l)
	}
}

// Pulse drives a sequence of levels separated by gap.
func (b *Backend) Pulse(a address.Address, gap time.Duration, levels ...gpio.Level) {
	for i, l := range levels {
		if i > 0 {
			time.Sleep(gap)
		}
		b.Drive(a, l)
	}
}

// Level returns the current level of a pin.
func (b *Backend) Level(a address.Address) gpio.Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pin(a).level
}

// Writes returns the levels written to an output pin, including the initial
// level of each open.
func (b *Backend) Writes(a address.Address) []gpio.Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]gpio.Level(nil), b.pin(a).writes...)
}

// IsOpen reports whether a line currently holds the pin.
func (b *Backend) IsOpen(a address.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pin(a).line != nil
}

// Opens returns how many times the pin has been requested.
func (b *Backend) Opens(a address.Address) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pin(a).opens
}

// LastRequest returns the most recent request for the pin.
func (b *Backend) LastRequest(a address.Address) gpio.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pin(a).lastReq
}

// Line is an open simulated line.
type Line struct {
	b      *Backend
	addr   address.Address
	output bool
	edge   gpio.Edge
	events chan gpio.EdgeEvent
	closed bool
}

// notify queues an edge event.  Callers hold b.mu.
func (l *Line) notify(to gpio.Level) {
	if l.events == nil {
		return
	}
	ev := gpio.EdgeEvent{Edge: gpio.EdgeFalling, Time: time.Now()}
	if to == gpio.High {
		ev.Edge = gpio.EdgeRising
	}
	if l.edge != gpio.EdgeBoth && l.edge != ev.Edge {
		return
	}
	select {
	case l.events <- ev:
	default:
	}
}

func (l *Line) Read() (gpio.Level, error) {
	l.b.mu.Lock()
	defer l.b.mu.Unlock()
	if l.closed {
		return gpio.Low, fmt.Errorf("gpiotest: %s: line closed", l.addr)
	}
	if l.b.failRead != nil {
		return gpio.Low, l.b.failRead
	}
	return l.b.pin(l.addr).level, nil
}

func (l *Line) Write(v gpio.Level) error {
	l.b.mu.Lock()
	defer l.b.mu.Unlock()
	if l.closed {
		return fmt.Errorf("gpiotest: %s: line closed", l.addr)
	}
	if !l.output {
		return fmt.Errorf("gpiotest: %s: line is an input", l.addr)
	}
	p := l.b.pin(l.addr)
	p.level = v
	p.writes = append(p.writes, v)
	return nil
}

func (l *Line) WaitForEdge(timeout time.Duration) (gpio.EdgeEvent, bool, error) {
	if l.events == nil {
		return gpio.EdgeEvent{}, false, fmt.Errorf("gpiotest: %s: edge detection not requested", l.addr)
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case ev := <-l.events:
		return ev, true, nil
	case <-t.C:
		return gpio.EdgeEvent{}, false, nil
	}
}

func (l *Line) Close() error {
	l.b.mu.Lock()
	defer l.b.mu.Unlock()
	if l.closed {
		return fmt.Errorf("gpiotest: %s: line already closed", l.addr)
	}
	l.closed = true
	if p := l.b.pin(l.addr); p.line == l {
		p.line = nil
	}
	return nil
}
