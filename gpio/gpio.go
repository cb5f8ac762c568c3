// Package gpio opens resolved GPIO addresses against a backend and runs the
// debounced edge detection for input lines.
//
// A Backend is the low level driver (the Linux character device, periph.io
// or an in-memory simulator).  OutputLine and InputLine own exactly one
// backend line each, between Open and Close.
package gpio

import (
	"fmt"
	"strings"
	"time"

	"github.com/LearningToPi/sbc-gpio/address"
)

// Level is the logic level of a line.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Not returns the opposite level.
func (l Level) Not() Level {
	if l == High {
		return Low
	}
	return High
}

// Pull is the bias applied to a line.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "none"
	}
}

// ParsePull accepts "up", "down" and "none" (or empty).
func ParsePull(s string) (Pull, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return PullNone, nil
	case "up":
		return PullUp, nil
	case "down":
		return PullDown, nil
	}
	return PullNone, fmt.Errorf("unknown pull %q", s)
}

// Edge selects which transitions are reported.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// ParseEdge accepts "rising", "falling", "both" and "none".
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return EdgeNone, nil
	case "rising":
		return EdgeRising, nil
	case "falling":
		return EdgeFalling, nil
	case "", "both":
		return EdgeBoth, nil
	}
	return EdgeNone, fmt.Errorf("unknown edge %q", s)
}

// edgeTo returns the edge that moves a line to level l.
func edgeTo(l Level) Edge {
	if l == High {
		return EdgeRising
	}
	return EdgeFalling
}

// accepts reports whether a transition of kind t is selected by e.
func (e Edge) accepts(t Edge) bool {
	return e == EdgeBoth || e == t
}

// EdgeEvent is one kernel edge notification.
type EdgeEvent struct {
	Edge Edge // EdgeRising or EdgeFalling
	Time time.Time
}

// Level returns the level the line moved to.
func (ev EdgeEvent) Level() Level {
	if ev.Edge == EdgeRising {
		return High
	}
	return Low
}

// BackendKind names a backend implementation.
type BackendKind string

const (
	KindCdev   BackendKind = "cdev"
	KindPeriph BackendKind = "periph"
	KindSim    BackendKind = "sim"
)

// Request describes a line to open.
type Request struct {
	Address  address.Address
	Pull     Pull
	Edge     Edge  // inputs only
	Initial  Level // outputs only
	Consumer string
}

// Backend opens lines on the underlying GPIO driver.
type Backend interface {
	Kind() BackendKind
	OpenOutput(req Request) (BackendLine, error)
	OpenInput(req Request) (BackendLine, error)
}

// BackendLine is one open kernel line.
type BackendLine interface {
	Read() (Level, error)
	Write(l Level) error
	// WaitForEdge blocks until an edge is reported or the timeout expires.
	// It returns false on timeout.
	WaitForEdge(timeout time.Duration) (EdgeEvent, bool, error)
	Close() error
}

func consumer(name string, a address.Address) string {
	if name != "" {
		return name
	}
	return "sbc-gpio-" + a.String()
}
