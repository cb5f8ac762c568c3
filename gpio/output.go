package gpio

import (
	"sync"

	"github.com/LearningToPi/sbc-gpio/address"
	"github.com/LearningToPi/sbc-gpio/errcode"
)

// OutputConfig configures an output line.
type OutputConfig struct {
	Name    string
	Pull    Pull
	Initial Level
}

// OutputLine drives one pin.  All methods are synchronous and safe for
// concurrent use.
type OutputLine struct {
	backend Backend
	addr    address.Address
	cfg     OutputConfig

	mu   sync.Mutex
	line BackendLine // nil while closed
}

// NewOutputLine returns a closed output line for addr.
func NewOutputLine(b Backend, addr address.Address, cfg OutputConfig) *OutputLine {
	return &OutputLine{backend: b, addr: addr, cfg: cfg}
}

func (l *OutputLine) Address() address.Address { return l.addr }
func (l *OutputLine) Name() string              { return l.cfg.Name }

// IsOpen reports whether the line holds a backend handle.
func (l *OutputLine) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.line != nil
}

// Open requests the line from the backend and drives the initial level.
func (l *OutputLine) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line != nil {
		return errcode.New(errcode.LineAlreadyOpen, "open output", l.addr.String())
	}
	if l.backend == nil {
		return errcode.New(errcode.BackendUnavailable, "open output", l.addr.String())
	}
	bl, err := l.backend.OpenOutput(Request{
		Address:  l.addr,
		Pull:     l.cfg.Pull,
		Initial:  l.cfg.Initial,
		Consumer: consumer(l.cfg.Name, l.addr),
	})
	if err != nil {
		return err
	}
	l.line = bl
	return nil
}

// Set drives the line to level.
func (l *OutputLine) Set(level Level) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == nil {
		return errcode.New(errcode.LineNotOpen, "set", l.addr.String())
	}
	return l.line.Write(level)
}

// Get returns the level currently driven.
func (l *OutputLine) Get() (Level, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == nil {
		return Low, errcode.New(errcode.LineNotOpen, "get", l.addr.String())
	}
	return l.line.Read()
}

// Toggle inverts the line and returns the new level.
func (l *OutputLine) Toggle() (Level, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == nil {
		return Low, errcode.New(errcode.LineNotOpen, "toggle", l.addr.String())
	}
	cur, err := l.line.Read()
	if err != nil {
		return Low, err
	}
	next := cur.Not()
	if err := l.line.Write(next); err != nil {
		return cur, err
	}
	return next, nil
}

// Close releases the backend line.  The line may be opened again.
func (l *OutputLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == nil {
		return errcode.New(errcode.LineNotOpen, "close", l.addr.String())
	}
	err := l.line.Close()
	l.line = nil
	return err
}
