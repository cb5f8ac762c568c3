package gpio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/LearningToPi/sbc-gpio/address"
	"github.com/LearningToPi/sbc-gpio/errcode"
)

// Strategy selects how an input worker learns about level changes.
type Strategy int

const (
	// Poll samples the line at PollInterval.
	Poll Strategy = iota
	// EdgeWait blocks on kernel edge events, waking at EdgeTick to check
	// for cancellation.
	EdgeWait
)

func (s Strategy) String() string {
	if s == EdgeWait {
		return "edge"
	}
	return "poll"
}

// ParseStrategy accepts "poll" and "edge".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "poll":
		return Poll, nil
	case "edge", "edge-wait":
		return EdgeWait, nil
	}
	return Poll, fmt.Errorf("unknown detection strategy %q", s)
}

const (
	DefaultDebounce  = 100 * time.Millisecond
	DefaultEdgeTick  = 50 * time.Millisecond
	maxPollInterval  = 10 * time.Millisecond
	minPollInterval  = time.Millisecond
	DefaultStopAfter = 2 * time.Second
)

// InputConfig configures an input line and its detection worker.
type InputConfig struct {
	Name     string
	Pull     Pull
	Edge     Edge
	Debounce time.Duration
	Strategy Strategy

	// PollInterval defaults to a quarter of Debounce, at most 10ms.
	PollInterval time.Duration
	// EdgeTick bounds each blocking edge wait.
	EdgeTick time.Duration
	// RunFor stops the worker after the given duration.  Zero runs until
	// Stop or context cancellation.
	RunFor time.Duration

	// ActiveLow inverts the levels reported by Read and to the callback.
	ActiveLow bool
	// Idle leaves the worker stopped after open; call Start to run it.
	Idle bool
	// StopTimeout bounds how long Close waits for the worker.  Defaults to
	// DefaultStopAfter.
	StopTimeout time.Duration

	Logger *zap.Logger
}

// DefaultInputConfig returns pull down, both edges and 100ms debounce.
func DefaultInputConfig() InputConfig {
	return InputConfig{
		Pull:     PullDown,
		Edge:     EdgeBoth,
		Debounce: DefaultDebounce,
		Strategy: Poll,
	}
}

func (c InputConfig) withDefaults() InputConfig {
	if c.Debounce < 0 {
		c.Debounce = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = c.Debounce / 4
		if c.PollInterval > maxPollInterval {
			c.PollInterval = maxPollInterval
		}
		if c.PollInterval < minPollInterval {
			c.PollInterval = minPollInterval
		}
	}
	if c.EdgeTick <= 0 {
		c.EdgeTick = DefaultEdgeTick
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopAfter
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Event is delivered to the callback for each stable transition.
type Event struct {
	Address address.Address
	Name    string
	Level   Level
	Edge    Edge
	Time    time.Time
}

// Callback handles a debounced transition.  Returned errors and panics are
// logged; the worker keeps running.
type Callback func(Event) error

// Stats counts worker activity since Open.
type Stats struct {
	Transitions    uint64
	Callbacks      uint64
	Bounces        uint64
	CallbackErrors uint64
	BackendErrors  uint64
}

// InputLine watches one pin and calls back on debounced transitions.
//
// The worker goroutine is the only writer of the debounce state.  Start,
// Stop and Close may be called from any goroutine.
type InputLine struct {
	backend Backend
	addr    address.Address
	cfg     InputConfig
	cb      Callback
	log     *zap.Logger

	mu     sync.Mutex
	line   BackendLine
	cancel context.CancelFunc
	done   chan struct{}

	transitions, callbacks, bounces atomic.Uint64
	callbackErrs, backendErrs       atomic.Uint64
}

// NewInputLine returns a closed input line.  cb may be nil.
func NewInputLine(b Backend, addr address.Address, cfg InputConfig, cb Callback) *InputLine {
	cfg = cfg.withDefaults()
	return &InputLine{
		backend: b,
		addr:    addr,
		cfg:     cfg,
		cb:      cb,
		log: cfg.Logger.With(
			zap.String("line", cfg.Name),
			zap.Stringer("address", addr),
		),
	}
}

func (l *InputLine) Address() address.Address { return l.addr }
func (l *InputLine) Name() string              { return l.cfg.Name }
func (l *InputLine) Config() InputConfig       { return l.cfg }

// Open requests the line.  Edge-wait lines request both edges from the
// kernel; the configured edge is applied when dispatching.
func (l *InputLine) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line != nil {
		return errcode.New(errcode.LineAlreadyOpen, "open input", l.addr.String())
	}
	if l.backend == nil {
		return errcode.New(errcode.BackendUnavailable, "open input", l.addr.String())
	}
	edge := EdgeNone
	if l.cfg.Strategy == EdgeWait {
		edge = EdgeBoth
	}
	bl, err := l.backend.OpenInput(Request{
		Address:  l.addr,
		Pull:     l.cfg.Pull,
		Edge:     edge,
		Consumer: consumer(l.cfg.Name, l.addr),
	})
	if err != nil {
		return err
	}
	l.line = bl
	l.log.Debug("input opened",
		zap.Stringer("pull", l.cfg.Pull),
		zap.Stringer("edge", l.cfg.Edge),
		zap.Stringer("strategy", l.cfg.Strategy),
		zap.Duration("debounce", l.cfg.Debounce))
	return nil
}

// Read returns the current logical level.
func (l *InputLine) Read() (Level, error) {
	l.mu.Lock()
	bl := l.line
	l.mu.Unlock()
	if bl == nil {
		return Low, errcode.New(errcode.LineNotOpen, "read", l.addr.String())
	}
	return l.raw(bl)
}

func (l *InputLine) raw(bl BackendLine) (Level, error) {
	lvl, err := bl.Read()
	if err != nil {
		return Low, err
	}
	if l.cfg.ActiveLow {
		lvl = lvl.Not()
	}
	return lvl, nil
}

// Start launches the detection worker.  The worker stops when ctx is done,
// when RunFor elapses or on Stop.
func (l *InputLine) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == nil {
		return errcode.New(errcode.LineNotOpen, "start", l.addr.String())
	}
	if l.running() {
		return errcode.New(errcode.LineAlreadyOpen, "start", "worker already running on "+l.addr.String())
	}
	initial, err := l.raw(l.line)
	if err != nil {
		return fmt.Errorf("start %s: read initial level: %w", l.addr, err)
	}

	var wctx context.Context
	var cancel context.CancelFunc
	if l.cfg.RunFor > 0 {
		wctx, cancel = context.WithTimeout(ctx, l.cfg.RunFor)
	} else {
		wctx, cancel = context.WithCancel(ctx)
	}
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	w := &worker{
		line: l,
		bl:   l.line,
		deb:  newDebouncer(l.cfg.Debounce, initial, time.Now()),
	}
	go func() {
		defer close(done)
		defer cancel()
		w.run(wctx)
	}()
	l.log.Debug("worker started", zap.Stringer("initial", initial))
	return nil
}

// running reports whether a worker goroutine is live.  Callers hold mu.
func (l *InputLine) running() bool {
	if l.done == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// Running reports whether the detection worker is active.
func (l *InputLine) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running()
}

// Done is closed when the current worker exits.  It is nil if the worker
// was never started.
func (l *InputLine) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Stop cancels the worker and waits up to timeout for it to exit.  Stopping
// a line with no worker is a no-op.
func (l *InputLine) Stop(timeout time.Duration) error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if done == nil {
		return nil
	}
	cancel()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		return fmt.Errorf("stop %s: worker still running after %s", l.addr, timeout)
	}
}

// Close stops the worker and releases the line.  If the worker does not
// exit within StopTimeout, typically because a callback is blocked, the
// line stays open and Close returns the stop error; call Close again later.
func (l *InputLine) Close() error {
	l.mu.Lock()
	if l.line == nil {
		l.mu.Unlock()
		return errcode.New(errcode.LineNotOpen, "close", l.addr.String())
	}
	l.mu.Unlock()

	if err := l.Stop(l.cfg.StopTimeout); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	var err error
	if l.line != nil {
		err = l.line.Close()
		l.line = nil
	}
	l.cancel, l.done = nil, nil
	l.log.Debug("input closed")
	return err
}

// Stats returns a snapshot of the worker counters.
func (l *InputLine) Stats() Stats {
	return Stats{
		Transitions:    l.transitions.Load(),
		Callbacks:      l.callbacks.Load(),
		Bounces:        l.bounces.Load(),
		CallbackErrors: l.callbackErrs.Load(),
		BackendErrors:  l.backendErrs.Load(),
	}
}

func (l *InputLine) dispatch(ev Event) {
	l.transitions.Add(1)
	if !l.cfg.Edge.accepts(ev.Edge) || l.cb == nil {
		return
	}
	l.callbacks.Add(1)
	defer func() {
		if r := recover(); r != nil {
			l.callbackErrs.Add(1)
			l.log.Error("callback panicked", zap.Any("panic", r))
		}
	}()
	if err := l.cb(ev); err != nil {
		l.callbackErrs.Add(1)
		l.log.Error("callback failed", zap.Error(err))
	}
}
