// Package platform identifies the single-board computer the process runs on
// and exposes its GPIO addressing, buses and serial number.
package platform

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/LearningToPi/sbc-gpio/errcode"
	"github.com/LearningToPi/sbc-gpio/gpio"
	"github.com/LearningToPi/sbc-gpio/gpio/cdev"
	"github.com/LearningToPi/sbc-gpio/gpio/periphio"
	"github.com/LearningToPi/sbc-gpio/internal/log"
)

// NotIdentifiedError is returned when no descriptor matches the host.
type NotIdentifiedError struct {
	Supported []string
}

func (e *NotIdentifiedError) Error() string {
	return "unable to identify platform; supported devices: " + strings.Join(e.Supported, ", ")
}

func (e *NotIdentifiedError) Unwrap() error { return errcode.PlatformNotIdentified }

// BackendLoader initialises a GPIO backend.  It fails when the backend
// cannot run on this host.
type BackendLoader func() (gpio.Backend, error)

// DefaultLoaders returns loaders for the cdev and periph backends.
func DefaultLoaders() map[gpio.BackendKind]BackendLoader {
	return map[gpio.BackendKind]BackendLoader{
		gpio.KindCdev: func() (gpio.Backend, error) {
			b, err := cdev.New()
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		gpio.KindPeriph: func() (gpio.Backend, error) {
			b, err := periphio.New()
			if err != nil {
				return nil, err
			}
			return b, nil
		},
	}
}

// Identifier matches the host against a registry.
type Identifier struct {
	registry *Registry
	evidence Evidence
	loaders  map[gpio.BackendKind]BackendLoader
	logger   *zap.Logger
}

// Option configures an Identifier.
type Option func(*Identifier)

// WithRegistry replaces the built-in board table.
func WithRegistry(r *Registry) Option { return func(id *Identifier) { id.registry = r } }

// WithEvidence sets where rules look.  Defaults to HostEvidence.
func WithEvidence(ev Evidence) Option { return func(id *Identifier) { id.evidence = ev } }

// WithLogger sets the logger for identification and the handles it
// returns.
func WithLogger(l *zap.Logger) Option { return func(id *Identifier) { id.logger = l } }

// WithBackendLoader adds or replaces the loader for kind.  A nil loader
// removes it.
func WithBackendLoader(kind gpio.BackendKind, load BackendLoader) Option {
	return func(id *Identifier) {
		if load == nil {
			delete(id.loaders, kind)
			return
		}
		id.loaders[kind] = load
	}
}

// NewIdentifier defaults to the built-in boards, host evidence and the
// cdev and periph backends.
func NewIdentifier(opts ...Option) *Identifier {
	id := &Identifier{
		registry: Default(),
		evidence: HostEvidence(),
		loaders:  DefaultLoaders(),
	}
	for _, o := range opts {
		o(id)
	}
	return id
}

func (id *Identifier) log(ctx context.Context) *zap.Logger {
	if id.logger != nil {
		return id.logger
	}
	return log.FromContext(ctx)
}

// Identify returns a handle for the first descriptor with a matching rule.
func (id *Identifier) Identify(ctx context.Context) (*Handle, error) {
	logger := id.log(ctx)
	for _, d := range id.registry.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r, ok := id.match(ctx, logger, d); ok {
			logger.Info("platform identified",
				zap.String("model", d.Model),
				zap.String("description", d.Description),
				zap.Stringer("rule", r))
			return id.newHandle(logger, d, r), nil
		}
	}
	return nil, &NotIdentifiedError{Supported: id.registry.Descriptions()}
}

// match evaluates d's rules in order, stopping at the first match.
func (id *Identifier) match(ctx context.Context, logger *zap.Logger, d *Descriptor) (Rule, bool) {
	for _, r := range d.Rules {
		_, ok, err := r.Evaluate(ctx, id.evidence)
		if err != nil {
			logger.Debug("rule evidence unavailable",
				zap.String("model", d.Model), zap.Stringer("rule", r), zap.Error(err))
			continue
		}
		if ok {
			return r, true
		}
	}
	return nil, false
}

// Candidate is one row of a List result.
type Candidate struct {
	Model       string
	Description string
	Matched     bool
	Rule        string // the matching rule, if any
}

// List evaluates every descriptor without selecting one.
func (id *Identifier) List(ctx context.Context) ([]Candidate, error) {
	logger := id.log(ctx)
	all := id.registry.All()
	out := make([]Candidate, 0, len(all))
	for _, d := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := Candidate{Model: d.Model, Description: d.Description}
		if r, ok := id.match(ctx, logger, d); ok {
			c.Matched = true
			c.Rule = r.String()
		}
		out = append(out, c)
	}
	return out, nil
}

// Force returns a handle for model without inspecting the host.
func (id *Identifier) Force(ctx context.Context, model string) (*Handle, error) {
	d, ok := id.registry.Lookup(model)
	if !ok {
		return nil, &NotIdentifiedError{Supported: id.registry.Descriptions()}
	}
	logger := id.log(ctx)
	logger.Info("platform forced", zap.String("model", d.Model))
	return id.newHandle(logger, d, AlwaysMatch()), nil
}

func (id *Identifier) newHandle(logger *zap.Logger, d *Descriptor, matched Rule) *Handle {
	h := &Handle{
		desc:      d,
		evidence:  id.evidence,
		matchedBy: matched,
		logger:    logger.With(zap.String("model", d.Model)),
	}
	for _, kind := range d.Backends {
		load, ok := id.loaders[kind]
		if !ok {
			continue
		}
		b, err := load()
		if err != nil {
			h.logger.Debug("backend unavailable", zap.String("backend", string(kind)), zap.Error(err))
			continue
		}
		h.backend = b
		h.logger.Debug("backend selected", zap.String("backend", string(kind)))
		break
	}
	if h.backend == nil {
		h.logger.Warn("no gpio backend available; lines cannot be opened")
	}
	return h
}
