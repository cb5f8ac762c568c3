package platform

import (
	"fmt"
	"sync"

	"github.com/LearningToPi/sbc-gpio/address"
	"github.com/LearningToPi/sbc-gpio/gpio"
)

// Descriptor is the immutable description of one supported board.
type Descriptor struct {
	Model       string
	Description string
	// Rules identify the board; any one matching is enough.
	Rules []Rule
	// Serial yields the serial number.  Nil when the board has none.
	Serial Rule
	Codec  address.Codec
	// Backends in order of preference.
	Backends []gpio.BackendKind
}

// ValidPins returns the linear ids usable on the board.
func (d *Descriptor) ValidPins() address.PinSet { return d.Codec.ValidPins() }

// Registry is an ordered set of descriptors.  Identification evaluates
// them in order and the first match wins.
type Registry struct {
	descs   []*Descriptor
	byModel map[string]*Descriptor
}

// NewRegistry validates descs and keeps their order.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{byModel: make(map[string]*Descriptor, len(descs))}
	for i := range descs {
		d := descs[i]
		switch {
		case d.Model == "":
			return nil, fmt.Errorf("descriptor %d: empty model", i)
		case d.Codec == nil:
			return nil, fmt.Errorf("descriptor %s: no address codec", d.Model)
		case len(d.Rules) == 0:
			return nil, fmt.Errorf("descriptor %s: no identification rules", d.Model)
		}
		if _, dup := r.byModel[d.Model]; dup {
			return nil, fmt.Errorf("descriptor %s: duplicate model", d.Model)
		}
		if d.Description == "" {
			d.Description = d.Model
		}
		r.descs = append(r.descs, &d)
		r.byModel[d.Model] = &d
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error.
func MustRegistry(descs ...Descriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return MustRegistry(Boards()...)
})

// Default returns the registry of built-in boards.
func Default() *Registry { return defaultRegistry() }

// All returns the descriptors in evaluation order.  Callers must not modify
// them.
func (r *Registry) All() []*Descriptor {
	return append([]*Descriptor(nil), r.descs...)
}

// Len is the number of registered boards.
func (r *Registry) Len() int { return len(r.descs) }

// Lookup finds a descriptor by model name.
func (r *Registry) Lookup(model string) (*Descriptor, bool) {
	d, ok := r.byModel[model]
	return d, ok
}

// Descriptions lists the human readable board names in order.
func (r *Registry) Descriptions() []string {
	out := make([]string, len(r.descs))
	for i, d := range r.descs {
		out[i] = d.Description
	}
	return out
}
