package bus

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/busvip/sim/hdl"
)

// ErrMissingSignal is wrapped by the error returned when a mandatory role
// has no matching signal in the design.
var ErrMissingSignal = errors.New("bus: missing mandatory signal")

// A Bus maps the logical roles of a protocol to the signals of a design.
type Bus struct {
	name    string
	design  *Design
	signals map[string]*hdl.Signal
}

type bindConfig struct {
	separator string
	rename    map[string]string
}

// A BindOption customizes how roles are matched with signal names.
type BindOption func(c *bindConfig)

// WithSeparator sets the string between the bus name and the role. The
// default is "_".
func WithSeparator(sep string) BindOption {
	return func(c *bindConfig) {
		c.separator = sep
	}
}

// WithRename binds the role to a signal with an explicit name instead of
// the derived one.
func WithRename(role, signal string) BindOption {
	return func(c *bindConfig) {
		c.rename[role] = signal
	}
}

// Bind matches roles with the signals of the design. The signal of a role
// is named name + separator + role, unless renamed. A mandatory role
// without a signal is an error; an optional role without a signal is
// skipped.
func Bind(
	d *Design,
	name string,
	mandatory, optional []string,
	opts ...BindOption,
) (*Bus, error) {
	c := bindConfig{
		separator: "_",
		rename:    make(map[string]string),
	}

	for _, o := range opts {
		o(&c)
	}

	b := &Bus{
		name:    name,
		design:  d,
		signals: make(map[string]*hdl.Signal),
	}

	signalName := func(role string) string {
		if n, ok := c.rename[role]; ok {
			return n
		}

		if name == "" {
			return role
		}

		return name + c.separator + role
	}

	for _, role := range mandatory {
		n := signalName(role)

		s, ok := d.Signal(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s (role %s) in design %s",
				ErrMissingSignal, n, role, d.Name())
		}

		b.signals[role] = s
	}

	for _, role := range optional {
		if s, ok := d.Signal(signalName(role)); ok {
			b.signals[role] = s
		}
	}

	return b, nil
}

// Name returns the name of the bus.
func (b *Bus) Name() string {
	return b.name
}

// Design returns the design the bus is bound to.
func (b *Bus) Design() *Design {
	return b.design
}

// Get returns the signal that plays the role, or nil if the role is not
// bound.
func (b *Bus) Get(role string) *hdl.Signal {
	return b.signals[role]
}

// Has tells if the role is bound to a signal.
func (b *Bus) Has(role string) bool {
	_, ok := b.signals[role]
	return ok
}

// Roles returns the bound roles, sorted.
func (b *Bus) Roles() []string {
	roles := make([]string, 0, len(b.signals))
	for r := range b.signals {
		roles = append(roles, r)
	}

	sort.Strings(roles)

	return roles
}
