package address

import (
	"regexp"
	"strconv"
)

var linearRE = regexp.MustCompile(`^(?:GPIO|BCM)?([0-9]+)$`)

// Linear is the Raspberry Pi scheme: a BCM GPIO number, optionally prefixed
// with GPIO or BCM, always on chip 0.  Only the listed pins are valid; gaps
// are rejected.
type Linear struct {
	valid PinSet
}

// NewLinear returns a Linear codec accepting the given pins.
func NewLinear(valid ...int) *Linear {
	return &Linear{valid: NewPinSet(valid...)}
}

// Name identifies the scheme in diagnostics.
func (c *Linear) Name() string { return "linear" }

func (c *Linear) Syntax() string {
	return "GPIO number such as 17 or GPIO17"
}

func (c *Linear) ValidPins() PinSet { return c.valid }

// Parse accepts 17, GPIO17 or BCM17.
func (c *Linear) Parse(designator string) (Address, error) {
	m := linearRE.FindStringSubmatch(normalize(designator))
	if m == nil {
		return Address{}, invalidFormat(designator, c.Syntax())
	}
	n, ok := decimal(m[1])
	if !ok {
		return Address{}, invalidFormat(designator, c.Syntax())
	}
	if !c.valid.Contains(n) {
		return Address{}, outOfRange(designator, n, c.valid)
	}
	return Address{Chip: 0, Pin: uint32(n)}, nil
}

func (c *Linear) Validate(a Address) error {
	if a.Chip != 0 || !c.valid.Contains(int(a.Pin)) {
		return addressOutOfRange(a, c.valid)
	}
	return nil
}

// Format renders a as the bare GPIO number.
func (c *Linear) Format(a Address) (string, error) {
	if err := c.Validate(a); err != nil {
		return "", err
	}
	return strconv.Itoa(int(a.Pin)), nil
}
