package address

import (
	"fmt"
	"regexp"
)

var chipOffsetRE = regexp.MustCompile(`^([0-3]?)-([0-9]*)$`)

// ChipOffset is the x86 Atom scheme <controller>-<pin>, e.g. "2-21".  Each
// of the four GPIO controllers starts at a fixed global number; the
// canonical address is that global number on chip 0.
type ChipOffset struct {
	valid   PinSet
	offsets [4]int
	syntax  string
}

// NewChipOffset returns a ChipOffset codec using the controller base offsets.
func NewChipOffset(offsets [4]int, valid ...int) *ChipOffset {
	return &ChipOffset{
		valid:   NewPinSet(valid...),
		offsets: offsets,
		syntax:  `GPIO chip (0-3) followed by a "-" and the pin number, e.g. 2-21`,
	}
}

// Name identifies the scheme in diagnostics.
func (c *ChipOffset) Name() string      { return "chip-offset" }
func (c *ChipOffset) Syntax() string    { return c.syntax }
func (c *ChipOffset) ValidPins() PinSet { return c.valid }

// Parse resolves controller-pin designators such as 2-21 to the global
// number.  A bare global number in the valid set is accepted as is.
func (c *ChipOffset) Parse(designator string) (Address, error) {
	d := normalize(designator)
	if n, ok := bypass(d, c.valid); ok {
		return Address{Pin: uint32(n)}, nil
	}
	m := chipOffsetRE.FindStringSubmatch(d)
	if m == nil || m[1] == "" || m[2] == "" {
		return Address{}, invalidFormat(designator, c.syntax)
	}
	num, ok := decimal(m[2])
	if !ok {
		return Address{}, invalidFormat(designator, c.syntax)
	}
	global := c.offsets[m[1][0]-'0'] + num
	if !c.valid.Contains(global) {
		return Address{}, outOfRange(designator, global, c.valid)
	}
	return Address{Pin: uint32(global)}, nil
}

// Validate requires chip 0 and a valid global number.
func (c *ChipOffset) Validate(a Address) error {
	if a.Chip != 0 || !c.valid.Contains(int(a.Pin)) {
		return addressOutOfRange(a, c.valid)
	}
	return nil
}

// Format picks the controller with the highest base not above the pin.
func (c *ChipOffset) Format(a Address) (string, error) {
	if err := c.Validate(a); err != nil {
		return "", err
	}
	pin := int(a.Pin)
	best := -1
	for i, off := range c.offsets {
		if off <= pin && (best < 0 || off > c.offsets[best]) {
			best = i
		}
	}
	if best < 0 {
		return "", addressOutOfRange(a, c.valid)
	}
	return fmt.Sprintf("%d-%d", best, pin-c.offsets[best]), nil
}
