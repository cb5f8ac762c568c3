package address

import "strconv"

// AllowList accepts plain decimal pin numbers present in the list, with no
// transformation.  Used by the StarFive boards.
type AllowList struct {
	valid  PinSet
	syntax string
}

// NewAllowList returns an AllowList codec accepting exactly the given pins.
func NewAllowList(valid ...int) *AllowList {
	return &AllowList{
		valid:  NewPinSet(valid...),
		syntax: "numeric GPIO number below 64",
	}
}

// Name identifies the scheme in diagnostics.
func (c *AllowList) Name() string      { return "allow-list" }
func (c *AllowList) Syntax() string    { return c.syntax }
func (c *AllowList) ValidPins() PinSet { return c.valid }

// Parse accepts a plain decimal present in the list.
func (c *AllowList) Parse(designator string) (Address, error) {
	n, ok := decimal(normalize(designator))
	if !ok {
		return Address{}, invalidFormat(designator, c.syntax)
	}
	if !c.valid.Contains(n) {
		return Address{}, outOfRange(designator, n, c.valid)
	}
	return Address{Pin: uint32(n)}, nil
}

// Validate requires chip 0 and a listed pin.
func (c *AllowList) Validate(a Address) error {
	if a.Chip != 0 || !c.valid.Contains(int(a.Pin)) {
		return addressOutOfRange(a, c.valid)
	}
	return nil
}

// Format renders a as its decimal number.
func (c *AllowList) Format(a Address) (string, error) {
	if err := c.Validate(a); err != nil {
		return "", err
	}
	return strconv.Itoa(int(a.Pin)), nil
}
