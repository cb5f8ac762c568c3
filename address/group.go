package address

import (
	"fmt"
	"regexp"
	"strings"
)

var groupRE = regexp.MustCompile(`^P([A-Z])([0-9]*)$`)

// Group is the Allwinner scheme P<group><number>, e.g. "PC7".  The group
// letter's position in the alphabet times 32 plus the number is the line
// offset on chip 0, so PC7 is 2*32+7 = 71.
type Group struct {
	valid  PinSet
	groups string
	syntax string
}

// NewGroup returns a Group codec that only accepts the given group letters.
func NewGroup(groups string, valid ...int) *Group {
	groups = strings.ToUpper(groups)
	return &Group{
		valid:  NewPinSet(valid...),
		groups: groups,
		syntax: fmt.Sprintf("P<group><num> with group one of %s, e.g. PC7", groups),
	}
}

// Name identifies the scheme in diagnostics.
func (c *Group) Name() string      { return "group" }
func (c *Group) Syntax() string    { return c.syntax }
func (c *Group) ValidPins() PinSet { return c.valid }

// Parse resolves P<letter><n> to letter*32+n on chip 0.
func (c *Group) Parse(designator string) (Address, error) {
	d := normalize(designator)
	if n, ok := bypass(d, c.valid); ok {
		return Address{Pin: uint32(n)}, nil
	}
	m := groupRE.FindStringSubmatch(d)
	if m == nil || m[2] == "" || !strings.Contains(c.groups, m[1]) {
		return Address{}, invalidFormat(designator, c.syntax)
	}
	num, ok := decimal(m[2])
	if !ok {
		return Address{}, invalidFormat(designator, c.syntax)
	}
	pin := int(m[1][0]-'A')*linesPerChip + num
	if !c.valid.Contains(pin) {
		return Address{}, outOfRange(designator, pin, c.valid)
	}
	return Address{Pin: uint32(pin)}, nil
}

// Validate requires chip 0 and a wired pin.
func (c *Group) Validate(a Address) error {
	if a.Chip != 0 || !c.valid.Contains(int(a.Pin)) {
		return addressOutOfRange(a, c.valid)
	}
	return nil
}

// Format renders a as P<letter><n>.
func (c *Group) Format(a Address) (string, error) {
	if err := c.Validate(a); err != nil {
		return "", err
	}
	return fmt.Sprintf("P%c%d", 'A'+rune(a.Pin/linesPerChip), a.Pin%linesPerChip), nil
}
