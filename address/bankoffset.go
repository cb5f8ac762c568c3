package address

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	banks        = "ABCD"
	linesPerBank = 8
	linesPerChip = 32
)

var bankOffsetRE = regexp.MustCompile(`^([0-4]?)([A-D])([0-7])$`)

// BankOffset is the Rockchip scheme <chip><bank><offset>, e.g. "3B6".  The
// line offset on the chip is bank*8+offset and the board's valid values are
// the linear ids chip*32+offset.
type BankOffset struct {
	valid       PinSet
	defaultChip int
	syntax      string
}

// BankOption configures a BankOffset codec.
type BankOption func(*BankOffset)

// WithDefaultChip makes the chip digit optional, using chip when omitted.
func WithDefaultChip(chip int) BankOption {
	return func(c *BankOffset) { c.defaultChip = chip }
}

// WithSyntax replaces the format description used in errors.
func WithSyntax(syntax string) BankOption {
	return func(c *BankOffset) { c.syntax = syntax }
}

// NewBankOffset returns a BankOffset codec for the given linear ids.
func NewBankOffset(valid []int, opts ...BankOption) *BankOffset {
	c := &BankOffset{
		valid:       NewPinSet(valid...),
		defaultChip: -1,
		syntax:      "GPIO chip (0-4) followed by bank A-D and line 0-7, e.g. 3B6",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name identifies the scheme in diagnostics.
func (c *BankOffset) Name() string      { return "bank-offset" }
func (c *BankOffset) Syntax() string    { return c.syntax }
func (c *BankOffset) ValidPins() PinSet { return c.valid }

// Parse resolves designators such as 3B6, or a bare linear id that is
// already valid.
func (c *BankOffset) Parse(designator string) (Address, error) {
	d := normalize(designator)
	if n, ok := bypass(d, c.valid); ok {
		return Address{Chip: uint32(n / linesPerChip), Pin: uint32(n % linesPerChip)}, nil
	}
	m := bankOffsetRE.FindStringSubmatch(d)
	if m == nil {
		return Address{}, invalidFormat(designator, c.syntax)
	}
	chip := c.defaultChip
	if m[1] != "" {
		chip = int(m[1][0] - '0')
	}
	if chip < 0 {
		return Address{}, invalidFormat(designator, c.syntax)
	}
	pin := strings.IndexByte(banks, m[2][0])*linesPerBank + int(m[3][0]-'0')
	linear := chip*linesPerChip + pin
	if !c.valid.Contains(linear) {
		return Address{}, outOfRange(designator, linear, c.valid)
	}
	return Address{Chip: uint32(chip), Pin: uint32(pin)}, nil
}

// Validate checks the linear id chip*32+pin against the valid set.
func (c *BankOffset) Validate(a Address) error {
	if a.Pin >= linesPerChip || !c.valid.Contains(int(a.Chip)*linesPerChip+int(a.Pin)) {
		return addressOutOfRange(a, c.valid)
	}
	return nil
}

// Format renders a as chip, bank letter and offset.
func (c *BankOffset) Format(a Address) (string, error) {
	if err := c.Validate(a); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d%c%d", a.Chip, banks[a.Pin/linesPerBank], a.Pin%linesPerBank), nil
}
