// Package address translates human entered pin designators into canonical
// GPIO addresses.
//
// Every supported board family spells its pins differently: a Raspberry Pi
// uses the BCM number ("17"), Rockchip boards use chip, bank and offset
// ("3B6"), Allwinner boards use a port group ("PC7") and the Atom based
// boards use a controller and a pin ("2-21").  A Codec hides the notation and
// always yields the same Address value, validated against the pins the board
// actually wires to its header.
package address

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/LearningToPi/sbc-gpio/errcode"
)

// Address is the canonical (chip, pin) form every designator resolves to.
// Pin is the line offset on the chip as understood by the GPIO backend.
type Address struct {
	Chip uint32
	Pin  uint32
}

func (a Address) String() string {
	return fmt.Sprintf("%d:%d", a.Chip, a.Pin)
}

// Codec converts between designators and addresses for one addressing
// scheme.  Implementations are immutable and safe for concurrent use.
type Codec interface {
	// Name identifies the scheme, e.g. "bank-offset".
	Name() string
	// Parse resolves a designator.  It fails with errcode.InvalidFormat when
	// the text does not follow the scheme and errcode.OutOfRange when it
	// does but the pin is not wired on the board.
	Parse(designator string) (Address, error)
	// Format renders a valid address back into the scheme's notation.
	Format(a Address) (string, error)
	// Validate fails with errcode.OutOfRange unless a is a wired pin.
	Validate(a Address) error
	// ValidPins returns the published valid values of the board.
	ValidPins() PinSet
	// Syntax describes the expected designator format for error messages.
	Syntax() string
}

// ParseInt resolves an integer designator with c.
func ParseInt(c Codec, n int) (Address, error) {
	if n < 0 {
		return Address{}, invalidFormat(strconv.Itoa(n), c.Syntax())
	}
	return c.Parse(strconv.Itoa(n))
}

// PinSet is an ordered set of pin numbers.  The order is the one the board
// publishes and is kept for diagnostics only.
type PinSet struct {
	order []int
	set   map[int]struct{}
}

// NewPinSet builds a set from pins, dropping duplicates.
func NewPinSet(pins ...int) PinSet {
	s := PinSet{set: make(map[int]struct{}, len(pins))}
	for _, p := range pins {
		if _, dup := s.set[p]; dup {
			continue
		}
		s.set[p] = struct{}{}
		s.order = append(s.order, p)
	}
	return s
}

// Contains reports whether n is a valid pin.
func (s PinSet) Contains(n int) bool {
	_, ok := s.set[n]
	return ok
}

func (s PinSet) Len() int { return len(s.order) }

// Values returns the pins in published order.
func (s PinSet) Values() []int {
	return append([]int(nil), s.order...)
}

// Sorted returns the pins in ascending order.
func (s PinSet) Sorted() []int {
	v := s.Values()
	sort.Ints(v)
	return v
}

func (s PinSet) String() string {
	parts := make([]string, len(s.order))
	for i, p := range s.order {
		parts[i] = strconv.Itoa(p)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// normalize trims the designator and folds letters to upper case.
func normalize(designator string) string {
	return strings.ToUpper(strings.TrimSpace(designator))
}

// decimal reports whether s is a non-empty run of ASCII digits and returns
// its value.  Values too large for an int are reported as not decimal.
func decimal(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// bypass accepts a bare number that is already one of the board's valid
// values, even on schemes that otherwise require structured syntax.
func bypass(d string, valid PinSet) (int, bool) {
	n, ok := decimal(d)
	if !ok || !valid.Contains(n) {
		return 0, false
	}
	return n, true
}

func invalidFormat(designator, syntax string) error {
	return errcode.New(errcode.InvalidFormat, "parse",
		fmt.Sprintf("%q does not match the pin format: %s", designator, syntax))
}

func outOfRange(designator string, n int, valid PinSet) error {
	return errcode.New(errcode.OutOfRange, "parse",
		fmt.Sprintf("%q resolves to gpio %d which is not in the valid range %s", designator, n, valid))
}

func addressOutOfRange(a Address, valid PinSet) error {
	return errcode.New(errcode.OutOfRange, "validate",
		fmt.Sprintf("address %s is not in the valid range %s", a, valid))
}
