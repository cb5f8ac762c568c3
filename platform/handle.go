package platform

import (
	"context"
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/LearningToPi/sbc-gpio/address"
	"github.com/LearningToPi/sbc-gpio/errcode"
	"github.com/LearningToPi/sbc-gpio/gpio"
)

// Handle is an identified board.  It owns no kernel resources; lines
// opened through it own theirs.
type Handle struct {
	desc      *Descriptor
	evidence  Evidence
	backend   gpio.Backend
	matchedBy Rule
	logger    *zap.Logger

	serialMu   sync.Mutex
	serialDone bool
	serial     string
	serialOK   bool
}

func (h *Handle) Model() string             { return h.desc.Model }
func (h *Handle) Description() string       { return h.desc.Description }
func (h *Handle) Descriptor() *Descriptor   { return h.desc }
func (h *Handle) MatchedBy() string         { return h.matchedBy.String() }
func (h *Handle) ValidPins() address.PinSet { return h.desc.Codec.ValidPins() }

// Backend returns the selected backend, or nil if none could be loaded.
func (h *Handle) Backend() gpio.Backend { return h.backend }

// AddressOf parses a pin designator in the board's native syntax.
func (h *Handle) AddressOf(designator string) (address.Address, error) {
	return h.desc.Codec.Parse(designator)
}

// AddressOfInt resolves a linear GPIO id.
func (h *Handle) AddressOfInt(n int) (address.Address, error) {
	return address.ParseInt(h.desc.Codec, n)
}

// IsValid reports whether designator names a usable pin.
func (h *Handle) IsValid(designator string) bool {
	_, err := h.AddressOf(designator)
	return err == nil
}

// Format renders a in the board's native syntax.
func (h *Handle) Format(a address.Address) (string, error) {
	return h.desc.Codec.Format(a)
}

// SerialNumber returns the board serial number, printable characters only.
// A found serial or a definite absence is remembered; a failed read is
// retried on the next call.  The caller's cancellation does not apply, the
// evidence command timeout does.
func (h *Handle) SerialNumber(ctx context.Context) (string, bool) {
	h.serialMu.Lock()
	defer h.serialMu.Unlock()
	if h.serialDone {
		return h.serial, h.serialOK
	}
	if h.desc.Serial == nil {
		h.serialDone = true
		return "", false
	}
	text, ok, err := h.desc.Serial.Evaluate(context.WithoutCancel(ctx), h.evidence)
	if err != nil {
		h.logger.Warn("unable to read serial number", zap.Stringer("rule", h.desc.Serial), zap.Error(err))
		return "", false
	}
	h.serialDone = true
	if !ok {
		return "", false
	}
	text = strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, text))
	h.serial, h.serialOK = text, text != ""
	return h.serial, h.serialOK
}

// Fingerprint is a stable identifier derived from the model and serial
// number.  It is empty when the serial number is unknown.
func (h *Handle) Fingerprint(ctx context.Context) (string, bool) {
	serial, ok := h.SerialNumber(ctx)
	if !ok {
		return "", false
	}
	sum := blake2b.Sum256([]byte(h.desc.Model + "\x00" + serial))
	return hex.EncodeToString(sum[:16]), true
}

var (
	spiDevRE = regexp.MustCompile(`^spidev([0-9]+)\.([0-9]+)$`)
	i2cDevRE = regexp.MustCompile(`^i2c-([0-9]+)$`)
)

// SPIBuses lists the SPI bus numbers with a spidev node.
func (h *Handle) SPIBuses() ([]int, error) {
	return h.scanDev(spiDevRE, func(m []string) (int, bool) {
		return atoi(m[1])
	})
}

// SPIChipSelects lists the chip selects exposed for bus.
func (h *Handle) SPIChipSelects(bus int) ([]int, error) {
	return h.scanDev(spiDevRE, func(m []string) (int, bool) {
		if b, ok := atoi(m[1]); !ok || b != bus {
			return 0, false
		}
		return atoi(m[2])
	})
}

// I2CBuses lists the I2C bus numbers with an i2c-N node.
func (h *Handle) I2CBuses() ([]int, error) {
	return h.scanDev(i2cDevRE, func(m []string) (int, bool) {
		return atoi(m[1])
	})
}

func (h *Handle) scanDev(re *regexp.Regexp, pick func([]string) (int, bool)) ([]int, error) {
	names, err := h.evidence.DevEntries()
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	out := []int{}
	for _, name := range names {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, ok := pick(m)
		if !ok || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// OpenOutput opens an output line at a, driving initial.
func (h *Handle) OpenOutput(a address.Address, initial gpio.Level, cfg gpio.OutputConfig) (*gpio.OutputLine, error) {
	if err := h.desc.Codec.Validate(a); err != nil {
		return nil, err
	}
	if h.backend == nil {
		return nil, errcode.New(errcode.BackendUnavailable, "open output", h.desc.Model+": no gpio backend")
	}
	cfg.Initial = initial
	l := gpio.NewOutputLine(h.backend, a, cfg)
	if err := l.Open(); err != nil {
		return nil, err
	}
	h.logger.Debug("output opened", zap.Stringer("address", a), zap.String("name", cfg.Name))
	return l, nil
}

// OpenInput opens an input line at a and, unless cfg.Idle is set, starts
// its detection worker under ctx.
func (h *Handle) OpenInput(ctx context.Context, a address.Address, cfg gpio.InputConfig, cb gpio.Callback) (*gpio.InputLine, error) {
	if err := h.desc.Codec.Validate(a); err != nil {
		return nil, err
	}
	if h.backend == nil {
		return nil, errcode.New(errcode.BackendUnavailable, "open input", h.desc.Model+": no gpio backend")
	}
	if cfg.Logger == nil {
		cfg.Logger = h.logger
	}
	l := gpio.NewInputLine(h.backend, a, cfg, cb)
	if err := l.Open(); err != nil {
		return nil, err
	}
	if !cfg.Idle {
		if err := l.Start(ctx); err != nil {
			return nil, multierr.Append(err, l.Close())
		}
	}
	return l, nil
}

// Output resolves designator and opens it as an output.
func (h *Handle) Output(designator string, initial gpio.Level, cfg gpio.OutputConfig) (*gpio.OutputLine, error) {
	a, err := h.AddressOf(designator)
	if err != nil {
		return nil, err
	}
	return h.OpenOutput(a, initial, cfg)
}

// Input resolves designator and opens it as an input.
func (h *Handle) Input(ctx context.Context, designator string, cfg gpio.InputConfig, cb gpio.Callback) (*gpio.InputLine, error) {
	a, err := h.AddressOf(designator)
	if err != nil {
		return nil, err
	}
	return h.OpenInput(ctx, a, cfg, cb)
}

// Release drops the handle.  Open lines are unaffected.
func (h *Handle) Release() {
	h.logger.Debug("platform handle released")
}
