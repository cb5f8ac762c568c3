package platform_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/LearningToPi/sbc-gpio/address"
	"github.com/LearningToPi/sbc-gpio/errcode"
	"github.com/LearningToPi/sbc-gpio/gpio"
	"github.com/LearningToPi/sbc-gpio/gpio/gpiotest"
	"github.com/LearningToPi/sbc-gpio/platform"
)

const (
	modelFile     = "/sys/firmware/devicetree/base/model"
	serialFile    = "/sys/firmware/devicetree/base/serial-number"
	cpuinfoSerial = "/usr/bin/cat /proc/cpuinfo  | grep -i Serial | awk -F ': ' '{print $2}'"
)

// scripted answers commands from a table.  The first failFirst calls fail.
type scripted struct {
	out       map[string]string
	calls     atomic.Int32
	failFirst int32
}

func (s *scripted) Output(ctx context.Context, command string) ([]byte, error) {
	n := s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= s.failFirst {
		return nil, errors.New("resource temporarily unavailable")
	}
	out, ok := s.out[command]
	if !ok {
		return nil, errors.New("exit status 1")
	}
	return []byte(out), nil
}

func memFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
	return fs
}

func identifier(t *testing.T, files map[string]string, runner platform.CommandRunner, sim gpio.Backend) *platform.Identifier {
	t.Helper()
	if runner == nil {
		runner = &scripted{}
	}
	loaders := []platform.Option{
		platform.WithEvidence(platform.Evidence{FS: memFS(t, files), Runner: runner}),
		platform.WithBackendLoader(gpio.KindPeriph, nil),
		platform.WithBackendLoader(gpio.KindCdev, func() (gpio.Backend, error) {
			if sim == nil {
				return nil, errors.New("no gpiochip")
			}
			return sim, nil
		}),
	}
	return platform.NewIdentifier(loaders...)
}

func TestIdentifyBuiltInBoards(t *testing.T) {
	tests := []struct {
		model string
		file  string
		body  string
	}{
		{platform.ModelPi4B, modelFile, "Raspberry Pi 4 Model B Rev 1.4\x00"},
		{platform.ModelPi3B, modelFile, "Raspberry Pi 3 Model B Plus Rev 1.3\x00"},
		{platform.ModelPiZeroW, modelFile, "Raspberry Pi Zero W Rev 1.1\x00"},
		{platform.ModelPiZero, modelFile, "Raspberry Pi Zero Rev 1.3\x00"},
		{platform.ModelOrangePi5, modelFile, "Orange Pi 5\x00"},
		{platform.ModelRock5B, modelFile, "Radxa ROCK 5B\x00"},
		{platform.ModelCB1, modelFile, "BQ-H616\x00"},
		{platform.ModelStarFive2, modelFile, "StarFive VisionFive V2\x00"},
		{platform.ModelAtomZ8350, "/proc/cpuinfo", "model name\t: Intel(R) Atom(TM) x5-Z8350  CPU @ 1.44GHz\n"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			id := identifier(t, map[string]string{tt.file: tt.body}, nil, gpiotest.New())
			h, err := id.Identify(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.model, h.Model())
			assert.NotNil(t, h.Backend())
		})
	}
}

func TestIdentifyNothingMatches(t *testing.T) {
	id := identifier(t, map[string]string{modelFile: "Some Other Board\x00"}, nil, nil)
	_, err := id.Identify(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.PlatformNotIdentified)
	assert.Equal(t, errcode.PlatformNotIdentified, errcode.Of(err))

	var nie *platform.NotIdentifiedError
	require.ErrorAs(t, err, &nie)
	assert.Equal(t, platform.Default().Descriptions(), nie.Supported)
	assert.Contains(t, err.Error(), "Radxa ROCK 5B")
}

// panicRule fails the test if it is ever evaluated.
type panicRule struct{ t *testing.T }

func (r panicRule) Evaluate(context.Context, platform.Evidence) (string, bool, error) {
	r.t.Fatal("rule evaluated after an earlier match")
	return "", false, nil
}
func (r panicRule) String() string { return "never" }

func TestFirstMatchWinsAndShortCircuits(t *testing.T) {
	codec := address.NewAllowList(1, 2)
	reg, err := platform.NewRegistry(
		platform.Descriptor{
			Model:    "first",
			Rules:    []platform.Rule{platform.FileContains("/etc/board", "^alpha"), panicRule{t}},
			Codec:    codec,
			Backends: []gpio.BackendKind{gpio.KindSim},
		},
		platform.Descriptor{
			Model: "second",
			Rules: []platform.Rule{panicRule{t}},
			Codec: codec,
		},
	)
	require.NoError(t, err)

	sim := gpiotest.New()
	id := platform.NewIdentifier(
		platform.WithRegistry(reg),
		platform.WithEvidence(platform.Evidence{FS: memFS(t, map[string]string{"/etc/board": "alpha"})}),
		platform.WithBackendLoader(gpio.KindSim, func() (gpio.Backend, error) { return sim, nil }),
	)
	h, err := id.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", h.Model())
	assert.Equal(t, "first", h.Description())
	assert.Same(t, sim, h.Backend())
}

func TestMissingEvidenceIsNonMatch(t *testing.T) {
	runner := &scripted{}
	reg := platform.MustRegistry(
		platform.Descriptor{
			Model: "cmd",
			Rules: []platform.Rule{
				platform.CommandOutputContains("vendor-tool --id", "x"),
				platform.FileContains("/missing", "x"),
			},
			Codec: address.NewAllowList(1),
		},
		platform.Descriptor{
			Model: "fallback",
			Rules: []platform.Rule{platform.AlwaysMatch()},
			Codec: address.NewAllowList(1),
		},
	)
	core, logs := observer.New(zap.DebugLevel)
	id := platform.NewIdentifier(
		platform.WithRegistry(reg),
		platform.WithEvidence(platform.Evidence{FS: afero.NewMemMapFs(), Runner: runner}),
		platform.WithLogger(zap.New(core)),
	)
	h, err := id.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback", h.Model())
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("rule evidence unavailable").Len())
}

func TestRegistryValidation(t *testing.T) {
	codec := address.NewAllowList(1)
	rules := []platform.Rule{platform.AlwaysMatch()}

	_, err := platform.NewRegistry(platform.Descriptor{Rules: rules, Codec: codec})
	assert.Error(t, err)
	_, err = platform.NewRegistry(platform.Descriptor{Model: "a", Rules: rules})
	assert.Error(t, err)
	_, err = platform.NewRegistry(platform.Descriptor{Model: "a", Codec: codec})
	assert.Error(t, err)
	_, err = platform.NewRegistry(
		platform.Descriptor{Model: "a", Rules: rules, Codec: codec},
		platform.Descriptor{Model: "a", Rules: rules, Codec: codec},
	)
	assert.Error(t, err)
}

func TestDefaultRegistryOrder(t *testing.T) {
	reg := platform.Default()
	assert.Same(t, reg, platform.Default())
	models := []string{}
	for _, d := range reg.All() {
		models = append(models, d.Model)
	}
	assert.Equal(t, []string{
		platform.ModelPi4B, platform.ModelPi3B, platform.ModelPiZeroW, platform.ModelPiZero,
		platform.ModelOrangePi5, platform.ModelRock5B, platform.ModelCB1,
		platform.ModelStarFive2, platform.ModelAtomZ8350,
	}, models)

	d, ok := reg.Lookup(platform.ModelRock5B)
	require.True(t, ok)
	assert.Equal(t, 26, d.ValidPins().Len())
	_, ok = reg.Lookup("Pi5")
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	id := identifier(t, map[string]string{modelFile: "Radxa ROCK 5B\x00"}, nil, nil)
	cands, err := id.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cands, platform.Default().Len())
	matched := []string{}
	for _, c := range cands {
		if c.Matched {
			matched = append(matched, c.Model)
			assert.Contains(t, c.Rule, "ROCK 5B")
		}
	}
	assert.Equal(t, []string{platform.ModelRock5B}, matched)
}

func TestForce(t *testing.T) {
	id := identifier(t, nil, nil, gpiotest.New())
	h, err := id.Force(context.Background(), platform.ModelCB1)
	require.NoError(t, err)
	assert.Equal(t, "Bigtree CB1", h.Description())
	assert.Equal(t, "always", h.MatchedBy())

	_, err = id.Force(context.Background(), "Pi5")
	assert.ErrorIs(t, err, errcode.PlatformNotIdentified)
}

func TestNoBackendStillIdentifies(t *testing.T) {
	id := identifier(t, map[string]string{modelFile: "Radxa ROCK 5B"}, nil, nil)
	h, err := id.Identify(context.Background())
	require.NoError(t, err)
	assert.Nil(t, h.Backend())

	a, err := h.AddressOf("3B6")
	require.NoError(t, err)
	_, err = h.OpenOutput(a, gpio.Low, gpio.OutputConfig{})
	assert.ErrorIs(t, err, errcode.BackendUnavailable)
}

func TestSerialNumber(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		id := identifier(t, map[string]string{
			modelFile:  "Raspberry Pi 4 Model B Rev 1.4\x00",
			serialFile: "10000000a1b2c3d4\x00",
		}, nil, nil)
		h, err := id.Identify(context.Background())
		require.NoError(t, err)
		serial, ok := h.SerialNumber(context.Background())
		require.True(t, ok)
		assert.Equal(t, "10000000a1b2c3d4", serial)

		fp, ok := h.Fingerprint(context.Background())
		require.True(t, ok)
		assert.Len(t, fp, 32)
		again, _ := h.Fingerprint(context.Background())
		assert.Equal(t, fp, again)
	})

	t.Run("command run once", func(t *testing.T) {
		runner := &scripted{out: map[string]string{
			cpuinfoSerial: "a1b2\x07c3d4\n",
		}}
		id := identifier(t, map[string]string{modelFile: "Orange Pi 5"}, runner, nil)
		h, err := id.Identify(context.Background())
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			serial, ok := h.SerialNumber(context.Background())
			require.True(t, ok)
			assert.Equal(t, "a1b2c3d4", serial)
		}
		assert.Equal(t, int32(1), runner.calls.Load())
	})

	t.Run("cancelled caller", func(t *testing.T) {
		runner := &scripted{out: map[string]string{cpuinfoSerial: "a1b2c3d4\n"}}
		id := identifier(t, map[string]string{modelFile: "Orange Pi 5"}, runner, nil)
		h, err := id.Identify(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		serial, ok := h.SerialNumber(ctx)
		require.True(t, ok)
		assert.Equal(t, "a1b2c3d4", serial)
	})

	t.Run("failed read is retried", func(t *testing.T) {
		runner := &scripted{out: map[string]string{cpuinfoSerial: "a1b2c3d4\n"}, failFirst: 1}
		id := identifier(t, map[string]string{modelFile: "Orange Pi 5"}, runner, nil)
		h, err := id.Identify(context.Background())
		require.NoError(t, err)

		_, ok := h.SerialNumber(context.Background())
		assert.False(t, ok)
		serial, ok := h.SerialNumber(context.Background())
		require.True(t, ok)
		assert.Equal(t, "a1b2c3d4", serial)
		_, _ = h.SerialNumber(context.Background())
		assert.Equal(t, int32(2), runner.calls.Load())
	})

	t.Run("none", func(t *testing.T) {
		id := identifier(t, map[string]string{"/proc/cpuinfo": "x5-Z8350"}, nil, nil)
		h, err := id.Identify(context.Background())
		require.NoError(t, err)
		_, ok := h.SerialNumber(context.Background())
		assert.False(t, ok)
		_, ok = h.Fingerprint(context.Background())
		assert.False(t, ok)
	})
}

func TestBuses(t *testing.T) {
	fs := memFS(t, map[string]string{modelFile: "Radxa ROCK 5B"})
	for _, name := range []string{"spidev0.0", "spidev0.1", "spidev3.0", "i2c-7", "i2c-1", "i2c-dev", "tty0"} {
		require.NoError(t, afero.WriteFile(fs, "/dev/"+name, nil, 0o600))
	}
	id := platform.NewIdentifier(
		platform.WithEvidence(platform.Evidence{FS: fs, Runner: &scripted{}}),
		platform.WithBackendLoader(gpio.KindCdev, nil),
		platform.WithBackendLoader(gpio.KindPeriph, nil),
	)
	h, err := id.Identify(context.Background())
	require.NoError(t, err)

	spi, err := h.SPIBuses()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, spi)

	cs, err := h.SPIChipSelects(0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, cs)

	cs, err = h.SPIChipSelects(5)
	require.NoError(t, err)
	assert.Empty(t, cs)

	i2c, err := h.I2CBuses()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 7}, i2c)
}

func TestHandleOpensLines(t *testing.T) {
	sim := gpiotest.New()
	id := identifier(t, map[string]string{modelFile: "Radxa ROCK 5B"}, nil, sim)
	h, err := id.Identify(context.Background())
	require.NoError(t, err)

	assert.True(t, h.IsValid("3b6"))
	assert.False(t, h.IsValid("0A0"))

	out, err := h.Output("3B6", gpio.High, gpio.OutputConfig{Name: "led"})
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, gpio.High, sim.Level(address.Address{Chip: 3, Pin: 14}))

	a, err := h.AddressOfInt(41)
	require.NoError(t, err)
	text, err := h.Format(a)
	require.NoError(t, err)
	assert.Equal(t, "1B1", text)

	in, err := h.Input(context.Background(), "1b1", gpio.DefaultInputConfig(), nil)
	require.NoError(t, err)
	assert.True(t, in.Running())
	require.NoError(t, in.Close())

	_, err = h.OpenOutput(address.Address{Chip: 0, Pin: 0}, gpio.Low, gpio.OutputConfig{})
	assert.ErrorIs(t, err, errcode.OutOfRange)
	_, err = h.Output("ZZ", gpio.Low, gpio.OutputConfig{})
	assert.ErrorIs(t, err, errcode.InvalidFormat)

	h.Release()
	assert.True(t, out.IsOpen())
}
