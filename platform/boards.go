package platform

import (
	"github.com/LearningToPi/sbc-gpio/address"
	"github.com/LearningToPi/sbc-gpio/gpio"
)

const (
	ModelPi4B      = "Pi4B"
	ModelPi3B      = "Pi3B"
	ModelPiZeroW   = "PiZeroW"
	ModelPiZero    = "PiZero"
	ModelOrangePi5 = "OrangePi5"
	ModelRock5B    = "Rock5B"
	ModelCB1       = "CB1"
	ModelStarFive2 = "VisionFive-2"
	ModelAtomZ8350 = "atom-z8350"
)

const (
	modelFile  = "/sys/firmware/devicetree/base/model"
	serialFile = "/sys/firmware/devicetree/base/serial-number"
	cpuinfo    = "/proc/cpuinfo"

	cpuinfoSerial = "/usr/bin/cat /proc/cpuinfo  | grep -i Serial | awk -F ': ' '{print $2}'"
)

var (
	rpiPins = func() []int {
		pins := make([]int, 28)
		for i := range pins {
			pins[i] = i
		}
		return pins
	}()
	orangePi5Pins = []int{47, 46, 54, 138, 139, 28, 49, 48, 50, 131, 132, 29, 59, 58, 92, 52, 35}
	rock5bPins    = []int{139, 138, 115, 113, 111, 112, 42, 41, 43, 150, 63, 47, 103, 110, 13, 14, 109, 100, 148, 44, 45, 149, 114, 105, 106, 107}
	cb1Pins       = []int{71, 78, 76, 74, 231, 232, 230, 198, 70, 79, 224, 225, 77, 75, 73, 200, 199, 201, 234, 72}
	starFivePins  = []int{58, 57, 55, 42, 43, 47, 52, 53, 48, 45, 37, 39, 59, 63, 60, 5, 6, 38, 54, 51, 50, 49, 56, 40, 46, 36, 61, 44}
	atomPins      = []int{335, 332, 338, 329, 336, 330, 348, 346}
	atomBases     = [4]int{414, 341, 314, 228}
)

var (
	rpiBackends  = []gpio.BackendKind{gpio.KindPeriph, gpio.KindCdev}
	cdevBackends = []gpio.BackendKind{gpio.KindCdev}
)

func rpi(model, description, pattern string) Descriptor {
	return Descriptor{
		Model:       model,
		Description: description,
		Rules:       []Rule{FileContains(modelFile, pattern)},
		Serial:      FileContains(serialFile, `.+`),
		Codec:       address.NewLinear(rpiPins...),
		Backends:    rpiBackends,
	}
}

// Boards returns the built-in descriptors in identification order.  More
// specific models come before the ones whose patterns they would also
// match.
func Boards() []Descriptor {
	return []Descriptor{
		rpi(ModelPi4B, "Raspberry Pi 4 Model B", `^Raspberry Pi 4 Model B`),
		rpi(ModelPi3B, "Raspberry Pi 3 Model B", `^Raspberry Pi 3 Model B`),
		rpi(ModelPiZeroW, "Raspberry Pi Zero W", `^Raspberry Pi Zero W( Rev|$)`),
		rpi(ModelPiZero, "Raspberry Pi Zero", `^Raspberry Pi Zero( Rev|$)`),
		{
			Model:       ModelOrangePi5,
			Description: "Orange Pi 5",
			Rules:       []Rule{FileContains(modelFile, `^Orange Pi 5$`)},
			Serial:      CommandOutputContains(cpuinfoSerial, `.+`),
			Codec:       address.NewBankOffset(orangePi5Pins),
			Backends:    cdevBackends,
		},
		{
			Model:       ModelRock5B,
			Description: "Radxa ROCK 5B",
			Rules:       []Rule{FileContains(modelFile, `^Radxa ROCK 5B`)},
			Serial:      CommandOutputContains(cpuinfoSerial, `.+`),
			Codec:       address.NewBankOffset(rock5bPins),
			Backends:    cdevBackends,
		},
		{
			Model:       ModelCB1,
			Description: "Bigtree CB1",
			Rules:       []Rule{FileContains(modelFile, `^BQ-H616$`)},
			Serial:      FileContains(serialFile, `.+`),
			Codec:       address.NewGroup("CFGHIL", cb1Pins...),
			Backends:    cdevBackends,
		},
		{
			Model:       ModelStarFive2,
			Description: "StarFive VisionFive V2",
			Rules:       []Rule{FileContains(modelFile, `StarFive VisionFive V2`)},
			Serial:      FileContains(serialFile, `.+`),
			Codec:       address.NewAllowList(starFivePins...),
			Backends:    cdevBackends,
		},
		{
			Model:       ModelAtomZ8350,
			Description: "Intel Atom x5-Z8350",
			Rules:       []Rule{FileContains(cpuinfo, `x5-Z8350`)},
			Codec:       address.NewChipOffset(atomBases, atomPins...),
			Backends:    cdevBackends,
		},
	}
}
