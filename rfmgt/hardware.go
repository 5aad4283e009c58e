package rfmgt

import (
	"fmt"
	"strings"
)

// Hardware selects which output path a transmit stage drives.
type Hardware uint8

const (
	HwTest Hardware = iota
	HwUHD
	HwHackRF
)

var HardwareToName = map[Hardware]string{
	HwTest:   "test",
	HwUHD:    "uhd",
	HwHackRF: "hackrf",
}

var nameToHardware = map[string]Hardware{
	"test":     HwTest,
	"loopback": HwTest,
	"zmq":      HwTest,
	"uhd":      HwUHD,
	"usrp":     HwUHD,
	"hackrf":   HwHackRF,
	"osmosdr":  HwHackRF,
}

func (h Hardware) String() string {
	if name, ok := HardwareToName[h]; ok {
		return name
	}
	return fmt.Sprintf("Hardware(%d)", uint8(h))
}

// Valid reports whether h is one of the known output paths.
func (h Hardware) Valid() bool {
	_, ok := HardwareToName[h]
	return ok
}

// ParseHardware maps a user supplied name (case insensitive) to a Hardware value.
func ParseHardware(name string) (Hardware, error) {
	h, ok := nameToHardware[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown hardware %q", name)
	}
	return h, nil
}
