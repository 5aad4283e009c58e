package txout

import (
	"context"
	"os/exec"

	"github.com/racerxdl/tx_out/rfmgt"
)

// StreamArgs describes the host side sample format handed to a USRP driver.
type StreamArgs struct {
	CPUFormat string
	Channels  []int
}

// USRPDevice is an opened USRP-class transmitter.
type USRPDevice interface {
	SetSampleRate(rate float64) error
	SetCenterFreq(freq float64, channel int) error
	SetGain(gain float64, channel int) error
	SetAntenna(name string, channel int) error
	// Start begins streaming with the applied settings. Settings are fixed afterwards.
	Start() error
	Write(ctx context.Context, samples []complex64) error
	Close() error
}

// USRPDriver opens USRP-class devices. An empty address selects the default device.
type USRPDriver interface {
	Open(deviceAddr string, args StreamArgs) (USRPDevice, error)
}

// HackRFDevice is an opened HackRF-class transmitter.
type HackRFDevice interface {
	SetSampleRate(rate float64) error
	SetCenterFreq(freq float64, channel int) error
	SetFreqCorr(ppm float64, channel int) error
	SetGain(gain float64, channel int) error
	SetIFGain(gain float64, channel int) error
	SetBBGain(gain float64, channel int) error
	SetAntenna(name string, channel int) error
	SetBandwidth(bandwidth float64, channel int) error
	Start() error
	Write(ctx context.Context, samples []complex64) error
	Close() error
}

// HackRFOpener opens HackRF-class devices from an osmosdr style args string.
type HackRFOpener interface {
	Open(args string) (HackRFDevice, error)
}

// PushSocket is the sending half of a push/pull pair.
type PushSocket interface {
	Send(payload []byte) error
	Close() error
}

// PushOpener binds a push socket on a transport address.
type PushOpener interface {
	OpenPush(address string) (PushSocket, error)
}

// Drivers is the set of output drivers available to this process.
// A nil USRP or HackRF entry means that driver is not installed.
type Drivers struct {
	Push   PushOpener
	USRP   USRPDriver
	HackRF HackRFOpener
}

// Available reports whether the driver behind hw can be used.
func (d Drivers) Available(hw rfmgt.Hardware) bool {
	switch hw {
	case rfmgt.HwTest:
		return d.Push != nil
	case rfmgt.HwUHD:
		return d.USRP != nil
	case rfmgt.HwHackRF:
		return d.HackRF != nil
	}
	return false
}

// DriverPaths names the vendor tools used to reach the hardware.
type DriverPaths struct {
	UHD    string
	HackRF string
}

var DefaultDriverPaths = DriverPaths{
	UHD:    "tx_samples_from_file",
	HackRF: "hackrf_transfer",
}

var lookPath = exec.LookPath

// DetectDrivers resolves which drivers are installed. It is meant to run once
// at startup; missing vendor tools disable their output path.
func DetectDrivers(paths DriverPaths) Drivers {
	d := Drivers{
		Push: ZMQPush{},
	}

	if bin, err := lookPath(paths.UHD); err == nil {
		log.Debug("Found UHD tool at %s", bin)
		d.USRP = UHDDriver{Binary: bin}
	} else {
		log.Warn("No UHD support detected (%s). USRP not available.", paths.UHD)
	}

	if bin, err := lookPath(paths.HackRF); err == nil {
		log.Debug("Found HackRF tool at %s", bin)
		d.HackRF = HackRFDriver{Binary: bin}
	} else {
		log.Warn("No HackRF support detected (%s). HackRF not available.", paths.HackRF)
	}

	return d
}
