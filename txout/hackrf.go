package txout

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// HackRFDeviceArgs builds the osmosdr style args string for a HackRF sink.
func HackRFDeviceArgs(numChan int, extra string) string {
	return "numchan=" + strconv.Itoa(numChan) + " " + extra
}

// HackRFDriver drives HackRF radios through the hackrf_transfer tool.
type HackRFDriver struct {
	Binary string
}

func (d HackRFDriver) Open(args string) (HackRFDevice, error) {
	dev := &hackrfDevice{binary: d.Binary, numChan: 1}
	for _, field := range strings.Fields(args) {
		key, value, _ := strings.Cut(field, "=")
		switch key {
		case "numchan":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("hackrf: bad numchan %q", value)
			}
			dev.numChan = n
		case "hackrf":
			dev.serial = value
		default:
			log.Debug("hackrf: ignoring device arg %q", field)
		}
	}
	if dev.numChan != 1 {
		return nil, fmt.Errorf("hackrf: exactly one channel supported, got %d", dev.numChan)
	}
	return dev, nil
}

type hackrfDevice struct {
	sync.Mutex
	binary  string
	numChan int
	serial  string

	sampleRate float64
	centerFreq float64
	freqCorr   float64
	rfGain     float64
	ifGain     float64
	bbGain     float64
	antenna    string
	bandwidth  float64

	proc *toolProcess
}

func (h *hackrfDevice) set(channel int, apply func()) error {
	h.Lock()
	defer h.Unlock()
	if h.proc != nil {
		return ErrStreaming
	}
	if channel < 0 || channel >= h.numChan {
		return fmt.Errorf("hackrf: channel %d not configured", channel)
	}
	apply()
	return nil
}

func (h *hackrfDevice) SetSampleRate(rate float64) error {
	return h.set(0, func() { h.sampleRate = rate })
}

func (h *hackrfDevice) SetCenterFreq(freq float64, channel int) error {
	return h.set(channel, func() { h.centerFreq = freq })
}

func (h *hackrfDevice) SetFreqCorr(ppm float64, channel int) error {
	return h.set(channel, func() { h.freqCorr = ppm })
}

func (h *hackrfDevice) SetGain(gain float64, channel int) error {
	return h.set(channel, func() { h.rfGain = gain })
}

func (h *hackrfDevice) SetIFGain(gain float64, channel int) error {
	return h.set(channel, func() { h.ifGain = gain })
}

// SetBBGain is recorded only. The HackRF TX path has no baseband gain stage.
func (h *hackrfDevice) SetBBGain(gain float64, channel int) error {
	return h.set(channel, func() { h.bbGain = gain })
}

// SetAntenna is recorded only. HackRF has a single TX port.
func (h *hackrfDevice) SetAntenna(name string, channel int) error {
	return h.set(channel, func() { h.antenna = name })
}

func (h *hackrfDevice) SetBandwidth(bandwidth float64, channel int) error {
	return h.set(channel, func() { h.bandwidth = bandwidth })
}

// Args returns the hackrf_transfer command line for the current settings.
// Any RF gain enables the 14 dB amplifier; the IF gain drives the TX VGA.
// A zero bandwidth leaves filter selection to the tool.
func (h *hackrfDevice) Args() []string {
	amp := "0"
	if h.rfGain > 0 {
		amp = "1"
	}
	args := []string{
		"-t", "-",
		"-f", formatHz(h.centerFreq),
		"-s", formatHz(h.sampleRate),
		"-x", formatFloat(h.ifGain),
		"-a", amp,
	}
	if h.freqCorr != 0 {
		args = append(args, "-C", formatFloat(h.freqCorr))
	}
	if h.bandwidth != 0 {
		args = append(args, "-b", formatHz(h.bandwidth))
	}
	if h.serial != "" {
		args = append(args, "-d", h.serial)
	}
	return args
}

func (h *hackrfDevice) Start() error {
	h.Lock()
	defer h.Unlock()
	if h.proc != nil {
		return ErrStreaming
	}
	proc, err := startToolProcess(h.binary, h.Args(), "HACKRF")
	if err != nil {
		return err
	}
	h.proc = proc
	return nil
}

func (h *hackrfDevice) Write(ctx context.Context, samples []complex64) error {
	h.Lock()
	proc := h.proc
	h.Unlock()
	if proc == nil {
		return ErrNotStarted
	}
	return proc.write(ctx, complexToInt8(samples))
}

func (h *hackrfDevice) Close() error {
	h.Lock()
	defer h.Unlock()
	if h.proc == nil {
		return nil
	}
	err := h.proc.close()
	h.proc = nil
	return err
}
