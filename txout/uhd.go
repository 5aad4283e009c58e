package txout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

var (
	// ErrStreaming is returned when a device setting changes after streaming started.
	ErrStreaming = errors.New("device already streaming")
	// ErrNotStarted is returned when samples are written before Start.
	ErrNotStarted = errors.New("device not started")
)

// UHDDriver drives USRP radios through UHD's tx_samples_from_file tool.
type UHDDriver struct {
	Binary string
}

func (d UHDDriver) Open(deviceAddr string, args StreamArgs) (USRPDevice, error) {
	format, err := uhdSampleType(args.CPUFormat)
	if err != nil {
		return nil, err
	}
	if len(args.Channels) != 1 {
		return nil, fmt.Errorf("uhd: exactly one channel supported, got %v", args.Channels)
	}
	return &uhdDevice{
		binary:     d.Binary,
		deviceAddr: deviceAddr,
		sampleType: format,
		channel:    args.Channels[0],
	}, nil
}

func uhdSampleType(cpuFormat string) (string, error) {
	switch cpuFormat {
	case "fc32", "":
		return "float", nil
	default:
		return "", fmt.Errorf("uhd: unsupported cpu format %q", cpuFormat)
	}
}

type uhdDevice struct {
	sync.Mutex
	binary     string
	deviceAddr string
	sampleType string
	channel    int

	sampleRate float64
	centerFreq float64
	gain       float64
	antenna    string

	proc *toolProcess
}

func (u *uhdDevice) set(channel int, apply func()) error {
	u.Lock()
	defer u.Unlock()
	if u.proc != nil {
		return ErrStreaming
	}
	if channel != u.channel {
		return fmt.Errorf("uhd: channel %d not configured", channel)
	}
	apply()
	return nil
}

func (u *uhdDevice) SetSampleRate(rate float64) error {
	return u.set(u.channel, func() { u.sampleRate = rate })
}

func (u *uhdDevice) SetCenterFreq(freq float64, channel int) error {
	return u.set(channel, func() { u.centerFreq = freq })
}

func (u *uhdDevice) SetGain(gain float64, channel int) error {
	return u.set(channel, func() { u.gain = gain })
}

func (u *uhdDevice) SetAntenna(name string, channel int) error {
	return u.set(channel, func() { u.antenna = name })
}

// Args returns the tx_samples_from_file command line for the current settings.
func (u *uhdDevice) Args() []string {
	args := []string{
		"--args", u.deviceAddr,
		"--file", "/dev/stdin",
		"--type", u.sampleType,
		"--rate", formatHz(u.sampleRate),
		"--freq", formatHz(u.centerFreq),
		"--gain", formatFloat(u.gain),
		"--channel", strconv.Itoa(u.channel),
	}
	if u.antenna != "" {
		args = append(args, "--ant", u.antenna)
	}
	return args
}

func (u *uhdDevice) Start() error {
	u.Lock()
	defer u.Unlock()
	if u.proc != nil {
		return ErrStreaming
	}
	proc, err := startToolProcess(u.binary, u.Args(), "UHD")
	if err != nil {
		return err
	}
	u.proc = proc
	return nil
}

func (u *uhdDevice) Write(ctx context.Context, samples []complex64) error {
	u.Lock()
	proc := u.proc
	u.Unlock()
	if proc == nil {
		return ErrNotStarted
	}
	return proc.write(ctx, complexToFloat32LE(samples))
}

func (u *uhdDevice) Close() error {
	u.Lock()
	defer u.Unlock()
	if u.proc == nil {
		return nil
	}
	err := u.proc.close()
	u.proc = nil
	return err
}
