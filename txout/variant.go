package txout

import (
	"context"
	"fmt"

	"github.com/racerxdl/tx_out/rfmgt"
)

// Sink consumes a complex sample stream and emits nothing.
type Sink interface {
	Work(ctx context.Context, samples []complex64) error
	Close() error
}

// Configurer is the RF configuration every output variant accepts.
type Configurer interface {
	SetSampleRate(rate float64) error
	SetCenterFreq(freq float64) error
	SetGain(gain float64) error
}

// Variant is one of the three output paths. The set is closed:
// TestSink, USRPSink and HackRFSink are the only implementations.
type Variant interface {
	Sink
	Configurer
	Hardware() rfmgt.Hardware
	variant()
}

// TestSink paces samples to real time and pushes them to a test transport.
type TestSink struct {
	Throttle *Throttle
	Push     *PushSink
}

func newTestSink(opener PushOpener, address string, sampleRate float64) (*TestSink, error) {
	push, err := NewPushSink(opener, address, DefaultHighWaterMark)
	if err != nil {
		return nil, err
	}
	return &TestSink{
		Throttle: NewThrottle(sampleRate),
		Push:     push,
	}, nil
}

func (*TestSink) variant()                    {}
func (*TestSink) Hardware() rfmgt.Hardware    { return rfmgt.HwTest }
func (*TestSink) SetCenterFreq(float64) error { return nil }
func (*TestSink) SetGain(float64) error       { return nil }

func (s *TestSink) SetSampleRate(rate float64) error {
	s.Throttle.SetRate(rate)
	return nil
}

func (s *TestSink) Work(ctx context.Context, samples []complex64) error {
	if err := s.Throttle.Wait(ctx, len(samples)); err != nil {
		return err
	}
	return s.Push.Work(ctx, samples)
}

func (s *TestSink) Close() error {
	return s.Push.Close()
}

// USRPAntenna is the TX port used on USRP radios.
const USRPAntenna = "TX/RX"

// USRPStreamArgs is the stream format handed to the USRP driver.
var USRPStreamArgs = StreamArgs{CPUFormat: "fc32", Channels: []int{0}}

// USRPSink transmits through a USRP-class device on channel 0.
type USRPSink struct {
	Device USRPDevice
}

func newUSRPSink(driver USRPDriver, params rfmgt.RFParams) (*USRPSink, error) {
	dev, err := driver.Open("", USRPStreamArgs)
	if err != nil {
		return nil, fmt.Errorf("open usrp: %w", err)
	}
	s := &USRPSink{Device: dev}
	err = applyAll(
		func() error { return s.SetSampleRate(params.SampleRate) },
		func() error { return s.SetCenterFreq(params.CenterFreq) },
		func() error { return s.SetGain(params.TxGain) },
		func() error { return dev.SetAntenna(USRPAntenna, 0) },
	)
	if err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("configure usrp: %w", err)
	}
	if err := dev.Start(); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("start usrp: %w", err)
	}
	return s, nil
}

func (*USRPSink) variant()                 {}
func (*USRPSink) Hardware() rfmgt.Hardware { return rfmgt.HwUHD }

func (s *USRPSink) SetSampleRate(rate float64) error { return s.Device.SetSampleRate(rate) }
func (s *USRPSink) SetCenterFreq(freq float64) error { return s.Device.SetCenterFreq(freq, 0) }
func (s *USRPSink) SetGain(gain float64) error       { return s.Device.SetGain(gain, 0) }

func (s *USRPSink) Work(ctx context.Context, samples []complex64) error {
	return s.Device.Write(ctx, samples)
}

func (s *USRPSink) Close() error {
	return s.Device.Close()
}

// HackRFSink transmits through a HackRF-class device. The single logical
// gain is split over the device stages with HackRFGainStages.
type HackRFSink struct {
	Device HackRFDevice
	Stages GainStages
}

func newHackRFSink(driver HackRFOpener, params rfmgt.RFParams) (*HackRFSink, error) {
	dev, err := driver.Open(HackRFDeviceArgs(1, ""))
	if err != nil {
		return nil, fmt.Errorf("open hackrf: %w", err)
	}
	s := &HackRFSink{Device: dev}
	err = applyAll(
		func() error { return s.SetSampleRate(params.SampleRate) },
		func() error { return s.SetCenterFreq(params.CenterFreq) },
		func() error { return dev.SetFreqCorr(0, 0) },
		func() error { return s.SetGain(params.TxGain) },
		func() error { return dev.SetAntenna("", 0) },
		func() error { return dev.SetBandwidth(0, 0) },
	)
	if err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("configure hackrf: %w", err)
	}
	if err := dev.Start(); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("start hackrf: %w", err)
	}
	return s, nil
}

func (*HackRFSink) variant()                 {}
func (*HackRFSink) Hardware() rfmgt.Hardware { return rfmgt.HwHackRF }

func (s *HackRFSink) SetSampleRate(rate float64) error { return s.Device.SetSampleRate(rate) }
func (s *HackRFSink) SetCenterFreq(freq float64) error { return s.Device.SetCenterFreq(freq, 0) }

func (s *HackRFSink) SetGain(gain float64) error {
	stages, matched := HackRFGainStages(gain)
	if !matched {
		log.Warn("TX gain %v not in HackRF table, using RF=%v IF=%v BB=%v", gain, stages.RF, stages.IF, stages.BB)
	}
	err := applyAll(
		func() error { return s.Device.SetGain(stages.RF, 0) },
		func() error { return s.Device.SetIFGain(stages.IF, 0) },
		func() error { return s.Device.SetBBGain(stages.BB, 0) },
	)
	if err != nil {
		return err
	}
	s.Stages = stages
	return nil
}

func (s *HackRFSink) Work(ctx context.Context, samples []complex64) error {
	return s.Device.Write(ctx, samples)
}

func (s *HackRFSink) Close() error {
	return s.Device.Close()
}

func applyAll(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
