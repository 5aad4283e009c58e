package txout

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/quan-to/slog"
	"github.com/racerxdl/tx_out/rfmgt"
)

var log = slog.Scope("TXOUT")

var (
	// ErrUnknownHardware is returned for a selector outside the known output paths.
	ErrUnknownHardware = errors.New("unknown hardware selection")
	// ErrDriverUnavailable is returned when the selected output path has no driver installed.
	ErrDriverUnavailable = errors.New("driver not available")
)

// TxOut is the transmit output stage. It has one complex sample input and
// forwards it to exactly one output variant chosen at construction.
type TxOut struct {
	id       string
	params   rfmgt.RFParams
	testAddr string
	hw       rfmgt.Hardware
	sink     Variant
	log      slog.Instance
}

// New builds the output stage for hw. testAddr is only used by the test path.
// The selected device or socket is opened here and held until Close.
func New(params rfmgt.RFParams, testAddr string, hw rfmgt.Hardware, drivers Drivers) (*TxOut, error) {
	if !hw.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHardware, hw)
	}
	if !drivers.Available(hw) {
		return nil, fmt.Errorf("%w: %s", ErrDriverUnavailable, hw)
	}

	uid, _ := uuid.NewRandom()
	t := &TxOut{
		id:       uid.String(),
		params:   params,
		testAddr: testAddr,
		hw:       hw,
		log:      slog.Scope("TXOUT " + uid.String()),
	}

	t.log.Info("Building %s output [%s]: rate %s, center %s, gain %v",
		hw, t.id,
		humanize.SIWithDigits(params.SampleRate, 3, "S/s"),
		humanize.SIWithDigits(params.CenterFreq, 6, "Hz"),
		params.TxGain)

	var err error
	switch hw {
	case rfmgt.HwTest:
		t.log.Debug("Pushing samples to %s", testAddr)
		t.sink, err = newTestSink(drivers.Push, testAddr, params.SampleRate)
	case rfmgt.HwUHD:
		t.sink, err = newUSRPSink(drivers.USRP, params)
	case rfmgt.HwHackRF:
		t.sink, err = newHackRFSink(drivers.HackRF, params)
	}
	if err != nil {
		return nil, err
	}

	return t, nil
}

// ID is a unique identifier for this output stage instance.
func (t *TxOut) ID() string {
	return t.id
}

func (t *TxOut) Hardware() rfmgt.Hardware {
	return t.hw
}

func (t *TxOut) Params() rfmgt.RFParams {
	return t.params
}

// Sink returns the active output variant.
func (t *TxOut) Sink() Variant {
	return t.sink
}

// Work pushes one buffer of samples into the output.
func (t *TxOut) Work(ctx context.Context, samples []complex64) error {
	return t.sink.Work(ctx, samples)
}

// Run consumes in until it is closed or ctx is done.
func (t *TxOut) Run(ctx context.Context, in <-chan []complex64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case samples, ok := <-in:
			if !ok {
				return nil
			}
			if err := t.Work(ctx, samples); err != nil {
				return err
			}
		}
	}
}

// Close releases the device or socket held by the output.
func (t *TxOut) Close() error {
	t.log.Debug("Closing %s output [%s]", t.hw, t.id)
	return t.sink.Close()
}
