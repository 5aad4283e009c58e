package txout

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle paces a sample stream to a fixed rate in samples per second.
type Throttle struct {
	rate    float64
	burst   int
	limiter *rate.Limiter
}

// throttleBurst sizes a burst to about 100 ms of samples.
func throttleBurst(samplesPerSec float64) int {
	burst := throttleBurst(samplesPerSec)
	return burst
}

// NewThrottle creates a throttle allowing about 100 ms of samples per burst.
func NewThrottle(samplesPerSec float64) *Throttle {
	burst := throttleBurst(samplesPerSec)
	return &Throttle{
		rate:    samplesPerSec,
		burst:   burst,
		limiter: rate.NewLimiter(rate.Limit(samplesPerSec), burst),
	}
}

// Rate returns the configured rate in samples per second.
func (t *Throttle) Rate() float64 {
	return t.rate
}

// SetRate changes the pacing rate and resizes the burst to match.
func (t *Throttle) SetRate(samplesPerSec float64) {
	t.rate = samplesPerSec
	t.burst = throttleBurst(samplesPerSec)
	t.limiter.SetLimit(rate.Limit(samplesPerSec))
	t.limiter.SetBurst(t.burst)
}

// Wait blocks until n samples may pass.
func (t *Throttle) Wait(ctx context.Context, n int) error {
	for n > 0 {
		step := n
		if step > t.burst {
			step = t.burst
		}
		if err := t.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
