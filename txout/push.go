package txout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/racerxdl/qo100-dedrift/metrics"
)

// DefaultHighWaterMark is the number of messages a push sink keeps in flight.
const DefaultHighWaterMark = 100

// pushFlushTimeout bounds how long Close waits for queued messages.
var pushFlushTimeout = 2 * time.Second

// pushRetryBackOff paces resends of a message after a send error.
var pushRetryBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// PushSink ships every Work buffer as one message of little-endian complex64
// items. At most hwm messages are outstanding; Work blocks once that many
// are waiting for the socket. A message that fails to send is kept and
// resent until it goes through or the sink is closed.
type PushSink struct {
	address string
	socket  PushSocket
	queue   chan []byte
	stop    chan struct{}
	kill    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewPushSink binds a push socket at address through opener.
func NewPushSink(opener PushOpener, address string, hwm int) (*PushSink, error) {
	if hwm < 1 {
		hwm = 1
	}
	socket, err := opener.OpenPush(address)
	if err != nil {
		return nil, err
	}
	p := &PushSink{
		address: address,
		socket:  socket,
		queue:   make(chan []byte, hwm),
		stop:    make(chan struct{}),
		kill:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.sendLoop()
	return p, nil
}

// Address returns the bound transport address.
func (p *PushSink) Address() string {
	return p.address
}

// HighWaterMark returns the outstanding message bound.
func (p *PushSink) HighWaterMark() int {
	return cap(p.queue)
}

func (p *PushSink) Work(ctx context.Context, samples []complex64) error {
	if len(samples) == 0 {
		return nil
	}
	select {
	case <-p.stop:
		return p.closedErr()
	default:
	}

	payload := complexToFloat32LE(samples)
	select {
	case p.queue <- payload:
		return nil
	case <-p.stop:
		return p.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PushSink) closedErr() error {
	return fmt.Errorf("push sink %s closed", p.address)
}

// Close flushes queued messages and closes the socket. Messages still
// queued after pushFlushTimeout are dropped.
func (p *PushSink) Close() error {
	p.closeOnce.Do(func() {
		close(p.stop)
		select {
		case <-p.done:
		case <-time.After(pushFlushTimeout):
			log.Warn("Dropping %d queued messages for %s", len(p.queue), p.address)
		}
		close(p.kill)
		p.closeErr = p.socket.Close()
		<-p.done
	})
	return p.closeErr
}

// send delivers payload, retrying with backoff. It only gives up when the
// sink is killed.
func (p *PushSink) send(payload []byte) bool {
	var b backoff.BackOff
	for {
		err := p.socket.Send(payload)
		if err == nil {
			if b != nil {
				log.Info("Sending to %s resumed", p.address)
			}
			metrics.BytesOut.Add(float64(len(payload)))
			return true
		}
		select {
		case <-p.kill:
			return false
		default:
		}
		if b == nil {
			log.Warn("Error sending to %s, retrying: %s", p.address, err)
			b = pushRetryBackOff()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			b.Reset()
			wait = b.NextBackOff()
		}
		select {
		case <-time.After(wait):
		case <-p.kill:
			return false
		}
	}
}

func (p *PushSink) sendLoop() {
	defer close(p.done)
	for {
		select {
		case payload := <-p.queue:
			if !p.send(payload) {
				return
			}
		case <-p.stop:
			for {
				select {
				case payload := <-p.queue:
					if !p.send(payload) {
						return
					}
				default:
					return
				}
			}
		}
	}
}
