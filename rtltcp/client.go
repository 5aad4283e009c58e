package rtltcp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/quan-to/slog"
	"github.com/racerxdl/qo100-dedrift/metrics"
)

const readTimeout = time.Second * 2
const defaultClientBuffer = 16384

var clog = slog.Scope("RTLTCP Client")

type OnSamples func([]complex64)

// Client connects to an rtl_tcp server, such as the TX mirror, and decodes
// its unsigned 8 bit IQ stream.
type Client struct {
	conn       net.Conn
	dongleInfo DongleInfo
	cb         OnSamples
	bufferSize int

	stopOnce sync.Once
	done     chan struct{}
}

func MakeClient() *Client {
	return &Client{
		bufferSize: defaultClientBuffer,
		dongleInfo: DongleInfo{TunerType: RtlsdrTunerUnknown},
	}
}

// SetBufferSize sets how many bytes are collected before OnSamples fires.
// Must be called before Connect.
func (client *Client) SetBufferSize(n int) {
	if n%2 != 0 {
		n++
	}
	client.bufferSize = n
}

func (client *Client) GetDongleInfo() DongleInfo {
	return client.dongleInfo
}

func (client *Client) SetOnSamples(cb OnSamples) {
	client.cb = cb
}

func (client *Client) SetGain(gain uint32) error {
	return client.SendCommand(NewCommand(SetGain, gain))
}

func (client *Client) SetSampleRate(sampleRate uint32) error {
	return client.SendCommand(NewCommand(SetSampleRate, sampleRate))
}

func (client *Client) SetCenterFrequency(centerFrequency uint32) error {
	return client.SendCommand(NewCommand(SetFrequency, centerFrequency))
}

func (client *Client) SendCommand(cmd Command) error {
	if client.conn == nil {
		return fmt.Errorf("not connected")
	}
	n, err := client.conn.Write(cmd.Bytes())
	metrics.BytesOut.Add(float64(n))
	return err
}

func (client *Client) Connect(address string) error {
	clog.Debug("Connecting to %s", address)
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return err
	}
	client.conn = conn

	if err := client.handshake(); err != nil {
		_ = conn.Close()
		return err
	}

	clog.Debug("Got handshake. Tuner Type: %s", client.dongleInfo.TunerType)
	client.done = make(chan struct{})
	go client.loop()
	return nil
}

// Done is closed when the receive loop exits.
func (client *Client) Done() <-chan struct{} {
	return client.done
}

func (client *Client) Stop() {
	client.stopOnce.Do(func() {
		if client.conn != nil {
			_ = client.conn.Close()
		}
	})
	if client.done != nil {
		<-client.done
	}
}

func (client *Client) handshake() error {
	buffer := make([]byte, DongleInfoSize)
	if err := client.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return err
	}
	n, err := io.ReadFull(client.conn, buffer)
	metrics.BytesIn.Add(float64(n))
	if err != nil {
		return fmt.Errorf("not received enough bytes for handshake: %w", err)
	}

	info := DongleInfo{}
	copy(info.Magic[:], buffer[:4])
	info.TunerType = TunerType(binary.BigEndian.Uint32(buffer[4:8]))
	info.TunerGainCount = binary.BigEndian.Uint32(buffer[8:12])
	if !info.Valid() {
		return fmt.Errorf("bad handshake magic %q", info.Magic[:])
	}
	client.dongleInfo = info
	return nil
}

func (client *Client) loop() {
	defer close(client.done)
	buffer := make([]byte, client.bufferSize)
	_ = client.conn.SetReadDeadline(time.Time{})

	for {
		n, err := io.ReadFull(client.conn, buffer)
		metrics.BytesIn.Add(float64(n))
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				clog.Error("Error reading data: %s", err)
			}
			break
		}
		client.handleData(buffer)
	}
	_ = client.conn.Close()
}

func (client *Client) handleData(data []byte) {
	if client.cb == nil {
		return
	}
	iq := make([]complex64, len(data)/2)
	for i := range iq {
		rv := (float32(data[i*2]) - 128) / 127
		iv := (float32(data[i*2+1]) - 128) / 127
		iq[i] = complex(rv, iv)
	}
	client.cb(iq)
}
