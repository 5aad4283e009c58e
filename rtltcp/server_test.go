package rtltcp

import (
	"math"
	"testing"
	"time"
)

func startMirror(t *testing.T) *Server {
	t.Helper()
	server := MakeMirrorServer("127.0.0.1:0")
	server.SetDongleInfo(DongleInfo{TunerType: RtlsdrTunerR820t, TunerGainCount: 29})
	return server
}

func TestMirrorHandshakeAndSamples(t *testing.T) {
	server := startMirror(t)
	connected := make(chan string, 1)
	server.SetOnConnect(func(sessionId string, address string) {
		connected <- sessionId
	})
	if err := server.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer server.Stop()

	client := MakeClient()
	client.SetBufferSize(256)
	got := make(chan []complex64, 4)
	client.SetOnSamples(func(iq []complex64) {
		got <- iq
	})
	if err := client.Connect(server.Addr()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Stop()

	info := client.GetDongleInfo()
	if !info.Valid() || info.TunerType != RtlsdrTunerR820t || info.TunerGainCount != 29 {
		t.Fatalf("unexpected dongle info %+v", info)
	}

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never saw the connection")
	}

	samples := make([]complex64, 128)
	for i := range samples {
		samples[i] = complex(0.5, -0.5)
	}
	server.Broadcast(samples)

	select {
	case iq := <-got:
		if len(iq) != 128 {
			t.Fatalf("got %d samples, want 128", len(iq))
		}
		for _, v := range iq {
			if math.Abs(float64(real(v))-0.5) > 0.01 || math.Abs(float64(imag(v))+0.5) > 0.01 {
				t.Fatalf("unexpected sample %v", v)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no samples received")
	}
}

func TestMirrorForwardsCommands(t *testing.T) {
	server := startMirror(t)
	commands := make(chan Command, 1)
	server.SetOnCommand(func(sessionId string, cmd Command) bool {
		commands <- cmd
		return true
	})
	if err := server.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer server.Stop()

	client := MakeClient()
	if err := client.Connect(server.Addr()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Stop()

	if err := client.SetCenterFrequency(100000000); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case cmd := <-commands:
		if cmd.Type != SetFrequency || cmd.Value() != 100000000 {
			t.Fatalf("unexpected command %s %d", cmd.Type, cmd.Value())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("command not received")
	}
}

func TestMirrorStartTwice(t *testing.T) {
	server := startMirror(t)
	if err := server.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer server.Stop()
	if err := server.Start(); err == nil {
		t.Fatalf("expected already running error")
	}
}

func TestBroadcastWithoutClientsIsNoop(t *testing.T) {
	server := startMirror(t)
	server.Broadcast([]complex64{1, 2, 3})
	if server.bufferFifo.Len() != 0 {
		t.Fatalf("samples queued without clients")
	}
}

func TestCommandRoundTrip(t *testing.T) {
	cmd := NewCommand(SetSampleRate, 2048000)
	parsed := parseCommand(cmd.Bytes())
	if parsed != cmd || parsed.Value() != 2048000 {
		t.Fatalf("round trip mismatch %+v", parsed)
	}
	if CommandType(0x42).String() != "Invalid" {
		t.Fatalf("unexpected name for unknown command")
	}
}

func TestComplexToU8Clips(t *testing.T) {
	out := complexToU8([]complex64{complex(0, 0), complex(2, -2)})
	want := []uint8{128, 128, 255, 0}
	for i, w := range want {
		if out[i] != w {
			t.Fatalf("byte %d: got %d want %d", i, out[i], w)
		}
	}
}
