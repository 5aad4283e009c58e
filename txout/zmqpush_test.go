package txout

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
)

func newLoopbackPush(t *testing.T, address string) (*PushSink, *zmqPushSocket) {
	t.Helper()
	p, err := NewPushSink(ZMQPush{}, address, DefaultHighWaterMark)
	if err != nil {
		t.Fatalf("new push sink on %s: %v", address, err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p, p.socket.(*zmqPushSocket)
}

func tcpEndpoint(s *zmqPushSocket) string {
	return "tcp://" + s.Addr().String()
}

func dialPull(t *testing.T, endpoint string) zmq4.Socket {
	t.Helper()
	pull := zmq4.NewPull(context.Background())
	if err := pull.Dial(endpoint); err != nil {
		t.Fatalf("dial %s: %v", endpoint, err)
	}
	t.Cleanup(func() { _ = pull.Close() })
	return pull
}

func waitPeers(t *testing.T, s *zmqPushSocket, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Peers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("peers = %d, want %d", s.Peers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type received struct {
	msg zmq4.Msg
	err error
}

// recvAll forwards everything pull receives until the test ends.
func recvAll(pull zmq4.Socket) <-chan received {
	out := make(chan received, 64)
	go func() {
		for {
			msg, err := pull.Recv()
			out <- received{msg: msg, err: err}
			if err != nil {
				return
			}
		}
	}()
	return out
}

func expectMessage(t *testing.T, ch <-chan received, want []byte) {
	t.Helper()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("recv: %v", r.err)
		}
		if len(r.msg.Frames) != 1 || !bytes.Equal(r.msg.Frames[0], want) {
			t.Fatalf("got frames %v, want %v", r.msg.Frames, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message received")
	}
}

func TestZMQPushDeliversOverTCP(t *testing.T) {
	p, s := newLoopbackPush(t, "tcp://127.0.0.1:0")
	msgs := recvAll(dialPull(t, tcpEndpoint(s)))

	ctx := context.Background()
	buffers := [][]complex64{
		{complex(1, -1), complex(0.25, 0.5)},
		{complex(-0.75, 0)},
	}
	for _, buf := range buffers {
		if err := p.Work(ctx, buf); err != nil {
			t.Fatalf("work: %v", err)
		}
	}
	for _, buf := range buffers {
		expectMessage(t, msgs, complexToFloat32LE(buf))
	}
}

func TestZMQPushDeliversOverIPC(t *testing.T) {
	endpoint := "ipc://" + filepath.Join(t.TempDir(), "txout.sock")
	p, _ := newLoopbackPush(t, endpoint)
	msgs := recvAll(dialPull(t, endpoint))

	buf := []complex64{complex(0.5, 0.5)}
	if err := p.Work(context.Background(), buf); err != nil {
		t.Fatalf("work: %v", err)
	}
	expectMessage(t, msgs, complexToFloat32LE(buf))
}

func TestZMQPushDeliversEachMessageOnce(t *testing.T) {
	p, s := newLoopbackPush(t, "tcp://127.0.0.1:0")
	first := recvAll(dialPull(t, tcpEndpoint(s)))
	second := recvAll(dialPull(t, tcpEndpoint(s)))
	waitPeers(t, s, 2)

	const total = 6
	ctx := context.Background()
	for i := 0; i < total; i++ {
		if err := p.Work(ctx, []complex64{complex(float32(i), 0)}); err != nil {
			t.Fatalf("work %d: %v", i, err)
		}
	}

	seen := map[string]int{}
	perPeer := [2]int{}
	timeout := time.After(2 * time.Second)
	for n := 0; n < total; n++ {
		var r received
		select {
		case r = <-first:
			perPeer[0]++
		case r = <-second:
			perPeer[1]++
		case <-timeout:
			t.Fatalf("received %d of %d messages", n, total)
		}
		if r.err != nil {
			t.Fatalf("recv: %v", r.err)
		}
		seen[string(r.msg.Frames[0])]++
	}

	select {
	case r := <-first:
		t.Fatalf("extra message on first peer: %v", r)
	case r := <-second:
		t.Fatalf("extra message on second peer: %v", r)
	case <-time.After(100 * time.Millisecond):
	}

	if len(seen) != total {
		t.Fatalf("got %d distinct messages, want %d", len(seen), total)
	}
	if perPeer[0] != total/2 || perPeer[1] != total/2 {
		t.Fatalf("messages per peer = %v, want round robin", perPeer)
	}
}

func TestZMQPushSurvivesPeerRestart(t *testing.T) {
	p, s := newLoopbackPush(t, "tcp://127.0.0.1:0")
	ctx := context.Background()

	pull := zmq4.NewPull(context.Background())
	if err := pull.Dial(tcpEndpoint(s)); err != nil {
		t.Fatalf("dial: %v", err)
	}
	msgs := recvAll(pull)
	buf := []complex64{complex(1, 1)}
	if err := p.Work(ctx, buf); err != nil {
		t.Fatalf("work: %v", err)
	}
	expectMessage(t, msgs, complexToFloat32LE(buf))

	_ = pull.Close()
	waitPeers(t, s, 0)

	var pending [][]byte
	for i := 0; i < 10; i++ {
		buf := []complex64{complex(float32(i), -1)}
		wctx, cancel := context.WithTimeout(ctx, time.Second)
		err := p.Work(wctx, buf)
		cancel()
		if err != nil {
			t.Fatalf("work %d without peer: %v", i, err)
		}
		pending = append(pending, complexToFloat32LE(buf))
	}

	restarted := recvAll(dialPull(t, tcpEndpoint(s)))
	for _, want := range pending {
		expectMessage(t, restarted, want)
	}
}

func TestSplitEndpoint(t *testing.T) {
	cases := []struct {
		in      string
		network string
		addr    string
		fails   bool
	}{
		{in: "tcp://127.0.0.1:49203", network: "tcp", addr: "127.0.0.1:49203"},
		{in: "tcp://*:5555", network: "tcp", addr: "0.0.0.0:5555"},
		{in: "tcp://localhost:*", network: "tcp", addr: "localhost:0"},
		{in: "ipc:///tmp/txout.sock", network: "unix", addr: "/tmp/txout.sock"},
		{in: "inproc://txout", fails: true},
		{in: "127.0.0.1:5555", fails: true},
		{in: "tcp://nohostport", fails: true},
	}
	for _, c := range cases {
		network, addr, err := splitEndpoint(c.in)
		if c.fails {
			if err == nil {
				t.Errorf("%s: expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", c.in, err)
			continue
		}
		if network != c.network || addr != c.addr {
			t.Errorf("%s: got %s %s, want %s %s", c.in, network, addr, c.network, c.addr)
		}
	}
}

func TestZMQPushSendAfterClose(t *testing.T) {
	s, err := listenPush("tcp://127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Send([]byte{1}); err != ErrPushClosed {
		t.Fatalf("send after close = %v, want %v", err, ErrPushClosed)
	}
}
