package txout

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/go-zeromq/zmq4/security/null"
	"github.com/go-zeromq/zmq4/transport"
	"github.com/google/uuid"
)

// ErrPushClosed is returned by a push endpoint once it has been closed.
var ErrPushClosed = errors.New("push endpoint closed")

const pushHandshakeTimeout = 5 * time.Second

// ZMQPush binds ZeroMQ PUSH endpoints (tcp:// or ipc://).
//
// Every message is delivered to exactly one connected PULL peer, picked
// round robin. Send blocks while no peer is connected and has no deadline.
type ZMQPush struct{}

func (ZMQPush) OpenPush(address string) (PushSocket, error) {
	return listenPush(address)
}

type zmqPushSocket struct {
	endpoint string
	listener net.Listener
	id       zmq4.SocketIdentity

	mu     sync.Mutex
	peers  []*zmq4.Conn
	next   int
	joined chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// splitEndpoint maps a ZeroMQ endpoint onto a net network and address.
func splitEndpoint(address string) (network, addr string, err error) {
	proto, ep, ok := strings.Cut(address, "://")
	if !ok {
		return "", "", fmt.Errorf("invalid zmq endpoint %q", address)
	}
	switch proto {
	case "tcp":
		network = "tcp"
	case "ipc":
		network = "unix"
	default:
		return "", "", fmt.Errorf("unsupported zmq transport %q in %q", proto, address)
	}
	addr, err = transport.New(network).Addr(ep)
	if err != nil {
		return "", "", fmt.Errorf("invalid zmq endpoint %q: %w", address, err)
	}
	return network, addr, nil
}

func listenPush(address string) (*zmqPushSocket, error) {
	network, addr, err := splitEndpoint(address)
	if err != nil {
		return nil, err
	}
	l, err := transport.New(network).Listen(context.Background(), addr)
	if err != nil {
		return nil, fmt.Errorf("zmq listen on %s: %w", address, err)
	}
	p := &zmqPushSocket{
		endpoint: address,
		listener: l,
		id:       zmq4.SocketIdentity(uuid.New().String()),
		joined:   make(chan struct{}),
		closed:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.acceptLoop()
	return p, nil
}

// Addr returns the bound listener address.
func (p *zmqPushSocket) Addr() net.Addr {
	return p.listener.Addr()
}

// Peers returns the number of connected PULL peers.
func (p *zmqPushSocket) Peers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.peers)
}

func (p *zmqPushSocket) acceptLoop() {
	defer p.wg.Done()
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-p.closed:
			default:
				log.Error("Error accepting on %s: %s", p.endpoint, err)
			}
			return
		}
		p.wg.Add(1)
		go p.handshake(conn)
	}
}

func (p *zmqPushSocket) handshake(conn net.Conn) {
	defer p.wg.Done()
	_ = conn.SetDeadline(time.Now().Add(pushHandshakeTimeout))
	zconn, err := zmq4.Open(conn, null.Security(), zmq4.Push, p.id, true, nil)
	if err == nil {
		err = conn.SetDeadline(time.Time{})
	}
	if err != nil {
		log.Warn("Rejecting %s on %s: %s", conn.RemoteAddr(), p.endpoint, err)
		_ = conn.Close()
		return
	}

	p.mu.Lock()
	select {
	case <-p.closed:
		p.mu.Unlock()
		_ = zconn.Close()
		return
	default:
	}
	p.peers = append(p.peers, zconn)
	close(p.joined)
	p.joined = make(chan struct{})
	p.mu.Unlock()
	log.Debug("PULL peer %s connected to %s", conn.RemoteAddr(), p.endpoint)

	// PULL peers never send; a read only returns once the peer is gone.
	for {
		if _, err := zconn.RecvMsg(); err != nil {
			break
		}
	}
	p.drop(zconn)
	log.Debug("PULL peer %s left %s", conn.RemoteAddr(), p.endpoint)
}

func (p *zmqPushSocket) drop(c *zmq4.Conn) {
	p.mu.Lock()
	for i, peer := range p.peers {
		if peer == c {
			p.peers = append(p.peers[:i], p.peers[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	_ = c.Close()
}

// Send delivers payload to one peer. It waits for a peer when none is
// connected; a failed peer is dropped and its error returned.
func (p *zmqPushSocket) Send(payload []byte) error {
	for {
		p.mu.Lock()
		select {
		case <-p.closed:
			p.mu.Unlock()
			return ErrPushClosed
		default:
		}
		if n := len(p.peers); n > 0 {
			peer := p.peers[p.next%n]
			p.next++
			p.mu.Unlock()
			if err := peer.SendMsg(zmq4.NewMsg(payload)); err != nil {
				p.drop(peer)
				return err
			}
			return nil
		}
		joined := p.joined
		p.mu.Unlock()

		select {
		case <-joined:
		case <-p.closed:
			return ErrPushClosed
		}
	}
}

func (p *zmqPushSocket) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		close(p.closed)
		peers := p.peers
		p.peers = nil
		p.mu.Unlock()

		err = p.listener.Close()
		for _, peer := range peers {
			_ = peer.Close()
		}
		p.wg.Wait()
	})
	return err
}
