package rtltcp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quan-to/slog"
	"github.com/racerxdl/go.fifo"
	"github.com/racerxdl/qo100-dedrift/metrics"
)

const defaultReadTimeout = time.Second
const writeTimeout = 2 * time.Second
const chunkLength = 4096
const maxFifoLength = 64

var log = slog.Scope("RTLTCP Mirror")

type OnCommand func(sessionId string, cmd Command) bool
type OnConnect func(sessionId string, address string)

// Server mirrors an IQ stream to rtl_tcp clients. Clients only watch: the
// stream is never retuned by their commands, which are handed to the
// OnCommand callback for logging.
type Server struct {
	address    string
	listener   net.Listener
	dongleInfo DongleInfo

	sessionLock sync.Mutex
	sessions    map[string]*Session

	runLock     sync.Mutex
	running     bool
	stop        chan struct{}
	wg          sync.WaitGroup
	bufferFifo  *fifo.Queue
	fifoSignal  chan struct{}
	onCommandCb OnCommand
	onConnectCb OnConnect
}

func MakeMirrorServer(address string) *Server {
	return &Server{
		address:  address,
		sessions: map[string]*Session{},
		dongleInfo: DongleInfo{
			Magic:     dongleMagic,
			TunerType: RtlsdrTunerUnknown,
		},
		bufferFifo: fifo.NewQueue(),
		fifoSignal: make(chan struct{}, 1),
	}
}

func (server *Server) SetDongleInfo(info DongleInfo) {
	info.Magic = dongleMagic
	server.dongleInfo = info
}

func (server *Server) SetOnConnect(cb OnConnect) {
	server.onConnectCb = cb
}

func (server *Server) SetOnCommand(cb OnCommand) {
	server.onCommandCb = cb
}

// Addr returns the listening address, or the configured one before Start.
func (server *Server) Addr() string {
	server.runLock.Lock()
	defer server.runLock.Unlock()
	if server.listener != nil {
		return server.listener.Addr().String()
	}
	return server.address
}

func (server *Server) Start() error {
	server.runLock.Lock()
	defer server.runLock.Unlock()
	if server.running {
		return fmt.Errorf("already running")
	}

	l, err := net.Listen("tcp", server.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", server.address, err)
	}
	server.listener = l
	server.stop = make(chan struct{})
	server.running = true
	log.Info("Mirroring TX stream on %s", l.Addr())

	server.wg.Add(2)
	go server.acceptLoop()
	go server.txLoop()
	return nil
}

func (server *Server) Stop() {
	server.runLock.Lock()
	if !server.running {
		server.runLock.Unlock()
		return
	}
	server.running = false
	close(server.stop)
	_ = server.listener.Close()
	server.runLock.Unlock()

	server.sessionLock.Lock()
	for _, s := range server.sessions {
		_ = s.conn.Close()
	}
	server.sessionLock.Unlock()

	server.wg.Wait()
	log.Info("Mirror stopped")
}

// Sessions returns the number of connected clients.
func (server *Server) Sessions() int {
	server.sessionLock.Lock()
	defer server.sessionLock.Unlock()
	return len(server.sessions)
}

// Broadcast queues samples for every connected client as unsigned 8 bit IQ.
// When clients fall behind the chunk is dropped so the TX path never waits
// on the mirror.
func (server *Server) Broadcast(data []complex64) {
	if server.Sessions() == 0 {
		return
	}
	if server.bufferFifo.Len() >= maxFifoLength {
		log.Error("Mirror fifo full, dropping %d samples", len(data))
		return
	}

	server.bufferFifo.Add(complexToU8(data))
	select {
	case server.fifoSignal <- struct{}{}:
	default:
	}
}

func complexToU8(data []complex64) []byte {
	iqBytes := make([]byte, len(data)*2)
	for i, v := range data {
		iqBytes[i*2] = toU8(real(v))
		iqBytes[i*2+1] = toU8(imag(v))
	}
	return iqBytes
}

func toU8(v float32) uint8 {
	s := 128 + v*127
	if s < 0 {
		s = 0
	}
	if s > 255 {
		s = 255
	}
	return uint8(s)
}

func (server *Server) txLoop() {
	defer server.wg.Done()
	for {
		select {
		case <-server.stop:
			return
		case <-server.fifoSignal:
			for server.bufferFifo.Len() > 0 {
				server.broadcast(server.bufferFifo.Next().([]byte))
			}
		}
	}
}

func (server *Server) broadcast(data []byte) {
	server.sessionLock.Lock()
	defer server.sessionLock.Unlock()

	for s := 0; s < len(data); s += chunkLength {
		e := s + chunkLength
		if e > len(data) {
			e = len(data)
		}
		for _, session := range server.sessions {
			_ = session.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			n, err := session.conn.Write(data[s:e])
			metrics.BytesOut.Add(float64(n))
			if err != nil {
				session.log.Error("Error sending samples: %s", err)
				_ = session.conn.Close()
			}
		}
	}
}

func (server *Server) acceptLoop() {
	defer server.wg.Done()
	for {
		conn, err := server.listener.Accept()
		if err != nil {
			select {
			case <-server.stop:
			default:
				log.Error("Error accepting: %s", err)
			}
			return
		}
		server.wg.Add(1)
		go server.handleRequest(conn)
	}
}

func (server *Server) handlePacket(session *Session, cmd Command) {
	session.log.Debug("Received %s with arg %d", cmd.Type, cmd.Value())
	if server.onCommandCb != nil && !server.onCommandCb(session.id, cmd) {
		_ = session.conn.Close()
	}
}

func (server *Server) handleRequest(conn net.Conn) {
	defer server.wg.Done()

	uid, _ := uuid.NewRandom()
	session := &Session{
		id:   uid.String(),
		conn: conn,
		log:  slog.Scope(conn.RemoteAddr().String()),
	}
	clog := session.log
	clog.Info("Received connection")

	if err := binary.Write(conn, binary.BigEndian, server.dongleInfo); err != nil {
		clog.Error("Error sending greeting: %s", err)
		_ = conn.Close()
		return
	}

	server.sessionLock.Lock()
	server.sessions[session.id] = session
	server.sessionLock.Unlock()

	metrics.TotalConnections.Inc()
	metrics.Connections.Inc()

	if server.onConnectCb != nil {
		server.onConnectCb(session.id, conn.RemoteAddr().String())
	}

	buffer := make([]byte, CommandSize)
readLoop:
	for {
		_ = conn.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		n, err := io.ReadFull(conn, buffer)
		metrics.BytesIn.Add(float64(n))
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && n == 0 {
				select {
				case <-server.stop:
					break readLoop
				default:
					continue
				}
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				clog.Debug("Error receiving data: %s", err)
			}
			break
		}
		server.handlePacket(session, parseCommand(buffer))
	}

	server.sessionLock.Lock()
	delete(server.sessions, session.id)
	server.sessionLock.Unlock()
	_ = conn.Close()

	metrics.Connections.Dec()
	clog.Info("Connection closed.")
}
