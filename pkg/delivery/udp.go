package delivery

import (
	"net"
	"sync"

	"github.com/cuemby/ward/pkg/metrics"
	"github.com/rs/zerolog"
)

// udpSession wraps one received datagram. There is no per-message resource
// to release beyond the buffer copy already taken before dispatch.
type udpSession struct {
	body []byte
}

func (s *udpSession) Body() []byte { return s.body }
func (s *udpSession) Close() error { return nil }

// UDPListener is an out-of-process Node: each received UDP datagram is
// treated as one message of a fixed kind, carrying the JSON+base64 envelope
// pkg/wire decodes. It is the out-of-process counterpart to Broker, for
// peers that are not in the same process as the audit coordinator.
type UDPListener struct {
	conn *net.UDPConn
	log  zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewUDPListener binds a UDP socket at addr. Call Start to begin reading.
func NewUDPListener(addr string, log zerolog.Logger) (*UDPListener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	return &UDPListener{
		conn:     conn,
		log:      log,
		handlers: make(map[string]HandlerFunc),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Register implements Node. UDPListener only ever receives messages of a
// single kind ("audit"): every received datagram goes to the handler
// registered under "audit". Handlers registered under any other kind are
// stored but never invoked.
func (l *UDPListener) Register(kind string, handler HandlerFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[kind] = handler
}

// Start begins reading datagrams in its own goroutine and registers the
// "delivery" component as healthy.
func (l *UDPListener) Start() {
	metrics.RegisterComponent("delivery", true, "")
	go l.run()
}

// Close stops the read loop and releases the socket.
func (l *UDPListener) Close() error {
	close(l.stopCh)
	err := l.conn.Close()
	<-l.doneCh
	return err
}

func (l *UDPListener) run() {
	defer close(l.doneCh)

	buf := make([]byte, 64*1024)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.stopCh:
				return
			default:
			}
			l.log.Error().Err(err).Msg("delivery: udp read failed")
			metrics.UpdateComponent("delivery", false, "udp read: "+err.Error())
			continue
		}
		metrics.UpdateComponent("delivery", true, "")

		body := make([]byte, n)
		copy(body, buf[:n])
		l.dispatch(body)
	}
}

func (l *UDPListener) dispatch(body []byte) {
	l.mu.RLock()
	handler, ok := l.handlers["audit"]
	l.mu.RUnlock()

	if !ok {
		return
	}
	handler(&udpSession{body: body})
}
