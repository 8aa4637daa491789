package delivery

import (
	"sync"

	"github.com/cuemby/ward/pkg/metrics"
)

// memorySession is the Session handed to an in-process handler; there is no
// underlying connection to release, so Close is a no-op that only records
// that the handler is done with the body.
type memorySession struct {
	body   []byte
	mu     sync.Mutex
	closed bool
}

func (s *memorySession) Body() []byte { return s.body }

func (s *memorySession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type message struct {
	kind string
	body []byte
}

// Broker is an in-process Node: tests and single-process demos submit
// messages directly, without a network hop. A single worker goroutine
// drains the message channel, so messages are dispatched in submission
// order regardless of how many goroutines call Submit concurrently.
type Broker struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	msgCh    chan message
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewBroker creates a Broker with a buffered message channel. Call Start to
// begin dispatching and Stop to shut the worker goroutine down.
func NewBroker() *Broker {
	return &Broker{
		handlers: make(map[string]HandlerFunc),
		msgCh:    make(chan message, 100),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the broker's dispatch loop in its own goroutine and
// registers the "delivery" component as healthy.
func (b *Broker) Start() {
	metrics.RegisterComponent("delivery", true, "")
	go b.run()
}

// Stop halts the dispatch loop. Safe to call more than once.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Register implements Node.
func (b *Broker) Register(kind string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = handler
}

// Submit enqueues a message of the given kind for dispatch. Submit blocks
// only if the channel buffer is full; it never blocks past Stop.
func (b *Broker) Submit(kind string, body []byte) {
	select {
	case b.msgCh <- message{kind: kind, body: body}:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case msg := <-b.msgCh:
			b.dispatch(msg)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) dispatch(msg message) {
	b.mu.RLock()
	handler, ok := b.handlers[msg.kind]
	b.mu.RUnlock()

	if !ok {
		return
	}
	handler(&memorySession{body: msg.body})
}
