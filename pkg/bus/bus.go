// Package bus provides the broadcast channel loaded applications use to talk
// to each other. Delivery is synchronous on the broadcaster's goroutine.
package bus

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"k8s.io/utils/clock"

	glinterrors "github.com/odvcencio/glint/pkg/errors"
	"github.com/odvcencio/glint/pkg/logging"
	"github.com/odvcencio/glint/pkg/telemetry"
)

var (
	// ErrClosed is returned when using a closed bus.
	ErrClosed = errors.New("bus closed")
)

// Message is a single broadcast.
type Message struct {
	ID     string
	Sender string
	Topic  string
	Args   []any
	Time   time.Time
}

// Handler receives broadcasts addressed to a client.
type Handler func(msg Message)

type client struct {
	name    string
	handler Handler
	topics  []string
}

func (c *client) wants(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if matchSubject(pattern, topic) {
			return true
		}
	}
	return false
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for contained client faults.
func WithLogger(l *logging.Logger) Option {
	return func(b *Bus) { b.log = logging.OrDiscard(l).WithCategory(logging.CategoryBus) }
}

// WithMetrics records deliveries and faults.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithClock sets the clock used to stamp messages.
func WithClock(c clock.PassiveClock) Option {
	return func(b *Bus) { b.clock = c }
}

// Bus fans broadcasts out to registered clients.
type Bus struct {
	mu      sync.RWMutex
	clients []*client
	mirror  func(Message)
	closed  bool

	log     *logging.Logger
	metrics *telemetry.Metrics
	clock   clock.PassiveClock
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		log:   logging.Discard(),
		clock: clock.RealClock{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds a client under name. With topics, only broadcasts whose
// topic matches one of the patterns are delivered; "*" matches one token
// and ">" the rest. The returned func unregisters this client.
func (b *Bus) Register(name string, h Handler, topics ...string) (func(), error) {
	if strings.TrimSpace(name) == "" {
		return nil, glinterrors.New(glinterrors.ErrCodeInvalidInput, "client name is required")
	}
	if h == nil {
		return nil, glinterrors.Newf(glinterrors.ErrCodeInvalidInput, "client %q has no handler", name)
	}

	c := &client{name: name, handler: h, topics: append([]string(nil), topics...)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	for _, existing := range b.clients {
		if existing.name == name {
			return nil, glinterrors.Newf(glinterrors.ErrCodeInvalidInput, "client %q already registered", name)
		}
	}
	b.clients = append(b.clients, c)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(c) })
	}, nil
}

// Unregister removes the client registered under name.
func (b *Bus) Unregister(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.clients {
		if c.name == name {
			b.clients = append(b.clients[:i], b.clients[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Bus) remove(target *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.clients {
		if c == target {
			b.clients = append(b.clients[:i], b.clients[i+1:]...)
			return
		}
	}
}

// Clients lists registered client names in registration order.
func (b *Bus) Clients() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, len(b.clients))
	for i, c := range b.clients {
		names[i] = c.name
	}
	return names
}

// Broadcast delivers topic and args to every client except sender. A client
// that panics is logged and skipped; the others still receive the message.
// It returns the number of clients that handled the message.
func (b *Bus) Broadcast(sender, topic string, args ...any) (int, error) {
	b.mu.RLock()
	closed := b.closed
	mirror := b.mirror
	b.mu.RUnlock()
	if closed {
		return 0, ErrClosed
	}

	msg := Message{
		ID:     ulid.Make().String(),
		Sender: sender,
		Topic:  topic,
		Args:   args,
		Time:   b.clock.Now(),
	}
	n := b.deliver(msg)
	if mirror != nil {
		mirror(msg)
	}
	return n, nil
}

func (b *Bus) deliver(msg Message) int {
	b.mu.RLock()
	targets := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		if c.name != msg.Sender && c.wants(msg.Topic) {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if b.call(c, msg) {
			delivered++
		}
	}
	return delivered
}

func (b *Bus) call(c *client, msg Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err := glinterrors.FromPanic(r, "bus."+c.name)
			b.log.Fault("bus", err, "client", c.name, "topic", msg.Topic, "sender", msg.Sender)
			b.metrics.BusFault()
			ok = false
		}
	}()
	c.handler(msg)
	b.metrics.BusDelivered()
	return true
}

// attach installs fn to see every local broadcast. Only one mirror is kept.
func (b *Bus) attach(fn func(Message)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.mirror != nil {
		return nil, glinterrors.New(glinterrors.ErrCodeInvalidInput, "bus already has a bridge")
	}
	b.mirror = fn
	return func() {
		b.mu.Lock()
		b.mirror = nil
		b.mu.Unlock()
	}, nil
}

// Close drops every client. Later calls return ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.clients = nil
	b.mirror = nil
}

// matchSubject checks if a subject matches a pattern with wildcards.
func matchSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	subjectParts := strings.Split(subject, ".")

	pi, si := 0, 0
	for pi < len(patternParts) && si < len(subjectParts) {
		switch patternParts[pi] {
		case "*":
			pi++
			si++
		case ">":
			return true
		default:
			if patternParts[pi] != subjectParts[si] {
				return false
			}
			pi++
			si++
		}
	}

	return pi == len(patternParts) && si == len(subjectParts)
}
