package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/glint/pkg/config"
	"github.com/odvcencio/glint/pkg/logging"
)

// Conn is the part of *nats.Conn the bridge uses.
type Conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Dial connects to the NATS server named in cfg.
func Dial(cfg config.BusConfig, name string) (*nats.Conn, error) {
	url := cfg.NATSURL
	if url == "" {
		url = nats.DefaultURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(timeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// envelope is the wire form of a bridged Message. Args cross the wire as
// JSON, so receivers see decoded JSON values (float64, string, map, slice).
type envelope struct {
	ID     string    `json:"id"`
	Origin string    `json:"origin"`
	Sender string    `json:"sender"`
	Topic  string    `json:"topic"`
	Args   []any     `json:"args,omitempty"`
	Time   time.Time `json:"time"`
}

// NATSBridge mirrors local broadcasts onto NATS and replays broadcasts
// published by other processes on the local bus.
type NATSBridge struct {
	bus     *Bus
	conn    Conn
	subject string
	origin  string
	sub     *nats.Subscription
	detach  func()
	log     *logging.Logger
}

// NewNATSBridge attaches a bridge to b. Topics are published under
// subject + "." + topic.
func NewNATSBridge(b *Bus, conn Conn, subject string, log *logging.Logger) (*NATSBridge, error) {
	if subject == "" {
		subject = config.DefaultNATSSubject
	}
	br := &NATSBridge{
		bus:     b,
		conn:    conn,
		subject: subject,
		origin:  ulid.Make().String(),
		log:     logging.OrDiscard(log).WithCategory(logging.CategoryBus),
	}

	detach, err := b.attach(br.publish)
	if err != nil {
		return nil, err
	}
	br.detach = detach

	sub, err := conn.Subscribe(subject+".>", func(m *nats.Msg) { br.receive(m.Data) })
	if err != nil {
		detach()
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	br.sub = sub
	return br, nil
}

// Origin identifies this bridge on the wire.
func (br *NATSBridge) Origin() string { return br.origin }

func (br *NATSBridge) publish(msg Message) {
	data, err := json.Marshal(envelope{
		ID:     msg.ID,
		Origin: br.origin,
		Sender: msg.Sender,
		Topic:  msg.Topic,
		Args:   msg.Args,
		Time:   msg.Time,
	})
	if err != nil {
		br.log.Warn("bridge encode failed", "topic", msg.Topic, "error", err)
		return
	}
	if err := br.conn.Publish(br.subject+"."+msg.Topic, data); err != nil {
		br.log.Warn("bridge publish failed", "topic", msg.Topic, "error", err)
	}
}

func (br *NATSBridge) receive(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		br.log.Warn("bridge decode failed", "error", err)
		return
	}
	if env.Origin == br.origin {
		return
	}
	br.bus.deliver(Message{
		ID:     env.ID,
		Sender: env.Sender,
		Topic:  env.Topic,
		Args:   env.Args,
		Time:   env.Time,
	})
}

// Close detaches from the bus and drops the subscription. The connection
// stays open; it belongs to the caller.
func (br *NATSBridge) Close() error {
	if br.detach != nil {
		br.detach()
	}
	if br.sub != nil {
		return br.sub.Unsubscribe()
	}
	return nil
}
