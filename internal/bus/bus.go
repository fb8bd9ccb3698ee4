// Package bus publishes record change events to NATS JetStream.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Stream is the JetStream stream holding krafti events.
const Stream = "KRAFTI"

// SubjectPrefix prefixes every event subject.
const SubjectPrefix = "krafti."

// Event describes one committed admin mutation.
type Event struct {
	Entity  string    `json:"entity"`
	Op      string    `json:"op"`
	ID      uint      `json:"id,omitempty"`
	ActorID uint      `json:"actor_id"`
	At      time.Time `json:"at"`
}

// Subject returns the subject the event is published on, for example
// krafti.admin.orders.create.
func (e Event) Subject(scope string) string {
	return SubjectPrefix + scope + "." + e.Entity + "." + e.Op
}

// Publisher is implemented by Bus and accepted by components that emit events.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// Bus wraps a NATS JetStream connection for publishing and consuming events.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New connects to url and makes sure the krafti stream exists.
func New(url string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("bus: connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: jetstream: %w", err)
	}

	b := &Bus{conn: nc, js: js}
	if err := b.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bus) ensureStream() error {
	_, err := b.js.AddStream(&nats.StreamConfig{
		Name:     Stream,
		Subjects: []string{SubjectPrefix + ">"},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("bus: add stream: %w", err)
	}
	return nil
}

// Close drains and shuts down the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish encodes v as JSON and publishes it to subj.
func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if !strings.HasPrefix(subj, SubjectPrefix) {
		return fmt.Errorf("bus: subject %q outside %s>", subj, SubjectPrefix)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = b.js.Publish(subj, data, nats.Context(ctx))
	return err
}

type subscription struct {
	sub    *nats.Subscription
	mu     sync.Mutex
	closed bool
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sub.Drain()
}

// Subscribe creates a consumer on subj, durable when durable is set, and
// invokes fn for each message. A message is acked when fn succeeds and redelivered otherwise.
func (b *Bus) Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error) {
	if b == nil {
		return nil, errors.New("nil bus")
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	handler := func(msg *nats.Msg) {
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		if err := fn(handlerCtx, msg.Data); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}

	opts := []nats.SubOpt{nats.ManualAck(), nats.AckExplicit()}
	if durable != "" {
		opts = append(opts, nats.Durable(durable))
	}
	sub, err := b.js.Subscribe(subj, handler, opts...)
	if err != nil {
		return nil, err
	}

	s := &subscription{sub: sub}

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	return s, nil
}
