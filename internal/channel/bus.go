package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is one published message.
type Event struct {
	Topic       Topic           `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

// Handler receives events. Handlers run on the publisher's goroutine and must not block.
type Handler func(Event)

// Bus is the publish/subscribe half of the channel.
// Delivery is best-effort and at most once per subscriber.
type Bus interface {
	Publish(ctx context.Context, topic Topic, payload any) error
	Subscribe(topic Topic, h Handler) (unsubscribe func(), err error)
}

// LocalBus is an in-process Bus.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[uint64]Handler
	nextID uint64
	log    zerolog.Logger
}

// NewLocalBus creates a LocalBus. A nil logger discards handler failures.
func NewLocalBus(logger *zerolog.Logger) *LocalBus {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &LocalBus{subs: make(map[Topic]map[uint64]Handler), log: l}
}

// Publish encodes payload and delivers it to every current subscriber of topic.
func (b *LocalBus) Publish(_ context.Context, topic Topic, payload any) error {
	if !topic.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	ev := Event{Topic: topic, Payload: raw, PublishedAt: time.Now().UTC()}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, ev)
	}
	return nil
}

func (b *LocalBus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("topic", string(ev.Topic)).Interface("panic", r).Msg("bus handler panicked")
		}
	}()
	h(ev)
}

// Subscribe registers h for topic. The returned function is idempotent.
func (b *LocalBus) Subscribe(topic Topic, h Handler) (func(), error) {
	if !topic.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	if h == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler", topic)
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], id)
			b.mu.Unlock()
		})
	}, nil
}

// Subscribers returns the number of handlers registered for topic.
func (b *LocalBus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, fmt.Errorf("invalid json payload")
		}
		return p, nil
	default:
		return json.Marshal(p)
	}
}
