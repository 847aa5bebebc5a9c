package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"autoclip/internal/log"
	"autoclip/internal/protocol"
)

// Handler consumes one published event. Handlers run synchronously on
// the publisher's goroutine and must not call back into the bus.
type Handler func(protocol.Event)

// subscription pairs a stable token with its handler. Delivery order
// across subscribers follows subscription order.
type subscription struct {
	id      string
	handler Handler
}

// Bus delivers every published event to all current subscribers in
// publish order and keeps a bounded history for incremental reads.
type Bus struct {
	mu        sync.Mutex
	logger    zerolog.Logger
	nextSeq   int64
	maxEvents int
	events    []protocol.Event
	subs      []subscription
}

// NewBus creates a bus with a bounded in-memory event history.
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &Bus{
		logger:    log.WithComponent("events"),
		maxEvents: maxEvents,
		events:    make([]protocol.Event, 0, maxEvents),
	}
}

// Subscribe registers a handler for all events published after this
// call and returns a token for Unsubscribe.
func (b *Bus) Subscribe(handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.subs = append(b.subs, subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes the handler registered under id. Events already
// being delivered are unaffected.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish assigns sequence and timestamp, appends to history, and
// delivers the event to every subscriber. A panicking subscriber is
// isolated so the remaining subscribers still receive the event.
func (b *Bus) Publish(event protocol.Event) protocol.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]protocol.Event(nil), b.events[trim:]...)
	}

	for _, sub := range b.subs {
		b.deliver(sub, event)
	}
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []protocol.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]protocol.Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// deliver invokes one handler, absorbing panics so a misbehaving
// consumer cannot break delivery to the others.
func (b *Bus) deliver(sub subscription, event protocol.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("subscription", sub.id).
				Int64("seq", event.Seq).
				Interface("panic", r).
				Msg("subscriber panicked handling event")
		}
	}()
	sub.handler(event)
}
