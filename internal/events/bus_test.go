package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoclip/internal/protocol"
)

// TestBusDeliversInOrder verifies emission-order delivery to all
// subscribers.
func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(10)

	var first, second []int64
	bus.Subscribe(func(ev protocol.Event) { first = append(first, ev.Seq) })
	bus.Subscribe(func(ev protocol.Event) { second = append(second, ev.Seq) })

	bus.Publish(protocol.Event{Type: protocol.EventTypeLog, Message: "1"})
	bus.Publish(protocol.Event{Type: protocol.EventTypeLog, Message: "2"})
	bus.Publish(protocol.Event{Type: protocol.EventTypeLog, Message: "3"})

	assert.Equal(t, []int64{1, 2, 3}, first)
	assert.Equal(t, []int64{1, 2, 3}, second)
}

// TestBusUnsubscribeStopsDelivery checks unsubscription takes effect
// for events strictly after the call.
func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(10)

	var got []string
	id := bus.Subscribe(func(ev protocol.Event) { got = append(got, ev.Message) })

	bus.Publish(protocol.Event{Message: "before"})
	bus.Unsubscribe(id)
	bus.Publish(protocol.Event{Message: "after"})

	assert.Equal(t, []string{"before"}, got)
}

// TestBusPanickingSubscriberIsIsolated: one failing consumer must not
// block delivery to the others.
func TestBusPanickingSubscriberIsIsolated(t *testing.T) {
	bus := NewBus(10)

	bus.Subscribe(func(protocol.Event) { panic("consumer bug") })
	var got []string
	bus.Subscribe(func(ev protocol.Event) { got = append(got, ev.Message) })

	require.NotPanics(t, func() {
		bus.Publish(protocol.Event{Message: "still delivered"})
	})
	assert.Equal(t, []string{"still delivered"}, got)
}

// TestBusSince verifies incremental event reads by sequence.
func TestBusSince(t *testing.T) {
	bus := NewBus(10)
	bus.Publish(protocol.Event{Message: "1"})
	bus.Publish(protocol.Event{Message: "2"})
	bus.Publish(protocol.Event{Message: "3"})

	got := bus.Since(1)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Seq)
	assert.Equal(t, int64(3), got[1].Seq)
}

// TestBusCapsHistory verifies buffer limit trimming behavior.
func TestBusCapsHistory(t *testing.T) {
	bus := NewBus(2)
	bus.Publish(protocol.Event{Message: "1"})
	bus.Publish(protocol.Event{Message: "2"})
	bus.Publish(protocol.Event{Message: "3"})

	got := bus.Since(0)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Message)
	assert.Equal(t, "3", got[1].Message)
}
