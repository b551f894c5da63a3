package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitDispatchesToSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []*Event
	bus.Subscribe(PricesRefreshed, func(event *Event) {
		received = append(received, event)
	})

	bus.Emit(PricesRefreshed, "market", map[string]interface{}{"rows": 50})

	require.Len(t, received, 1)
	assert.Equal(t, PricesRefreshed, received[0].Type)
	assert.Equal(t, "market", received[0].Module)
	assert.Equal(t, 50, received[0].Data["rows"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestEmitSkipsOtherTypes(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	calls := 0
	bus.Subscribe(RefreshFailed, func(event *Event) { calls++ })

	bus.Emit(PricesRefreshed, "market", nil)

	assert.Zero(t, calls)
}

func TestEmitMultipleSubscribersInOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var order []string
	bus.Subscribe(PlanCompleted, func(event *Event) { order = append(order, "first") })
	bus.Subscribe(PlanCompleted, func(event *Event) { order = append(order, "second") })

	bus.Emit(PlanCompleted, "planning", nil)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	calls := 0
	unsubscribe := bus.Subscribe(PricesRefreshed, func(event *Event) { calls++ })

	bus.Emit(PricesRefreshed, "market", nil)
	unsubscribe()
	bus.Emit(PricesRefreshed, "market", nil)

	assert.Equal(t, 1, calls)
}

func TestUnsubscribeLeavesOtherSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var order []string
	removeFirst := bus.Subscribe(PlanCompleted, func(event *Event) { order = append(order, "first") })
	bus.Subscribe(PlanCompleted, func(event *Event) { order = append(order, "second") })

	removeFirst()
	// Unsubscribing twice is harmless.
	removeFirst()

	bus.Emit(PlanCompleted, "planning", nil)

	assert.Equal(t, []string{"second"}, order)
}

func TestEmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received *Event
	bus.Subscribe(ErrorOccurred, func(event *Event) { received = event })

	bus.EmitError("scheduler", errors.New("refresh failed"), map[string]interface{}{"job": "market_refresh"})

	require.NotNil(t, received)
	assert.Equal(t, "refresh failed", received.Data["error"])
}
