package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives events for a subscribed type.
type Handler func(event *Event)

// subscription ties a handler to an id so it can be removed later.
type subscription struct {
	id      int
	handler Handler
}

// Bus is an in-process pub/sub bus. Emit dispatches synchronously in
// subscription order; handlers that need to block should spawn their
// own goroutine.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType][]subscription
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
		log:      log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers a handler for an event type. The returned
// function removes the handler again; short-lived subscribers such as
// websocket connections must call it on disconnect.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	return func() { b.unsubscribe(eventType, id) }
}

func (b *Bus) unsubscribe(eventType EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit builds an event and dispatches it to all subscribers of its type.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[eventType]))
	for _, sub := range b.handlers[eventType] {
		handlers = append(handlers, sub.handler)
	}
	b.mu.RUnlock()

	eventJSON, _ := json.Marshal(event)
	b.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	for _, handler := range handlers {
		handler(event)
	}
}

// EmitError emits an error event
func (b *Bus) EmitError(module string, err error, context map[string]interface{}) {
	b.Emit(ErrorOccurred, module, map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	})
}
