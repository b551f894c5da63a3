package server

import (
	"net/http"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sorceryai/conjure/internal/events"
)

// EventsStreamHandler pushes bus events to dashboard clients over a
// websocket. Each connection gets its own buffered channel; slow
// clients drop events rather than block the bus.
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsStreamHandler creates the event stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("handler", "events_stream").Logger(),
	}
}

// HandleStream upgrades the connection and streams events until the
// client disconnects
// GET /api/stream
func (h *EventsStreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if h.eventBus == nil {
		http.Error(w, "event stream disabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS is handled at the router level
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	h.log.Info().Str("remote", r.RemoteAddr).Msg("Client connected to event stream")

	// Buffer to prevent blocking the bus
	eventChan := make(chan *events.Event, 100)

	handler := func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	// Handlers are removed on disconnect so closed connections do not
	// accumulate on the bus.
	for _, eventType := range events.AllTypes {
		unsubscribe := h.eventBus.Subscribe(eventType, handler)
		defer unsubscribe()
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Str("remote", r.RemoteAddr).Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-eventChan:
			if err := wsjson.Write(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("Failed to write event to client")
				return
			}
		}
	}
}
