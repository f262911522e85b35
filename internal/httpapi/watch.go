package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/gridmate/fieldsync/internal/fieldsync"
)

// EventHub fans run events out to WebSocket watchers. It satisfies
// fieldsync.EventSink; Emit never blocks the run, so slow subscribers
// drop events.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan fieldsync.RunEvent]struct{}
}

const writeTimeout = 5 * time.Second

func NewEventHub() *EventHub {
	return &EventHub{subs: map[chan fieldsync.RunEvent]struct{}{}}
}

func (h *EventHub) Emit(event fieldsync.RunEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *EventHub) subscribe() chan fieldsync.RunEvent {
	ch := make(chan fieldsync.RunEvent, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) unsubscribe(ch chan fieldsync.RunEvent) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// handleWatch streams run events as JSON messages until the client or the
// server goes away.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented", "event streaming is not enabled")
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
