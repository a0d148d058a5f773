// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"patronus.dev/core/internal/logging"
)

// EventKind tags one real-time Event per §6.1's required stream set:
// metrics ticks, path status changes, site changes, policy changes,
// audit events, and threshold alerts.
type EventKind string

const (
	EventMetricsTick   EventKind = "metrics_tick"
	EventPathStatus    EventKind = "path_status"
	EventSiteChange    EventKind = "site_change"
	EventPolicyChange  EventKind = "policy_change"
	EventAudit         EventKind = "audit"
	EventAlert         EventKind = "alert"
)

// Event is one message broadcast to every connected stream subscriber.
type Event struct {
	Kind      EventKind   `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The control API is consumed by the same origin's UI and by
	// operator tooling over a trusted network; origin checking is
	// delegated to a reverse proxy in front of this process.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const clientSendBuffer = 64

// Hub fans Events out to every connected WebSocket client. When a slow
// client's buffer is full, the new Event is dropped for that client
// rather than blocking the broadcaster; messages already queued for it
// are kept.
type Hub struct {
	logger *logging.Logger

	mu      sync.Mutex
	clients map[chan Event]struct{}

	broadcast chan Event
}

func newHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:    logger,
		clients:   make(map[chan Event]struct{}),
		broadcast: make(chan Event, 256),
	}
}

// Publish enqueues an Event for broadcast to every connected client.
func (h *Hub) Publish(kind EventKind, payload interface{}) {
	select {
	case h.broadcast <- Event{Kind: kind, Timestamp: time.Now(), Payload: payload}:
	default:
		h.logger.Warn("controlapi: broadcast queue full, dropping event", "kind", kind)
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-h.broadcast:
			h.mu.Lock()
			for ch := range h.clients {
				select {
				case ch <- evt:
				default:
					// Slow client: drop the event rather than block the hub.
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) subscribe() chan Event {
	ch := make(chan Event, clientSendBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// handleStream upgrades to a WebSocket and streams every Hub
// broadcast to the client as JSON until the connection closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("controlapi: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	// Drain client-initiated reads (e.g. pings/close) on their own
	// goroutine so a client close is noticed promptly.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case evt := <-ch:
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
