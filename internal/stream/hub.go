// Package stream pushes view replacements to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/metrics"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/selection"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/service"
)

// Message types sent to clients. Transition messages use the service event
// action as their type.
const (
	TypeSnapshot = "snapshot"
	TypeNotice   = "notice"
)

// Message is one server-to-client frame.
type Message struct {
	Type   string        `json:"type"`
	View   *service.View `json:"view,omitempty"`
	Notice string        `json:"notice,omitempty"`
}

// Command is one client-to-server frame: {"action":"select","name":"D1"} or
// {"action":"clear"}.
type Command struct {
	Action string `json:"action"`
	Name   string `json:"name,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks websocket clients per session and relays view events to them.
type Hub struct {
	views    *service.ViewService
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub creates a hub over the view service.
func NewHub(views *service.ViewService, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		views:  views,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

// Run closes every client connection once ctx is done.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for c := range set {
			c.conn.Close()
		}
	}
}

// Clients returns the number of clients attached to a session.
func (h *Hub) Clients(session string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[session])
}

// open subscribes to a session and then reads its view, so every event on
// the subscription with a higher Seq is newer than the snapshot.
func (h *Hub) open(ctx context.Context, id string) (*service.Subscription, service.View, error) {
	bus := h.views.Bus()
	sub := bus.Subscribe(id)
	v, err := h.views.View(ctx, id)
	if err != nil {
		bus.Unsubscribe(sub)
		return nil, service.View{}, err
	}
	return sub, v, nil
}

// ServeHTTP upgrades /ws/sessions/{id}, sends the current view, relays newer
// views and applies select/clear commands read from the socket.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		id = service.DefaultSession
	}
	sub, v, err := h.open(r.Context(), id)
	if errors.Is(err, service.ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, service.ErrTooManySessions) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer h.views.Bus().Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	h.add(id, c)
	defer func() {
		h.remove(id, c)
		conn.Close()
	}()

	if err := c.send(Message{Type: TypeSnapshot, View: &v}); err != nil {
		return
	}
	go h.relay(c, sub, v.Seq)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.send(Message{Type: TypeNotice, Notice: "invalid command"})
			continue
		}
		h.apply(r.Context(), id, c, cmd)
	}
}

// relay forwards views newer than last until the subscription closes.
func (h *Hub) relay(c *client, sub *service.Subscription, last uint64) {
	for ev := range sub.C() {
		if ev.View.Seq <= last {
			continue
		}
		last = ev.View.Seq
		v := ev.View
		if err := c.send(Message{Type: ev.Action, View: &v}); err != nil {
			h.logger.Debug("ws_send_failed", "session", sub.Session(), "err", err)
			return
		}
	}
}

func (h *Hub) apply(ctx context.Context, id string, c *client, cmd Command) {
	var err error
	switch cmd.Action {
	case "select":
		_, err = h.views.Select(ctx, id, cmd.Name)
	case "clear":
		_, err = h.views.Clear(ctx, id)
	default:
		c.send(Message{Type: TypeNotice, Notice: "unknown action " + cmd.Action})
		return
	}
	if errors.Is(err, selection.ErrSelectionMiss) {
		c.send(Message{Type: TypeNotice, Notice: "location not found: " + cmd.Name})
		return
	}
	if err != nil {
		h.logger.Warn("ws_command_failed", "session", id, "action", cmd.Action, "err", err)
	}
}

func (h *Hub) add(id string, c *client) {
	h.mu.Lock()
	if h.clients[id] == nil {
		h.clients[id] = make(map[*client]struct{})
	}
	h.clients[id][c] = struct{}{}
	h.mu.Unlock()
	metrics.StreamClients.WithLabelValues("ws").Inc()
	h.logger.Debug("ws_connected", "session", id)
}

func (h *Hub) remove(id string, c *client) {
	h.mu.Lock()
	delete(h.clients[id], c)
	if len(h.clients[id]) == 0 {
		delete(h.clients, id)
	}
	h.mu.Unlock()
	metrics.StreamClients.WithLabelValues("ws").Dec()
	h.logger.Debug("ws_disconnected", "session", id)
}
