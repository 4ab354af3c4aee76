// Package overlay serves the live status feed consumed by the injected
// widget and receives its user signals (activity, visibility, clicks).
package overlay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/classwatch/internal/types"
)

// Status is the snapshot pushed to overlay clients on every change.
type Status struct {
	Running     bool     `json:"running"`
	Name        string   `json:"name"`
	StudentID   string   `json:"student_id"`
	State       string   `json:"state"`
	Score       float64  `json:"score"`
	IdleSeconds int      `json:"idle_seconds"`
	Tab         string   `json:"tab"`
	Log         []string `json:"log"`
}

// SignalHandlers route inbound overlay messages into the core. Nil handlers
// are skipped.
type SignalHandlers struct {
	Activity   func()
	Visibility func(visible bool)
	Click      func(label string)
	Start      func()
	Stop       func()
}

// client is one connected overlay socket. All writes go through send: the
// websocket allows at most one concurrent writer, and broadcasts race with
// the priming write otherwise.
type client struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (c *client) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub holds the latest status, a bounded log ring, and the set of connected
// overlay clients. It implements types.Display; updates may arrive out of
// order across backend completions, and the hub always shows the latest
// write.
type Hub struct {
	logLimit int
	handlers SignalHandlers

	mu      sync.Mutex
	status  Status
	clients map[*client]bool
}

var _ types.Display = (*Hub)(nil)

// NewHub creates a Hub keeping at most logLimit recent log lines.
func NewHub(logLimit int) *Hub {
	if logLimit <= 0 {
		logLimit = 30
	}
	h := &Hub{
		logLimit: logLimit,
		clients:  make(map[*client]bool),
	}
	h.status.State = "—"
	h.status.Tab = "here"
	return h
}

// SetHandlers wires the inbound signal routes. Must be called before the
// overlay server starts accepting connections.
func (h *Hub) SetHandlers(handlers SignalHandlers) {
	h.handlers = handlers
}

// Snapshot returns a copy of the current status.
func (h *Hub) Snapshot() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := h.status
	snap.Log = append([]string(nil), h.status.Log...)
	return snap
}

func (h *Hub) SetIdentity(identity types.Identity) {
	h.update(func(s *Status) {
		s.Name = identity.Display()
		s.StudentID = string(identity.ID)
	})
}

func (h *Hub) SetState(state string, score float64) {
	h.update(func(s *Status) {
		s.State = state
		s.Score = score
	})
}

func (h *Hub) SetIdle(seconds int) {
	h.update(func(s *Status) { s.IdleSeconds = seconds })
}

func (h *Hub) SetTab(status string) {
	h.update(func(s *Status) { s.Tab = status })
}

func (h *Hub) SetRunning(running bool) {
	h.update(func(s *Status) {
		s.Running = running
		if !running {
			s.State = "—"
		}
	})
}

// Logf appends a timestamped line to the log ring.
func (h *Hub) Logf(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	h.update(func(s *Status) {
		s.Log = append([]string{line}, s.Log...)
		if len(s.Log) > h.logLimit {
			s.Log = s.Log[:h.logLimit]
		}
	})
}

// update mutates the status under lock and broadcasts the new snapshot.
func (h *Hub) update(fn func(*Status)) {
	h.mu.Lock()
	fn(&h.status)
	snap := h.status
	snap.Log = append([]string(nil), h.status.Log...)
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(snap); err != nil {
			h.drop(c)
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

// signal is one inbound overlay message.
type signal struct {
	Type    string `json:"type"`
	Visible bool   `json:"visible"`
	Label   string `json:"label"`
}

// readLoop consumes signals from one overlay client until it disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		var msg signal
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		h.dispatch(msg)
	}
}

func (h *Hub) dispatch(msg signal) {
	switch msg.Type {
	case "activity":
		if h.handlers.Activity != nil {
			h.handlers.Activity()
		}
	case "visibility":
		if h.handlers.Visibility != nil {
			h.handlers.Visibility(msg.Visible)
		}
	case "click":
		if h.handlers.Click != nil {
			h.handlers.Click(msg.Label)
		}
	case "start":
		if h.handlers.Start != nil {
			h.handlers.Start()
		}
	case "stop":
		if h.handlers.Stop != nil {
			h.handlers.Stop()
		}
	default:
		slog.Debug("unknown overlay signal", "type", msg.Type)
	}
}
