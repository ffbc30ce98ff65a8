package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/audiolibrelab/loopcap/internal/audio"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// EventTranscriptUpdated is broadcast when a transcript file is created or
// rewritten in the output directory.
const EventTranscriptUpdated = "transcript_updated"

// Event is one message on the /events stream
type Event struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

type client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans lifecycle notifications out to websocket subscribers. It
// implements audio.Notifier so it can be handed straight to the service.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The GUI is served from its own origin (a webview or localhost page).
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Notify broadcasts an event without ever blocking the capture goroutine
// that reported it. A subscriber whose buffer is full misses progress
// events; if it cannot take any other event it is disconnected, so a client
// never silently misses the end of a recording and can resync from /status.
func (h *Hub) Notify(event string, payload any) {
	msg, err := json.Marshal(Event{Event: event, Payload: payload, Time: time.Now()})
	if err != nil {
		slog.Warn("Failed to encode event", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			if isProgress(event) {
				slog.Debug("Event subscriber is behind, dropping progress", "event", event, "remote", c.remote)
				continue
			}
			slog.Warn("Event subscriber is behind, disconnecting", "event", event, "remote", c.remote)
			delete(h.clients, c)
			c.close()
		}
	}
}

func isProgress(event string) bool {
	return event == audio.EventRecordingProgress || event == audio.EventContinuousProgress
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the peer leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, remote: conn.RemoteAddr().String(), send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	slog.Debug("Event subscriber connected", "remote", c.remote)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readPump only exists to process control frames and notice disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		slog.Debug("Event subscriber disconnected", "remote", c.remote)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("Event write failed", "remote", c.remote, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
