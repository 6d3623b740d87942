package sandbox

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alexbotov/pokepay-go/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is one decrypted call pushed to subscribers
type Event struct {
	Type          string         `json:"type"`
	At            time.Time      `json:"at"`
	ClientID      string         `json:"partner_client_id,omitempty"`
	PartnerCallID string         `json:"partner_call_id,omitempty"`
	Method        string         `json:"request_method,omitempty"`
	Path          string         `json:"path,omitempty"`
	Status        int            `json:"status,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	RequestData   map[string]any `json:"request_data,omitempty"`
}

// Event types
const (
	EventCall      = "call"
	EventRejected  = "rejected"
	EventConnected = "connected"
	EventControl   = "control"
)

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to websocket subscribers. Slow subscribers lose
// events rather than block the sandbox.
type Hub struct {
	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHub creates an empty hub
func NewHub(m *metrics.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		subs:    make(map[*subscriber]struct{}),
		metrics: m,
		logger:  logger,
	}
}

// Publish sends ev to every subscriber
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("failed to marshal event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- msg:
		default:
			// Channel full, drop message
		}
	}
}

// Subscribers returns the number of connected subscribers
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
	if h.metrics != nil {
		h.metrics.EventSubscribers.Set(0)
	}
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[s] = struct{}{}
	if h.metrics != nil {
		h.metrics.EventSubscribers.Set(float64(len(h.subs)))
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
	if h.metrics != nil {
		h.metrics.EventSubscribers.Set(float64(len(h.subs)))
	}
}

// ServeWS upgrades the request and streams events until the peer leaves
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, 256)}

	hello, _ := json.Marshal(Event{Type: EventConnected, At: time.Now().UTC()})
	s.send <- hello
	h.add(s)

	go s.writePump()
	go h.readPump(s)
}

// writePump pumps events from the send channel to the connection
func (s *subscriber) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and detects disconnects
func (h *Hub) readPump(s *subscriber) {
	defer func() {
		h.remove(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(4096)
	s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket closed", "error", err)
			}
			return
		}
	}
}
