package notifications

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// Event is one bell-feed payload pushed to connected subscribers of an
// agency.
type Event struct {
	Event          string `json:"event"`
	Notification   any    `json:"notification,omitempty"`
	NotificationID string `json:"notification_id,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans bell-feed events out to websocket subscribers, keyed by agency.
// Delivery is best effort; the store remains the source of truth.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
	}
}

// Serve upgrades the request to a websocket and subscribes it to the
// agency's feed until the peer disconnects.
func (h *Hub) Serve(agencyID string, w http.ResponseWriter, r *http.Request) {
	server := websocket.Server{
		Handshake: func(config *websocket.Config, req *http.Request) error {
			config.Protocol = append(config.Protocol, "json")
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			_ = conn.SetDeadline(time.Now().Add(5 * time.Minute))
			cl := &client{
				conn: conn,
				send: make(chan Event, 16),
			}

			h.addClient(agencyID, cl)
			defer h.removeClient(agencyID, cl)

			go h.writeLoop(cl)
			h.readLoop(cl)
		},
	}

	server.ServeHTTP(w, r)
}

// Broadcast delivers an event to every subscriber of the agency. Slow
// subscribers are dropped rather than blocking the rest.
func (h *Hub) Broadcast(agencyID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for cl := range h.clients[agencyID] {
		select {
		case cl.send <- event:
		default:
		}
	}
}

func (h *Hub) addClient(agencyID string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[agencyID] == nil {
		h.clients[agencyID] = make(map[*client]struct{})
	}
	h.clients[agencyID][cl] = struct{}{}
}

func (h *Hub) removeClient(agencyID string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients := h.clients[agencyID]; clients != nil {
		delete(clients, cl)
		if len(clients) == 0 {
			delete(h.clients, agencyID)
		}
	}
	close(cl.send)
	_ = cl.conn.Close()
}

func (h *Hub) writeLoop(cl *client) {
	for event := range cl.send {
		if err := websocket.JSON.Send(cl.conn, event); err != nil {
			break
		}
	}
}

func (h *Hub) readLoop(cl *client) {
	defer cl.conn.Close()

	for {
		var payload any
		if err := websocket.JSON.Receive(cl.conn, &payload); err != nil {
			break
		}
	}
}
