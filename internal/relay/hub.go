package relay

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/ecoride/internal/logging"
	"github.com/example/ecoride/internal/observability"
)

const writeWait = 5 * time.Second

// Event is what subscribers of a ride channel receive.
type Event struct {
	Type   string    `json:"type"`
	RideID int64     `json:"ride_id"`
	Data   any       `json:"data"`
	At     time.Time `json:"at"`
}

// session is one connected client; writes are serialized per connection.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(ev)
}

// Hub holds websocket sessions grouped by ride.
type Hub struct {
	mu       sync.RWMutex
	rides    map[int64]map[*session]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		rides: make(map[int64]map[*session]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) add(rideID int64, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rides[rideID]
	if !ok {
		set = make(map[*session]struct{})
		h.rides[rideID] = set
	}
	set[s] = struct{}{}
	observability.RelaySubscribers.Inc()
}

func (h *Hub) remove(rideID int64, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rides[rideID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.rides, rideID)
	}
	observability.RelaySubscribers.Dec()
	_ = s.conn.Close()
}

// Subscribers returns the number of open sessions on a ride.
func (h *Hub) Subscribers(rideID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rides[rideID])
}

// Publish sends an event to every session on the ride. Sessions that fail
// to accept the write are dropped.
func (h *Hub) Publish(rideID int64, eventType string, data any) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.rides[rideID]))
	for s := range h.rides[rideID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	ev := Event{Type: eventType, RideID: rideID, Data: data, At: time.Now().UTC()}
	for _, s := range targets {
		if err := s.send(ev); err != nil {
			h.logger.Warn("ride channel send failed", "ride_id", rideID, "error", err)
			h.remove(rideID, s)
		}
	}
}

// ServeRide upgrades the request and keeps the session registered until
// the client goes away. Inbound frames are read and discarded.
func (h *Hub) ServeRide(w http.ResponseWriter, r *http.Request, rideID int64) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "ride_id", rideID, "error", err)
		return
	}
	s := &session{conn: conn}
	h.add(rideID, s)
	defer h.remove(rideID, s)

	conn.SetReadLimit(4096)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close drops every session.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.rides
	h.rides = make(map[int64]map[*session]struct{})
	h.mu.Unlock()
	for _, set := range all {
		for s := range set {
			observability.RelaySubscribers.Dec()
			_ = s.conn.Close()
		}
	}
}
