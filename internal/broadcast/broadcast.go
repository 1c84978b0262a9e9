// Package broadcast is the Event Broadcaster of spec.md §4.10: a
// gorilla/websocket hub that fans typed JSON events out to every live
// observer connection, best-effort and at-most-once, with no history
// replay for reconnecting clients.
//
// Grounded on the mutex-guarded-connection-map idiom the teacher uses
// throughout internal/app/services for shared in-memory state; no
// teacher code exercises gorilla/websocket directly (it is a listed but
// unused dependency in the teacher's go.mod), so the hub itself follows
// the library's own documented chat-hub pattern.
package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/adctf/orchestrator/pkg/logger"
)

// EventType names one of the fixed event kinds spec.md §4.10 lists.
type EventType string

const (
	EventConnected            EventType = "connected"
	EventRoundStarted         EventType = "round_started"
	EventPhaseChanged         EventType = "phase_changed"
	EventServiceStatusUpdated EventType = "service_status_updated"
	EventScoreboardUpdated    EventType = "scoreboard_updated"
	EventFlagCaptured         EventType = "flag_captured"
	EventGameStarted          EventType = "game_started"
	EventGameStopped          EventType = "game_stopped"
)

// Event is the JSON envelope written to every connection.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

const writeTimeout = 5 * time.Second

// connection wraps one live websocket with its own write mutex:
// gorilla/websocket forbids concurrent writers on the same connection.
type connection struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *connection) send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ev)
}

// Hub is the set of live observer connections.
type Hub struct {
	log *logger.Logger

	mu    sync.RWMutex
	conns map[string]*connection
}

// NewHub builds an empty Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{log: log, conns: make(map[string]*connection)}
}

// Register adds a new observer connection and immediately sends it a
// "connected" event, returning an id used to Unregister later.
func (h *Hub) Register(conn *websocket.Conn) string {
	id := uuid.NewString()
	c := &connection{id: id, conn: conn}

	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()

	_ = c.send(Event{Type: EventConnected, Data: map[string]string{"connection_id": id}})
	return id
}

// Unregister drops a connection from the fan-out set. Safe to call more
// than once for the same id.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// Publish fans ev out to every live connection. Delivery is best-effort:
// a write failure only logs and drops that one connection, never aborts
// the broadcast to the rest.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	targets := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(ev); err != nil {
			if h.log != nil {
				h.log.WithField("connection_id", c.id).WithError(err).Warn("broadcast write failed, dropping connection")
			}
			h.Unregister(c.id)
		}
	}
}

// Count returns the number of live connections, for status reporting.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Marshal is a convenience used by tests and handlers that need the raw
// wire bytes for an event without going through a live connection.
func Marshal(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
