package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/dryfire/internal/shot"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 2 * time.Second
	// sendBuffer is the number of shots queued per client before it is
	// considered stalled.
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// shotMessage is the JSON frame pushed to feed clients.
type shotMessage struct {
	Type string    `json:"type"`
	Shot shot.Shot `json:"shot"`
}

// feedClient is one websocket subscriber. Messages queue on send and are
// written by the client's own goroutine.
type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// writeLoop drains send until it is closed or a write fails.
func (c *feedClient) writeLoop() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debug().Err(err).Msg("Shot feed write failed")
			c.conn.Close()
			return
		}
	}
}

// ShotsHub pushes accepted shots to websocket clients. It implements
// shot.Consumer so it can be subscribed to the gate.
type ShotsHub struct {
	clients map[*feedClient]bool
	mu      sync.Mutex
}

// NewShotsHub creates an empty hub.
func NewShotsHub() *ShotsHub {
	return &ShotsHub{clients: make(map[*feedClient]bool)}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ShotsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &feedClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)
	go c.writeLoop()
	log.Debug().Str("remote", r.RemoteAddr).Msg("Shot feed client connected")

	defer func() {
		h.remove(c)
		log.Debug().Str("remote", r.RemoteAddr).Msg("Shot feed client disconnected")
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *ShotsHub) add(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// remove unregisters c and stops its writer. It is safe to call more than once.
func (h *ShotsHub) remove(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// OnShot queues s for every connected client without blocking. A client
// whose queue is full is dropped.
func (h *ShotsHub) OnShot(s shot.Shot) {
	msg, err := json.Marshal(shotMessage{Type: "shot", Shot: s})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode shot")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Debug().Msg("Dropping slow shot feed client")
			delete(h.clients, c)
			close(c.send)
			c.conn.Close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *ShotsHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
