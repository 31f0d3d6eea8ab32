package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ernie/trinity-arena/internal/domain"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketClient is one subscriber to the event feed. A non-zero serverID
// limits it to that server's events.
type WebSocketClient struct {
	hub        *WebSocketHub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	serverID   int64
}

type wsMessage struct {
	serverID int64
	data     []byte
}

// WebSocketHub fans manager events out to connected clients
type WebSocketHub struct {
	clients    map[*WebSocketClient]bool
	broadcast  chan wsMessage
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	done       chan struct{}
	mu         sync.RWMutex
	log        zerolog.Logger
}

func NewWebSocketHub(logger zerolog.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		done:       make(chan struct{}),
		log:        logger.With().Str("component", "websocket").Logger(),
	}
}

// Run owns the client set until ctx is done, then closes every client
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Str("remote_addr", client.remoteAddr).Int("clients", n).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Str("remote_addr", client.remoteAddr).Int("clients", n).Msg("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.serverID != 0 && client.serverID != message.serverID {
					continue
				}
				select {
				case client.send <- message.data:
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues an event for all interested clients, dropping it when
// the hub is backed up
func (h *WebSocketHub) Broadcast(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", event.Type).Msg("Failed to marshal event")
		return
	}

	select {
	case h.broadcast <- wsMessage{serverID: event.ServerID, data: data}:
	default:
		h.log.Warn().Str("event", event.Type).Msg("Broadcast channel full, dropping event")
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket upgrades to a websocket. ?server=<id> narrows the feed.
func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	var serverID int64
	if s := req.URL.Query().Get("server"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid server id")
			return
		}
		serverID = id
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		zerolog.Ctx(req.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WebSocketClient{
		hub:        r.wsHub,
		conn:       conn,
		send:       make(chan []byte, wsSendBuffer),
		remoteAddr: clientIP(req),
		serverID:   serverID,
	}
	select {
	case r.wsHub.register <- client:
	case <-r.wsHub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only watches for the close; clients never send anything useful
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.log.Debug().Err(err).Str("remote_addr", c.remoteAddr).Msg("WebSocket read error")
			}
			return
		}
	}
}

// writePump sends one event per text message and keeps the connection alive
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
