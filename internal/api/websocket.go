package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"lane-defense/internal/command"
	"lane-defense/internal/game"
	"lane-defense/pkg/logger"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1024
	sendBuffer     = 32
)

// wsMessage is the envelope for every server push
type wsMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// wsInbound is the JSON form of a client command
type wsInbound struct {
	Command string `json:"command"`
}

type wsClient struct {
	conn *websocket.Conn
	ip   string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// trySend queues a frame without blocking. Slow clients miss frames.
func (c *wsClient) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// SnapshotSource provides snapshots to broadcast
type SnapshotSource interface {
	GetSnapshot() *game.GameSnapshot
}

// WebSocketHub fans snapshots out to browsers and feeds their commands to a queue
type WebSocketHub struct {
	clients    map[*wsClient]struct{}
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex

	connLimiter *ConnLimiter
	upgrader    websocket.Upgrader
	queue       *command.Queue

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWebSocketHub creates a hub. queue may be nil to ignore client commands.
func NewWebSocketHub(origins OriginChecker, queue *command.Queue) *WebSocketHub {
	h := &WebSocketHub{
		clients:     make(map[*wsClient]struct{}),
		broadcast:   make(chan []byte, 64),
		register:    make(chan *wsClient),
		unregister:  make(chan *wsClient),
		connLimiter: NewConnLimiter(MaxWSConnectionsPerIP),
		queue:       queue,
		stopChan:    make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allowed(origin) {
				return true
			}
			logger.Log.WithField("origin", origin).Warn("⚠️ WebSocket connection rejected")
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run owns the client set until Stop is called
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			logger.Log.WithFields(logrus.Fields{"ip": client.ip, "clients": count}).Info("📱 Client connected")
			UpdateWSConnections(count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.connLimiter.Release(client.ip)
				client.close()
			}
			count := len(h.clients)
			h.mu.Unlock()

			logger.Log.WithField("clients", count).Info("📱 Client disconnected")
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				client.trySend(message)
			}
			h.mu.RUnlock()
			IncrementWSMessages()

		case <-h.stopChan:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				h.connLimiter.Release(client.ip)
				client.close()
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return
		}
	}
}

// Stop disconnects every client and ends Run
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Broadcast sends an event to all connected clients
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(wsMessage{Event: event, Data: data})
	if err != nil {
		logger.Log.WithError(err).Warn("WebSocket encode failed")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes a fresh snapshot fps times per second while clients are connected
func (h *WebSocketHub) StartBroadcastLoop(src SnapshotSource, fps int) {
	if fps <= 0 {
		fps = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))

	go func() {
		defer ticker.Stop()
		var lastSeq uint64
		for {
			select {
			case <-h.stopChan:
				return
			case <-ticker.C:
				if h.ClientCount() == 0 {
					continue
				}
				snap := src.GetSnapshot().Clone()
				if snap.Sequence == lastSeq {
					continue
				}
				lastSeq = snap.Sequence
				h.Broadcast("state", snap)
			}
		}
	}()
}

// HandleWebSocket upgrades the request and starts the client pumps
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= MaxWSConnectionsTotal {
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.connLimiter.Acquire(ip) {
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Debug("WebSocket upgrade failed")
		h.connLimiter.Release(ip)
		return
	}

	client := &wsClient{conn: conn, ip: ip, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.stopChan:
		h.connLimiter.Release(ip)
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHub) writePump(c *wsClient) {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump accepts either a bare command line or {"command": "..."}
func (h *WebSocketHub) readPump(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stopChan:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	source := "ws:" + c.ip
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		line := strings.TrimSpace(string(message))
		if strings.HasPrefix(line, "{") {
			var in wsInbound
			if err := json.Unmarshal(message, &in); err != nil {
				h.reply(c, command.Result{Message: "invalid message"})
				continue
			}
			line = in.Command
		}
		if h.queue == nil {
			continue
		}

		ok := h.queue.Enqueue(command.Job{
			Line:   line,
			Source: source,
			Reply: func(res command.Result) {
				recordCommandResult(res)
				h.reply(c, res)
			},
		})
		if !ok {
			h.reply(c, command.Result{Message: "server busy"})
		}
	}
}

func (h *WebSocketHub) reply(c *wsClient, res command.Result) {
	msg, err := json.Marshal(wsMessage{Event: "result", Data: res})
	if err != nil {
		return
	}
	c.trySend(msg)
}
