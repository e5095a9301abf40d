package dashboard

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"salesflow/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsSendBuffer = 16
)

// hub fans snapshot events out to websocket clients. A client that cannot
// keep up is disconnected rather than allowed to block the broadcaster.
type hub struct {
	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
	closed   bool
	upgrader websocket.Upgrader
	log      *logger.Log
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *hub
}

func newHub(log *logger.Log) *hub {
	return &hub{
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log,
	}
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) (*wsClient, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer), hub: h}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return client, nil
	}
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.log.WithComponent("dashboard").WithFields(logger.Fields{"clients": total}).Debug("websocket client connected")

	go client.writer()
	go client.reader()
	return client, nil
}

func (h *hub) broadcast(payload []byte) {
	h.mu.RLock()
	var slow []*wsClient
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.WithComponent("dashboard").Warn("websocket client too slow, disconnecting")
		h.remove(c)
	}
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// enqueue delivers a message to one client without blocking.
func (c *wsClient) enqueue(payload []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *wsClient) writer() {
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
				c.hub.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.remove(c)
				return
			}
		}
	}
}

// reader discards inbound messages and notices disconnects.
func (c *wsClient) reader() {
	defer c.hub.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
