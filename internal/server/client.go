package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/liuscraft/orion-stt/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one websocket connection. All writes go through writePump.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, buffer int) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, buffer),
	}
}

// trySend queues payload without blocking. It reports false when the
// buffer is full.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) reply(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logging.Errorf("Client %s: encode reply: %v", c.id, err)
		return
	}
	if !c.trySend(payload) {
		logging.Warnf("Client %s: send buffer full, dropping reply", c.id)
	}
}

// readPump reads commands until the connection fails. It is the only
// reader of the connection.
func (c *Client) readPump(handle func(Command)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warnf("Client %s: read error: %v", c.id, err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			c.reply(Message{Type: TypeError, Error: "only JSON text commands are accepted"})
			continue
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.reply(Message{Type: TypeError, Error: "invalid command: " + err.Error()})
			continue
		}
		handle(cmd)
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings. It closes the connection when the channel is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Warnf("Client %s: write error: %v", c.id, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
