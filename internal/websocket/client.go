package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ammar1510/clientdesk/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Client is one authenticated socket connection. It implements presence.Handle.
type Client struct {
	ID     uuid.UUID
	UserID string
	Name   string
	Role   models.Role
	Socket *websocket.Conn

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, userID, name string, role models.Role) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Role:   role,
		Socket: conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Emit queues an event for the write pump. It never blocks: a full buffer or
// a closed connection drops the event and returns false.
func (c *Client) Emit(event string, data interface{}) bool {
	frame, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		log.Error("Failed to marshal %s for client %s: %v", event, c.ID, err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		log.Warn("Send buffer full for client %s (user %s), dropping %s", c.ID, c.UserID, event)
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

// shutdown tells the peer the server is going away and closes the socket,
// which ends the read pump and with it the connection's cleanup.
func (c *Client) shutdown() {
	if c.Socket == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.Socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.Socket.Close()
}

// readPump reads frames until the connection fails, handing each to the
// gateway in order. Cleanup runs on every exit path.
func (c *Client) readPump(g *Gateway) {
	defer func() {
		g.disconnect(c)
		c.Socket.Close()
	}()

	c.Socket.SetReadLimit(maxMessageSize)
	c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("Error reading from client %s: %v", c.ID, err)
			} else {
				log.Debug("Client %s closed connection: %v", c.ID, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
			c.Emit(EventMessageError, ErrorPayload{Message: "Invalid message format"})
			continue
		}
		g.dispatch(c, env)
	}
}

// writePump writes queued frames, one event per websocket message, and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Socket.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
