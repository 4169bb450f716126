package ws

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/classchat/server/internal/repo"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 64
)

// connUser is the verified identity a connection carries while joined.
type connUser struct {
	ID       uuid.UUID
	Username string
}

// Client is one joined WebSocket connection. Its inbound handling runs in
// its own goroutine, so one peer's failure never disturbs the rest of the
// group.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	user connUser
	addr string
}

func newClient(conn *websocket.Conn, hub *Hub, user connUser, addr string) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		hub:  hub,
		user: user,
		addr: addr,
	}
}

// readPump consumes inbound frames until the connection dies, then tears
// the membership down.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Read error from %s (%s): %v", c.user.Username, c.addr, err)
			}
			return
		}

		var ev InboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("Invalid frame from %s (%s): %v", c.user.Username, c.addr, err)
			continue
		}

		switch ev.Event {
		case EventSendMessage:
			c.handleSend(ev.Content)
		default:
			// Unknown events are ignored.
		}
	}
}

// handleSend trims, persists, and broadcasts one submission. The broadcast
// only happens after the append succeeds, so no member ever sees a message
// that is not durably stored. Storage failures are reported to the sender
// alone.
func (c *Client) handleSend(raw string) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return
	}

	msg, err := c.hub.messages.Append(c.hub.ctx, c.user.ID, c.user.Username, content)
	if err != nil {
		if errors.Is(err, repo.ErrEmptyContent) {
			return
		}
		log.Printf("Failed to store message from %s: %v", c.user.Username, err)
		c.hub.enqueue(envelope{
			payload: mustMarshal(ErrorEvent{Event: EventErrorMessage, Message: "message not delivered"}),
			only:    c,
		})
		return
	}

	c.hub.enqueue(envelope{payload: mustMarshal(NewMessageEvent(msg))})
}

// writePump pushes queued payloads to the peer and keeps the connection
// alive with pings.
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
