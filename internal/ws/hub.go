// Package ws is the realtime gateway: it authenticates WebSocket peers,
// keeps the single broadcast group, and fans persisted messages out to
// every joined connection.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/classchat/server/internal/repo"
)

// envelope is a delivery instruction for the hub loop. With only set the
// payload goes to that client alone; with exclude set it goes to everyone
// else; with neither set it goes to the whole group.
type envelope struct {
	payload []byte
	only    *Client
	exclude *Client
}

// Hub owns the broadcast group. Membership and delivery are handled by a
// single goroutine (Run), so the client set needs no locking.
type Hub struct {
	messages repo.MessageRepo

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub over the given message log. Call Run in its own
// goroutine before registering clients.
func NewHub(messages repo.MessageRepo) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		messages:   messages,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It owns all membership changes and all
// outbound delivery.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.clients[client] = true
			log.Printf("Client joined: %s (%s). Group size: %d", client.user.Username, client.addr, len(h.clients))

			go client.writePump()
			go client.readPump()

			h.deliver(envelope{
				payload: mustMarshal(PresenceEvent{Event: EventUserJoined, UserID: client.user.ID.String(), Username: client.user.Username}),
				exclude: client,
			})

		case client := <-h.unregister:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			delete(h.clients, client)
			close(client.send)
			log.Printf("Client left: %s (%s). Group size: %d", client.user.Username, client.addr, len(h.clients))

			h.deliver(envelope{
				payload: mustMarshal(PresenceEvent{Event: EventUserLeft, UserID: client.user.ID.String(), Username: client.user.Username}),
			})

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// deliver fans one payload out per the envelope's targeting. Clients whose
// send buffer is full are dropped from the group; a stuck peer never blocks
// the rest. A dropped client left the group like any other disconnect, so
// the remaining members get its leave notice.
func (h *Hub) deliver(env envelope) {
	var dropped []*Client
	for client := range h.clients {
		if env.only != nil && client != env.only {
			continue
		}
		if client == env.exclude {
			continue
		}
		select {
		case client.send <- env.payload:
		default:
			delete(h.clients, client)
			close(client.send)
			dropped = append(dropped, client)
			log.Printf("Client %s (%s) dropped: send buffer full", client.user.Username, client.addr)
		}
	}

	for _, client := range dropped {
		h.deliver(envelope{
			payload: mustMarshal(PresenceEvent{Event: EventUserLeft, UserID: client.user.ID.String(), Username: client.user.Username}),
		})
	}
}

// closeAll closes every connection during shutdown.
func (h *Hub) closeAll() {
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		_ = client.conn.Close()
	}
}

// Register hands a freshly authenticated connection to the hub loop.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		_ = client.conn.Close()
	}
}

// enqueue submits an envelope to the hub loop, dropping it if the hub is
// shutting down.
func (h *Hub) enqueue(env envelope) {
	select {
	case h.broadcast <- env:
	case <-h.ctx.Done():
	}
}

// Shutdown stops the hub loop and closes all connections, waiting up to
// timeout for the loop to drain.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

func mustMarshal(v interface{}) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		// Only reachable with a broken event type.
		log.Printf("Failed to marshal event: %v", err)
		return []byte("{}")
	}
	return payload
}
