package ws

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// groupMember puts a bare client into the hub's group with the given send
// capacity, bypassing the pumps so deliver can be driven directly.
func groupMember(h *Hub, username string, capacity int) *Client {
	c := &Client{
		hub:  h,
		send: make(chan []byte, capacity),
		user: connUser{ID: uuid.New(), Username: username},
	}
	h.clients[c] = true
	return c
}

func drainEvents(t *testing.T, c *Client) []string {
	t.Helper()
	var events []string
	for {
		select {
		case raw := <-c.send:
			var head struct {
				Event string `json:"event"`
			}
			require.NoError(t, json.Unmarshal(raw, &head))
			events = append(events, head.Event)
		default:
			return events
		}
	}
}

func TestDeliver_dropsFullBufferClient(t *testing.T) {
	h := NewHub(nil)
	victim := groupMember(h, "victim", 1)
	observer := groupMember(h, "observer", 16)

	victim.send <- []byte("{}") // buffer now full

	h.deliver(envelope{payload: mustMarshal(ErrorEvent{Event: EventErrorMessage, Message: "x"})})

	assert.NotContains(t, h.clients, victim)
	assert.Contains(t, h.clients, observer)
}

func TestDeliver_evictedClientGetsLeaveNotice(t *testing.T) {
	h := NewHub(nil)
	victim := groupMember(h, "victim", 1)
	observer := groupMember(h, "observer", 16)

	victim.send <- []byte("{}")

	h.deliver(envelope{payload: mustMarshal(ErrorEvent{Event: EventErrorMessage, Message: "x"})})

	// The observer sees the payload and then the victim's leave notice,
	// same as any other disconnect.
	events := drainEvents(t, observer)
	require.Equal(t, []string{EventErrorMessage, EventUserLeft}, events)
}

func TestDeliver_cascadingEvictions(t *testing.T) {
	h := NewHub(nil)
	first := groupMember(h, "first", 1)
	second := groupMember(h, "second", 1)
	observer := groupMember(h, "observer", 16)

	// The payload itself fills second's buffer, so first's leave notice
	// evicts second in turn.
	first.send <- []byte("{}")

	h.deliver(envelope{payload: mustMarshal(ErrorEvent{Event: EventErrorMessage, Message: "x"})})

	assert.NotContains(t, h.clients, first)
	assert.NotContains(t, h.clients, second)
	assert.Contains(t, h.clients, observer)

	// Observer learns about both departures.
	events := drainEvents(t, observer)
	require.Len(t, events, 3)
	assert.Equal(t, EventErrorMessage, events[0])
	assert.Equal(t, EventUserLeft, events[1])
	assert.Equal(t, EventUserLeft, events[2])
}
