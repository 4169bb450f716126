// Package client is the chat client session: it hydrates history over
// HTTP, submits messages optimistically, and reconciles the local view
// against the authoritative broadcast echo.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/classchat/server/internal/ws"
)

// ErrNotConnected is returned by Send when there is no live channel. No
// placeholder is created in that case.
var ErrNotConnected = errors.New("not connected")

// ViewItem is one entry in the ordered message view: either an
// authoritative message or a local pending placeholder awaiting its echo.
type ViewItem struct {
	ID         string // server-assigned; empty while pending
	LocalID    string // placeholder identifier; empty once authoritative
	Content    string
	SenderName string
	CreatedAt  time.Time
	Pending    bool
}

// Session is a live connection to the chat server for one user.
type Session struct {
	username string

	mu     sync.Mutex
	conn   *websocket.Conn
	items  []ViewItem
	seq    int
	closed bool

	// writeMu serializes writes to conn. It is never held together with
	// mu, so a slow peer cannot stall the view.
	writeMu sync.Mutex

	notices chan ws.PresenceEvent
	errs    chan string
	done    chan struct{}
}

// Dial opens the realtime channel with the given token, hydrates the view
// from the recent-history window, and starts listening for broadcasts.
func Dial(ctx context.Context, baseURL, token, username string) (*Session, error) {
	wsURL, err := websocketURL(baseURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open realtime channel: %w", err)
	}

	var frame ws.AuthFrame
	frame.Auth.Token = token
	if err := conn.WriteJSON(frame); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send auth frame: %w", err)
	}

	s := &Session{
		username: username,
		conn:     conn,
		notices:  make(chan ws.PresenceEvent, 16),
		errs:     make(chan string, 16),
		done:     make(chan struct{}),
	}

	if err := s.hydrate(ctx, baseURL); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go s.listen()
	return s, nil
}

// hydrate loads the recent-history snapshot into the view.
func (s *Session) hydrate(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/messages/recent", nil)
	if err != nil {
		return fmt.Errorf("failed to build history request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("history request returned status %d", resp.StatusCode)
	}

	var history []struct {
		ID         string    `json:"id"`
		Content    string    `json:"content"`
		SenderName string    `json:"senderName"`
		CreatedAt  time.Time `json:"createdAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return fmt.Errorf("failed to decode history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]ViewItem, 0, len(history))
	for _, msg := range history {
		s.items = append(s.items, ViewItem{
			ID:         msg.ID,
			Content:    msg.Content,
			SenderName: msg.SenderName,
			CreatedAt:  msg.CreatedAt,
		})
	}
	return nil
}

// Send submits content over the live channel. A pending placeholder is
// appended to the view first so the message shows up immediately; the
// placeholder is replaced when the broadcast echo arrives. Without a live
// channel the submission is rejected before any placeholder exists.
func (s *Session) Send(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.seq++
	s.items = append(s.items, ViewItem{
		LocalID:    fmt.Sprintf("local-%d", s.seq),
		Content:    content,
		SenderName: s.username,
		CreatedAt:  time.Now(),
		Pending:    true,
	})
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(ws.InboundEvent{Event: ws.EventSendMessage, Content: content}); err != nil {
		// The placeholder stays pending; the round trip never completes.
		return fmt.Errorf("failed to submit message: %w", err)
	}
	return nil
}

// listen consumes broadcasts until the channel dies.
func (s *Session) listen() {
	defer func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var head struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			continue
		}

		switch head.Event {
		case ws.EventNewMessage:
			var msg ws.MessageEvent
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			s.reconcile(msg)
		case ws.EventUserJoined, ws.EventUserLeft:
			var p ws.PresenceEvent
			if err := json.Unmarshal(raw, &p); err != nil {
				continue
			}
			select {
			case s.notices <- p:
			default:
			}
		case ws.EventErrorMessage:
			var e ws.ErrorEvent
			if err := json.Unmarshal(raw, &e); err != nil {
				continue
			}
			select {
			case s.errs <- e.Message:
			default:
			}
		}
	}
}

// reconcile matches a broadcast message against pending placeholders by
// sender name and content. A match is replaced in place, keeping its
// position; otherwise the message is appended. The match is heuristic: two
// identical in-flight submissions from the same name can land on the wrong
// placeholder. A message whose ID is already in the view is dropped: a
// broadcast sent between the auth frame and the first read shows up both
// in the hydration snapshot and on the socket.
func (s *Session) reconcile(msg ws.MessageEvent) {
	item := ViewItem{
		ID:         msg.ID,
		Content:    msg.Content,
		SenderName: msg.SenderName,
		CreatedAt:  msg.CreatedAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID != "" && s.items[i].ID == msg.ID {
			return
		}
		if s.items[i].Pending && s.items[i].SenderName == msg.SenderName && s.items[i].Content == msg.Content {
			s.items[i] = item
			return
		}
	}
	s.items = append(s.items, item)
}

// Items returns a snapshot of the current view, oldest first.
func (s *Session) Items() []ViewItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ViewItem, len(s.items))
	copy(out, s.items)
	return out
}

// Notices delivers join/leave events. Slow consumers miss notices rather
// than blocking the listener.
func (s *Session) Notices() <-chan ws.PresenceEvent {
	return s.notices
}

// Errors delivers private error_message payloads.
func (s *Session) Errors() <-chan string {
	return s.errs
}

// Done is closed when the channel is gone.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the channel down.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}

// websocketURL converts an http(s) base URL into the ws(s) endpoint.
func websocketURL(baseURL string) (string, error) {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws", nil
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws", nil
	default:
		return "", fmt.Errorf("unsupported base URL %q", baseURL)
	}
}
