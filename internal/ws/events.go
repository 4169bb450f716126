package ws

import (
	"time"

	"github.com/classchat/server/internal/model"
)

// Event names on the realtime channel.
const (
	EventSendMessage  = "send_message"
	EventNewMessage   = "new_message"
	EventErrorMessage = "error_message"
	EventUserJoined   = "user_joined"
	EventUserLeft     = "user_left"
)

// InboundEvent is a client-to-server frame.
type InboundEvent struct {
	Event   string `json:"event"`
	Content string `json:"content,omitempty"`
}

// AuthFrame is the first frame a client sends after the upgrade when the
// token was not passed on the handshake URL.
type AuthFrame struct {
	Auth struct {
		Token string `json:"token"`
	} `json:"auth"`
}

// MessageEvent carries a persisted message to the group.
type MessageEvent struct {
	Event      string    `json:"event"`
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"senderName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PresenceEvent announces a member joining or leaving the group.
type PresenceEvent struct {
	Event    string `json:"event"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ErrorEvent is delivered privately to a single connection.
type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// NewMessageEvent wraps a stored message for broadcast.
func NewMessageEvent(msg model.Message) MessageEvent {
	return MessageEvent{
		Event:      EventNewMessage,
		ID:         msg.ID.String(),
		Content:    msg.Content,
		Sender:     msg.SenderID.String(),
		SenderName: msg.SenderName,
		CreatedAt:  msg.CreatedAt,
	}
}
