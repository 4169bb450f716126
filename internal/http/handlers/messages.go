package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/classchat/server/internal/model"
	"github.com/classchat/server/internal/repo"
)

// MessageHandler serves the recent-history window
type MessageHandler struct {
	messages repo.MessageRepo
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messages repo.MessageRepo) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// messageResponse matches the new_message event payload minus the event field.
type messageResponse struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"senderName"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toMessageResponse(msg model.Message) messageResponse {
	return messageResponse{
		ID:         msg.ID.String(),
		Content:    msg.Content,
		Sender:     msg.SenderID.String(),
		SenderName: msg.SenderName,
		CreatedAt:  msg.CreatedAt,
	}
}

// HandleRecent handles GET /messages/recent. Returns up to 200 messages,
// oldest first.
func (h *MessageHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	messages, err := h.messages.Recent(r.Context(), repo.MaxRecentWindow)
	if err != nil {
		log.Printf("Failed to load recent messages: %v", err)
		respondWithError(w, http.StatusInternalServerError, "server error")
		return
	}

	response := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, toMessageResponse(msg))
	}
	respondWithJSON(w, http.StatusOK, response)
}
