package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/classchat/server/internal/model"
)

// ErrEmptyContent is returned when message content is empty after trimming.
var ErrEmptyContent = errors.New("empty content")

// MaxRecentWindow caps how many messages Recent ever returns.
const MaxRecentWindow = 200

// MessageRepo is the append-only message log.
type MessageRepo interface {
	Append(ctx context.Context, senderID uuid.UUID, senderName, content string) (model.Message, error)
	Recent(ctx context.Context, limit int) ([]model.Message, error)
}

type messageRepo struct {
	db *sql.DB
}

// NewMessageRepo creates a new MessageRepo instance
func NewMessageRepo(db *sql.DB) MessageRepo {
	return &messageRepo{db: db}
}

// Append stores a new message with the sender's display name captured at
// send time. Content is trimmed; empty content is rejected with
// ErrEmptyContent before any storage access.
func (r *messageRepo) Append(ctx context.Context, senderID uuid.UUID, senderName, content string) (model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Message{}, ErrEmptyContent
	}

	query := `
		INSERT INTO messages (sender_id, sender_name, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	msg := model.Message{
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
	}
	var idStr string
	err := r.db.QueryRowContext(ctx, query, senderID, senderName, content).Scan(&idStr, &msg.CreatedAt)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	msg.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to parse message ID: %w", err)
	}
	return msg, nil
}

// Recent returns up to limit messages ordered oldest first. The limit is
// clamped to MaxRecentWindow.
func (r *messageRepo) Recent(ctx context.Context, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > MaxRecentWindow {
		limit = MaxRecentWindow
	}

	// Take the newest rows, then flip them back to oldest-first.
	query := `
		SELECT id, sender_id, sender_name, content, created_at
		FROM (
			SELECT id, sender_id, sender_name, content, created_at
			FROM messages
			ORDER BY created_at DESC
			LIMIT $1
		) latest
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		var msg model.Message
		var idStr, senderStr string
		if err := rows.Scan(&idStr, &senderStr, &msg.SenderName, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if msg.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("failed to parse message ID: %w", err)
		}
		if msg.SenderID, err = uuid.Parse(senderStr); err != nil {
			return nil, fmt.Errorf("failed to parse sender ID: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}
