package model

import (
	"time"

	"github.com/google/uuid"
)

// Roles assignable to a user.
const (
	RoleMember        = "member"
	RoleAdministrator = "administrator"
)

// User represents a registered account. The password hash and any pending
// reset code live only in the users table; they are never loaded onto this
// struct and never leave the repo layer.
type User struct {
	ID        uuid.UUID
	Username  string
	Email     string
	Role      string
	Language  *string
	CreatedAt time.Time
}

// Message represents a persisted chat message. SenderName is captured at
// send time and does not follow later renames.
type Message struct {
	ID         uuid.UUID
	SenderID   uuid.UUID
	SenderName string
	Content    string
	CreatedAt  time.Time
}
