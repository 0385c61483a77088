package models

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a row in the chat_messages table. MessageIndex is a
// strictly increasing sequence within a session, assigned as max+1 and
// never reused.
type ChatMessage struct {
	ID            int64
	ChatSessionID int64
	Role          string
	Content       string
	Timestamp     time.Time
	MessageIndex  int
}
