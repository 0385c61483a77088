// Package messages declares the repository contract for chat messages in
// persistent storage.
package messages

import (
	"context"

	"github.com/aimathteacher/backend/internal/server/models"
)

// Repository defines append/list/clear operations over the chat_messages
// table, keyed by the internal chat session row id.
type Repository interface {
	// Append inserts a message at the given index within the session. The
	// index comes from the live cache entry; the unique constraint on
	// (chat_session_id, message_index) backstops it.
	Append(ctx context.Context, chatSessionID int64, role, content string, index int) (*models.ChatMessage, error)

	ListBySession(ctx context.Context, chatSessionID int64) ([]*models.ChatMessage, error)

	// DeleteBySession removes all messages of a session (session clear).
	DeleteBySession(ctx context.Context, chatSessionID int64) error
}
