// Package sessions declares the repository contract for chat sessions in
// persistent storage.
package sessions

import (
	"context"
	"time"

	"github.com/aimathteacher/backend/internal/server/models"
)

// Repository defines CRUD operations over the chat_sessions table, keyed by
// the public session_id. Lookups return common.ErrorNotFound when no row
// matches.
type Repository interface {
	Create(ctx context.Context, session *models.ChatSession) (*models.ChatSession, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.ChatSession, error)
	ListByUser(ctx context.Context, userID int64, includeArchived bool, limit int) ([]*models.ChatSession, error)

	SetTitle(ctx context.Context, sessionID, title string) error
	Archive(ctx context.Context, sessionID string) error
	TouchLastActive(ctx context.Context, sessionID string) error
	SetMessageCount(ctx context.Context, sessionID string, count int) error

	// SetAIContext overwrites the opaque conversation-state blob; reads come
	// back on GetBySessionID.
	SetAIContext(ctx context.Context, sessionID string, blob []byte) error

	Delete(ctx context.Context, sessionID string) error

	// DeleteArchivedBefore removes archived sessions whose last activity is
	// older than cutoff and reports how many were deleted.
	DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
