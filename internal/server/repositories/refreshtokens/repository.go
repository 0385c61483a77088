// Package refreshtokens declares the server-side repository contract for
// refresh tokens. Storing issued refresh tokens lets rotation revoke the
// previous token instead of trusting the JWT expiry alone.
package refreshtokens

import (
	"context"
	"time"

	"github.com/aimathteacher/backend/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking
// refresh tokens.
type Repository interface {
	// Create stores a new refresh token for userID with an expiry of
	// now+validity.
	Create(ctx context.Context, userID int64, token string, validity time.Duration) error

	// Find looks up a refresh token by its token string, returning
	// common.ErrorNotFound when absent (i.e. already rotated or revoked).
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token. Deleting an absent token is not an
	// error.
	Delete(ctx context.Context, token string) error

	// DeleteByUser revokes all refresh tokens of a user (logout-everywhere,
	// account deactivation).
	DeleteByUser(ctx context.Context, userID int64) error
}
