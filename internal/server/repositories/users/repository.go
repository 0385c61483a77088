// Package users declares the repository contract for user records in
// persistent storage.
package users

import (
	"context"
	"time"

	"github.com/aimathteacher/backend/internal/server/models"
)

// Repository defines CRUD operations over the users table. Lookup methods
// return common.ErrorNotFound when no row matches; they never create users
// as a side effect.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)

	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetBySessionToken(ctx context.Context, token string) (*models.User, error)

	// GetByResetToken and GetByVerificationToken match only tokens that have
	// not yet expired.
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)

	// Promote converts an anonymous user into a registered one in place,
	// preserving id and session_token.
	Promote(ctx context.Context, id int64, email, passwordHash, displayName string) error

	SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error
	SetVerificationToken(ctx context.Context, id int64, token string, expires time.Time) error

	// UpdatePassword sets a new password hash and clears any outstanding
	// reset token in the same statement.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	MarkVerified(ctx context.Context, id int64) error

	// UpdateProfile sets the display name when non-empty and merges prefs
	// into the stored preferences map key-wise.
	UpdateProfile(ctx context.Context, id int64, displayName string, prefs map[string]any) error

	TouchLastActive(ctx context.Context, id int64) error
	SetLastLogin(ctx context.Context, id int64) error

	Deactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}
