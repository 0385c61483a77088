// Package repomanager vends repository implementations bound to a database
// handle and owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/aimathteacher/backend/internal/dbx"
	"github.com/aimathteacher/backend/internal/server/repositories/messages"
	"github.com/aimathteacher/backend/internal/server/repositories/refreshtokens"
	"github.com/aimathteacher/backend/internal/server/repositories/sessions"
	"github.com/aimathteacher/backend/internal/server/repositories/users"
)

// RepositoryManager returns repositories bound to the provided DBTX, so a
// service can run several repositories inside one transaction by passing the
// same *sql.Tx to each.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Messages(db dbx.DBTX) messages.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository

	RunMigrations(ctx context.Context, db *sql.DB) error
}
