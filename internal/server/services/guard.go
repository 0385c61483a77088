package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aimathteacher/backend/internal/common"
	"github.com/aimathteacher/backend/internal/logging"
	"github.com/aimathteacher/backend/internal/server/identity"
	"github.com/aimathteacher/backend/internal/server/repositories/repomanager"
	"github.com/aimathteacher/backend/internal/server/sessioncache"
)

// Guard decides whether a caller may touch a chat session. Every path that
// does not positively establish ownership answers no; in particular an
// unresolved caller never passes, and a storage failure during the check is
// a denial rather than an error.
type Guard struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       *sessioncache.Cache
	log         logging.Logger
}

// NewGuard constructs a Guard over the session cache and durable storage.
func NewGuard(db *sql.DB, m repomanager.RepositoryManager, cache *sessioncache.Cache, log logging.Logger) *Guard {
	return &Guard{db: db, repomanager: m, cache: cache, log: log.With("service", "guard")}
}

// CanAccess reports whether id owns the session.
//
// For a live session the comparison depends on the identity kind: anonymous
// callers must present the exact token the session was created under, and
// registered callers must match the owning user id. Matching an anonymous
// caller by user id instead of token is what once let two browsers share one
// "anonymous" account and see each other's sessions.
//
// A session found only in durable storage is restorable for its registered
// owner. For anonymous callers it is not: the stored row does not carry the
// owner token, so the claim cannot be verified and is refused.
func (g *Guard) CanAccess(ctx context.Context, sessionID string, id identity.Identity) bool {
	if id == nil || sessionID == "" {
		return false
	}

	if entry := g.cache.Get(sessionID); entry != nil {
		switch caller := id.(type) {
		case identity.Anonymous:
			return entry.OwnerToken != "" && entry.OwnerToken == caller.Token
		case identity.Registered:
			return entry.OwnerID == caller.ID
		}
		return false
	}

	switch caller := id.(type) {
	case identity.Registered:
		session, err := g.repomanager.Sessions(g.db).GetBySessionID(ctx, sessionID)
		if err != nil {
			if !errors.Is(err, common.ErrorNotFound) {
				g.log.Warn(ctx, "ownership check failed, denying", "session_id", sessionID, "error", err)
			}
			return false
		}
		return session.UserID == caller.ID
	default:
		return false
	}
}
