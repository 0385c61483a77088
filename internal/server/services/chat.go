package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aimathteacher/backend/internal/common"
	"github.com/aimathteacher/backend/internal/engine"
	"github.com/aimathteacher/backend/internal/logging"
	"github.com/aimathteacher/backend/internal/server/identity"
	"github.com/aimathteacher/backend/internal/server/models"
	"github.com/aimathteacher/backend/internal/server/repositories/repomanager"
	"github.com/aimathteacher/backend/internal/server/sessioncache"
)

const defaultSessionTitle = "New Math Session"

// listSessionsLimit caps ListSessions results per user.
const listSessionsLimit = 100

// ChatService owns the chat session lifecycle: creation, adoption of an
// incoming session id, turns, history, and the management surface. Live
// state lives in the session cache; durable storage mirrors it best-effort,
// so a database outage degrades persistence but never interrupts a
// conversation in progress.
type ChatService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       *sessioncache.Cache
	guard       *Guard
	engine      engine.Engine
	log         logging.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(db *sql.DB, m repomanager.RepositoryManager, cache *sessioncache.Cache, guard *Guard, eng engine.Engine, log logging.Logger) *ChatService {
	return &ChatService{
		db:          db,
		repomanager: m,
		cache:       cache,
		guard:       guard,
		engine:      eng,
		log:         log.With("service", "chat"),
	}
}

// CreateSession starts a fresh session owned by id and returns its public
// session id. The cache entry is live immediately; the durable mirror is
// written best-effort.
func (s *ChatService) CreateSession(ctx context.Context, id identity.Identity) (string, error) {
	if id == nil {
		return "", common.ErrorAccessDenied
	}

	now := time.Now()
	entry := &sessioncache.Entry{
		SessionID:    uuid.NewString(),
		OwnerID:      id.UserID(),
		Conversation: s.engine.NewConversation(nil),
		CreatedAt:    now,
		LastActive:   now,
	}
	if anon, ok := id.(identity.Anonymous); ok {
		entry.OwnerToken = anon.Token
	}

	stored, err := s.repomanager.Sessions(s.db).Create(ctx, &models.ChatSession{
		SessionID: entry.SessionID,
		UserID:    entry.OwnerID,
		Title:     defaultSessionTitle,
		AIContext: []byte("[]"),
	})
	if err != nil {
		s.log.Warn(ctx, "durable session create failed, continuing cache-only",
			"session_id", entry.SessionID, "error", err)
	} else {
		entry.DurableID = stored.ID
	}

	s.cache.Put(entry)
	s.log.Info(ctx, "session created", "session_id", entry.SessionID, "user_id", entry.OwnerID)
	return entry.SessionID, nil
}

// EnsureSession adopts the caller's session id: a live owned session is
// reused, a durable owned session is restored, and everything else, empty
// id, unknown id, or a session owned by someone else, silently becomes a
// fresh session. The caller only ever learns the session id it may use.
func (s *ChatService) EnsureSession(ctx context.Context, sessionID string, id identity.Identity) (string, error) {
	if id == nil {
		return "", common.ErrorAccessDenied
	}
	if sessionID == "" {
		return s.CreateSession(ctx, id)
	}

	if !s.guard.CanAccess(ctx, sessionID, id) {
		return s.CreateSession(ctx, id)
	}

	if entry := s.cache.Get(sessionID); entry != nil {
		s.touch(ctx, entry)
		return sessionID, nil
	}

	// Owned but not live: restore from durable storage.
	if err := s.restore(ctx, sessionID, id); err != nil {
		s.log.Warn(ctx, "session restore failed", "session_id", sessionID, "error", err)
		return s.CreateSession(ctx, id)
	}
	return sessionID, nil
}

// SendTurn runs one conversation turn. The session id it returns is the one
// the turn was actually recorded under, which may differ from the argument
// when the caller was redirected to a fresh session. When the engine fails
// the transcript is left untouched.
func (s *ChatService) SendTurn(ctx context.Context, sessionID string, id identity.Identity, text string) (string, string, error) {
	sessionID, err := s.EnsureSession(ctx, sessionID, id)
	if err != nil {
		return "", "", err
	}
	entry := s.cache.Get(sessionID)
	if entry == nil {
		return "", "", common.ErrorInternal
	}

	entry.Mu.Lock()
	defer entry.Mu.Unlock()

	reply, err := entry.Conversation.Send(ctx, text)
	if err != nil {
		return sessionID, "", fmt.Errorf("%w: %w", common.ErrUpstreamUnavailable, err)
	}

	now := time.Now()
	idx := entry.NextIndex()
	userMsg := &models.ChatMessage{ChatSessionID: entry.DurableID, Role: models.RoleUser, Content: text, Timestamp: now, MessageIndex: idx}
	botMsg := &models.ChatMessage{ChatSessionID: entry.DurableID, Role: models.RoleAssistant, Content: reply, Timestamp: now, MessageIndex: idx + 1}
	entry.Messages = append(entry.Messages, userMsg, botMsg)
	entry.LastActive = now

	s.persistTurn(ctx, entry, userMsg, botMsg)
	return sessionID, reply, nil
}

// History returns the session transcript, oldest first.
func (s *ChatService) History(ctx context.Context, sessionID string, id identity.Identity) ([]*models.ChatMessage, error) {
	if !s.guard.CanAccess(ctx, sessionID, id) {
		return nil, common.ErrorAccessDenied
	}

	if entry := s.cache.Get(sessionID); entry != nil {
		entry.Mu.Lock()
		defer entry.Mu.Unlock()
		out := make([]*models.ChatMessage, len(entry.Messages))
		copy(out, entry.Messages)
		return out, nil
	}

	session, err := s.repomanager.Sessions(s.db).GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, s.storageErr(err)
	}
	msgs, err := s.repomanager.Messages(s.db).ListBySession(ctx, session.ID)
	if err != nil {
		return nil, s.storageErr(err)
	}
	return msgs, nil
}

// ListSessions returns the caller's sessions, most recently active first.
// Archived sessions are excluded.
func (s *ChatService) ListSessions(ctx context.Context, id identity.Identity) ([]*models.ChatSession, error) {
	if id == nil {
		return nil, common.ErrorAccessDenied
	}
	list, err := s.repomanager.Sessions(s.db).ListByUser(ctx, id.UserID(), false, listSessionsLimit)
	if err != nil {
		return nil, s.storageErr(err)
	}
	return list, nil
}

// ClearSession empties the transcript and resets the conversation state but
// keeps the session and its ownership.
func (s *ChatService) ClearSession(ctx context.Context, sessionID string, id identity.Identity) error {
	if !s.guard.CanAccess(ctx, sessionID, id) {
		return common.ErrorAccessDenied
	}

	entry := s.cache.Get(sessionID)
	if entry != nil {
		entry.Mu.Lock()
		entry.Messages = nil
		entry.Conversation = s.engine.NewConversation(nil)
		entry.LastActive = time.Now()
		entry.Mu.Unlock()
	}

	durableID := int64(0)
	if entry != nil {
		durableID = entry.DurableID
	} else if session, err := s.repomanager.Sessions(s.db).GetBySessionID(ctx, sessionID); err == nil {
		durableID = session.ID
	}
	if durableID != 0 {
		if err := s.repomanager.Messages(s.db).DeleteBySession(ctx, durableID); err != nil {
			s.log.Warn(ctx, "durable clear failed", "session_id", sessionID, "error", err)
			return nil
		}
		repo := s.repomanager.Sessions(s.db)
		if err := repo.SetMessageCount(ctx, sessionID, 0); err != nil {
			s.log.Warn(ctx, "durable clear failed", "session_id", sessionID, "error", err)
		}
		if err := repo.SetAIContext(ctx, sessionID, []byte("[]")); err != nil {
			s.log.Warn(ctx, "durable clear failed", "session_id", sessionID, "error", err)
		}
	}
	return nil
}

// DeleteSession removes the session from the cache and from durable
// storage; messages go with it.
func (s *ChatService) DeleteSession(ctx context.Context, sessionID string, id identity.Identity) error {
	if !s.guard.CanAccess(ctx, sessionID, id) {
		return common.ErrorAccessDenied
	}
	s.cache.Delete(sessionID)
	if err := s.repomanager.Sessions(s.db).Delete(ctx, sessionID); err != nil {
		return s.storageErr(err)
	}
	s.log.Info(ctx, "session deleted", "session_id", sessionID)
	return nil
}

// ArchiveSession marks the session archived and drops it from the live
// cache. Archived sessions no longer show up in listings and are eventually
// purged by the cleanup job.
func (s *ChatService) ArchiveSession(ctx context.Context, sessionID string, id identity.Identity) error {
	if !s.guard.CanAccess(ctx, sessionID, id) {
		return common.ErrorAccessDenied
	}
	if err := s.repomanager.Sessions(s.db).Archive(ctx, sessionID); err != nil {
		return s.storageErr(err)
	}
	s.cache.Delete(sessionID)
	return nil
}

// RenameSession sets the session title.
func (s *ChatService) RenameSession(ctx context.Context, sessionID string, id identity.Identity, title string) error {
	if !s.guard.CanAccess(ctx, sessionID, id) {
		return common.ErrorAccessDenied
	}
	if title == "" {
		title = defaultSessionTitle
	}
	if err := s.repomanager.Sessions(s.db).SetTitle(ctx, sessionID, title); err != nil {
		return s.storageErr(err)
	}
	return nil
}

// --- helpers below ---

// restore rebuilds a cache entry from the durable record: the conversation
// state comes from the ai_context blob and the transcript from the messages
// table. Only the verified owner reaches this point.
func (s *ChatService) restore(ctx context.Context, sessionID string, id identity.Identity) error {
	session, err := s.repomanager.Sessions(s.db).GetBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}

	var turns []engine.Turn
	if len(session.AIContext) > 0 {
		if err := json.Unmarshal(session.AIContext, &turns); err != nil {
			s.log.Warn(ctx, "corrupt ai_context, restoring without it", "session_id", sessionID, "error", err)
			turns = nil
		}
	}

	msgs, err := s.repomanager.Messages(s.db).ListBySession(ctx, session.ID)
	if err != nil {
		return err
	}

	entry := &sessioncache.Entry{
		SessionID:    sessionID,
		OwnerID:      session.UserID,
		DurableID:    session.ID,
		Conversation: s.engine.NewConversation(turns),
		Messages:     msgs,
		CreatedAt:    session.CreatedAt,
		LastActive:   time.Now(),
	}
	if anon, ok := id.(identity.Anonymous); ok {
		entry.OwnerToken = anon.Token
	}

	// A concurrent caller may have restored the session while this one was
	// reading durable storage. Keep whichever entry landed first; replacing
	// it would drop turns appended to it in the meantime and reissue their
	// message indexes.
	if _, inserted := s.cache.GetOrPut(entry); inserted {
		s.log.Info(ctx, "session restored", "session_id", sessionID, "messages", len(msgs))
	}
	return nil
}

// persistTurn mirrors a completed turn to durable storage. Callers hold the
// entry lock. Failures are logged and swallowed: the cache already holds the
// turn and the conversation must not be interrupted.
func (s *ChatService) persistTurn(ctx context.Context, entry *sessioncache.Entry, userMsg, botMsg *models.ChatMessage) {
	if entry.DurableID == 0 {
		return
	}

	msgRepo := s.repomanager.Messages(s.db)
	if _, err := msgRepo.Append(ctx, entry.DurableID, userMsg.Role, userMsg.Content, userMsg.MessageIndex); err != nil {
		s.log.Warn(ctx, "durable message write failed", "session_id", entry.SessionID, "error", err)
		return
	}
	if _, err := msgRepo.Append(ctx, entry.DurableID, botMsg.Role, botMsg.Content, botMsg.MessageIndex); err != nil {
		s.log.Warn(ctx, "durable message write failed", "session_id", entry.SessionID, "error", err)
		return
	}

	repo := s.repomanager.Sessions(s.db)
	if err := repo.SetMessageCount(ctx, entry.SessionID, len(entry.Messages)); err != nil {
		s.log.Warn(ctx, "durable session update failed", "session_id", entry.SessionID, "error", err)
	}
	if blob, err := json.Marshal(entry.Conversation.History()); err == nil {
		if err := repo.SetAIContext(ctx, entry.SessionID, blob); err != nil {
			s.log.Warn(ctx, "durable session update failed", "session_id", entry.SessionID, "error", err)
		}
	}
	if err := repo.TouchLastActive(ctx, entry.SessionID); err != nil {
		s.log.Warn(ctx, "durable session update failed", "session_id", entry.SessionID, "error", err)
	}
}

func (s *ChatService) touch(ctx context.Context, entry *sessioncache.Entry) {
	entry.Mu.Lock()
	entry.LastActive = time.Now()
	entry.Mu.Unlock()
	if entry.DurableID != 0 {
		if err := s.repomanager.Sessions(s.db).TouchLastActive(ctx, entry.SessionID); err != nil {
			s.log.Warn(ctx, "touch last_active failed", "session_id", entry.SessionID, "error", err)
		}
	}
}

func (s *ChatService) storageErr(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
}
