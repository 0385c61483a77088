package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aimathteacher/backend/internal/common"
	"github.com/aimathteacher/backend/internal/dbx"
	"github.com/aimathteacher/backend/internal/logging"
	"github.com/aimathteacher/backend/internal/server/models"
	messagesrepo "github.com/aimathteacher/backend/internal/server/repositories/messages"
	refreshtokensrepo "github.com/aimathteacher/backend/internal/server/repositories/refreshtokens"
	sessionsrepo "github.com/aimathteacher/backend/internal/server/repositories/sessions"
	usersrepo "github.com/aimathteacher/backend/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- stateful in-memory fakes ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.User

	failAll bool

	// hideEmail makes GetByEmail miss for that address while Create still
	// enforces uniqueness, simulating a row committed by a concurrent
	// writer after the caller's duplicate pre-check.
	hideEmail string
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[int64]*models.User{}}
}

func (f *fakeUsersRepo) err() error {
	if f.failAll {
		return errBoom{}
	}
	return nil
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return nil, err
	}
	for _, existing := range f.byID {
		if u.Email != "" && existing.Email == u.Email {
			return nil, common.ErrorDuplicateEmail
		}
	}
	f.nextID++
	cp := *u
	cp.ID = f.nextID
	cp.CreatedAt = time.Now()
	cp.LastActive = time.Now()
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) (*models.User, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	for _, u := range f.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if email != "" && email == f.hideEmail {
		return nil, common.ErrorNotFound
	}
	return f.find(func(u *models.User) bool { return u.Email == email && u.Email != "" })
}

func (f *fakeUsersRepo) GetBySessionToken(ctx context.Context, token string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(u *models.User) bool { return u.SessionToken == token && token != "" })
}

func (f *fakeUsersRepo) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(u *models.User) bool {
		return token != "" && u.ResetToken == token && u.ResetTokenExpires.After(time.Now())
	})
}

func (f *fakeUsersRepo) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(u *models.User) bool {
		return token != "" && u.VerificationToken == token && u.VerificationTokenExpires.After(time.Now())
	})
}

func (f *fakeUsersRepo) update(id int64, fn func(*models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	return nil
}

func (f *fakeUsersRepo) Promote(ctx context.Context, id int64, email, passwordHash, displayName string) error {
	return f.update(id, func(u *models.User) {
		u.Email = email
		u.PasswordHash = passwordHash
		u.DisplayName = displayName
		u.AccountType = models.AccountRegistered
	})
}

func (f *fakeUsersRepo) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	return f.update(id, func(u *models.User) {
		u.ResetToken = token
		u.ResetTokenExpires = expires
	})
}

func (f *fakeUsersRepo) SetVerificationToken(ctx context.Context, id int64, token string, expires time.Time) error {
	return f.update(id, func(u *models.User) {
		u.VerificationToken = token
		u.VerificationTokenExpires = expires
	})
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return f.update(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.ResetToken = ""
		u.ResetTokenExpires = time.Time{}
	})
}

func (f *fakeUsersRepo) MarkVerified(ctx context.Context, id int64) error {
	return f.update(id, func(u *models.User) {
		u.IsVerified = true
		u.VerificationToken = ""
	})
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, id int64, displayName string, prefs map[string]any) error {
	return f.update(id, func(u *models.User) {
		if displayName != "" {
			u.DisplayName = displayName
		}
		if u.Preferences == nil {
			u.Preferences = map[string]any{}
		}
		for k, v := range prefs {
			u.Preferences[k] = v
		}
	})
}

func (f *fakeUsersRepo) TouchLastActive(ctx context.Context, id int64) error {
	return f.update(id, func(u *models.User) { u.LastActive = time.Now() })
}

func (f *fakeUsersRepo) SetLastLogin(ctx context.Context, id int64) error {
	return f.update(id, func(u *models.User) {
		u.LastLogin = time.Now()
		u.LastActive = time.Now()
	})
}

func (f *fakeUsersRepo) Deactivate(ctx context.Context, id int64) error {
	return f.update(id, func(u *models.User) { u.IsActive = false })
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	delete(f.byID, id)
	return nil
}

type fakeSessionsRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.ChatSession

	failAll bool
}

func newFakeSessionsRepo() *fakeSessionsRepo {
	return &fakeSessionsRepo{rows: map[string]*models.ChatSession{}}
}

func (f *fakeSessionsRepo) err() error {
	if f.failAll {
		return errBoom{}
	}
	return nil
}

func (f *fakeSessionsRepo) Create(ctx context.Context, s *models.ChatSession) (*models.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return nil, err
	}
	f.nextID++
	cp := *s
	cp.ID = f.nextID
	cp.CreatedAt = time.Now()
	cp.LastActive = time.Now()
	f.rows[cp.SessionID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeSessionsRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return nil, err
	}
	s, ok := f.rows[sessionID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionsRepo) ListByUser(ctx context.Context, userID int64, includeArchived bool, limit int) ([]*models.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return nil, err
	}
	var out []*models.ChatSession
	for _, s := range f.rows {
		if s.UserID != userID {
			continue
		}
		if s.IsArchived && !includeArchived {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSessionsRepo) change(sessionID string, fn func(*models.ChatSession)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	s, ok := f.rows[sessionID]
	if !ok {
		return common.ErrorNotFound
	}
	fn(s)
	return nil
}

func (f *fakeSessionsRepo) SetTitle(ctx context.Context, sessionID, title string) error {
	return f.change(sessionID, func(s *models.ChatSession) { s.Title = title })
}

func (f *fakeSessionsRepo) Archive(ctx context.Context, sessionID string) error {
	return f.change(sessionID, func(s *models.ChatSession) {
		s.IsArchived = true
		s.ArchivedAt = time.Now()
	})
}

func (f *fakeSessionsRepo) TouchLastActive(ctx context.Context, sessionID string) error {
	return f.change(sessionID, func(s *models.ChatSession) { s.LastActive = time.Now() })
}

func (f *fakeSessionsRepo) SetMessageCount(ctx context.Context, sessionID string, count int) error {
	return f.change(sessionID, func(s *models.ChatSession) { s.MessageCount = count })
}

func (f *fakeSessionsRepo) SetAIContext(ctx context.Context, sessionID string, blob []byte) error {
	return f.change(sessionID, func(s *models.ChatSession) { s.AIContext = blob })
}

func (f *fakeSessionsRepo) Delete(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	delete(f.rows, sessionID)
	return nil
}

func (f *fakeSessionsRepo) DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return 0, err
	}
	var n int64
	for id, s := range f.rows {
		if s.IsArchived && s.LastActive.Before(cutoff) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

type fakeMessagesRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64][]*models.ChatMessage

	failAll bool

	// onList, when set, runs after ListBySession has taken its snapshot but
	// before returning it, outside the repo lock. Tests use it to interleave
	// other calls at that point.
	onList func(chatSessionID int64)
}

func newFakeMessagesRepo() *fakeMessagesRepo {
	return &fakeMessagesRepo{rows: map[int64][]*models.ChatMessage{}}
}

func (f *fakeMessagesRepo) err() error {
	if f.failAll {
		return errBoom{}
	}
	return nil
}

func (f *fakeMessagesRepo) Append(ctx context.Context, chatSessionID int64, role, content string, index int) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return nil, err
	}
	f.nextID++
	m := &models.ChatMessage{
		ID:            f.nextID,
		ChatSessionID: chatSessionID,
		Role:          role,
		Content:       content,
		Timestamp:     time.Now(),
		MessageIndex:  index,
	}
	f.rows[chatSessionID] = append(f.rows[chatSessionID], m)
	return m, nil
}

func (f *fakeMessagesRepo) ListBySession(ctx context.Context, chatSessionID int64) ([]*models.ChatMessage, error) {
	f.mu.Lock()
	if err := f.err(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	msgs := f.rows[chatSessionID]
	out := make([]*models.ChatMessage, len(msgs))
	copy(out, msgs)
	sort.Slice(out, func(i, j int) bool { return out[i].MessageIndex < out[j].MessageIndex })
	hook := f.onList
	f.mu.Unlock()

	if hook != nil {
		hook(chatSessionID)
	}
	return out, nil
}

func (f *fakeMessagesRepo) DeleteBySession(ctx context.Context, chatSessionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	delete(f.rows, chatSessionID)
	return nil
}

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken

	failAll bool
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) err() error {
	if f.failAll {
		return errBoom{}
	}
	return nil
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID int64, token string, validity time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	f.tokens[token] = &models.RefreshToken{
		UserID:    userID,
		Token:     token,
		Expires:   time.Now().Add(validity),
		CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return nil, err
	}
	t, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	delete(f.tokens, token)
	return nil
}

func (f *fakeRefreshRepo) DeleteByUser(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(); err != nil {
		return err
	}
	for k, t := range f.tokens {
		if t.UserID == userID {
			delete(f.tokens, k)
		}
	}
	return nil
}

type fakeRepoManager struct {
	u  *fakeUsersRepo
	s  *fakeSessionsRepo
	m  *fakeMessagesRepo
	rt *fakeRefreshRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u:  newFakeUsersRepo(),
		s:  newFakeSessionsRepo(),
		m:  newFakeMessagesRepo(),
		rt: newFakeRefreshRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository           { return m.s }
func (m *fakeRepoManager) Messages(db dbx.DBTX) messagesrepo.Repository           { return m.m }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.rt }
