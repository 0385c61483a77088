// Package services contains server-side business logic. This file implements
// AuthService, which owns credentials and identity resolution: anonymous
// session tokens, registration (including in-place promotion of anonymous
// accounts), login, and issuing/refreshing JWTs plus server-stored refresh
// tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aimathteacher/backend/internal/common"
	"github.com/aimathteacher/backend/internal/dbx"
	"github.com/aimathteacher/backend/internal/logging"
	"github.com/aimathteacher/backend/internal/server/auth"
	"github.com/aimathteacher/backend/internal/server/config"
	"github.com/aimathteacher/backend/internal/server/identity"
	"github.com/aimathteacher/backend/internal/server/models"
	"github.com/aimathteacher/backend/internal/server/repositories/repomanager"
)

const (
	resetTokenValidity        = 1 * time.Hour
	verificationTokenValidity = 24 * time.Hour
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService provides authentication-related operations:
// - GetOrCreateAnonymous: resolve or mint anonymous accounts
// - Register / Login: create registered users and verify credentials
// - Refresh: rotate refresh tokens and mint new access tokens
// - ResolveIdentity: turn request credentials into an identity
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	log                          logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		log:                          log.With("service", "auth"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// identityFor builds the caller identity for a user row. Anonymous accounts
// are identified by their session token, registered ones by durable id.
func identityFor(user *models.User) identity.Identity {
	if user.IsAnonymous() {
		return identity.Anonymous{ID: user.ID, Token: user.SessionToken}
	}
	return identity.Registered{
		ID:      user.ID,
		Email:   user.Email,
		Premium: user.AccountType == models.AccountPremium,
	}
}

// ResolveBearer resolves an access JWT into an identity. Any parse failure,
// wrong token type, unknown user, or deactivated account yields nil: an
// unresolvable bearer is an unresolved caller, not an error.
func (s *AuthService) ResolveBearer(ctx context.Context, tokenString string) identity.Identity {
	claims, err := auth.ParseToken(tokenString, s.jwtSecret)
	if err != nil || claims.TokenType != auth.TokenTypeAccess {
		return nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil || !user.IsActive {
		return nil
	}

	if err := repo.TouchLastActive(ctx, user.ID); err != nil {
		s.log.Warn(ctx, "touch last_active failed", "user_id", user.ID, "error", err)
	}
	return identityFor(user)
}

// ResolveLegacyToken resolves an opaque session token into an identity by
// exact lookup. It never creates a user: an unknown or inactive token is an
// unresolved caller.
func (s *AuthService) ResolveLegacyToken(ctx context.Context, token string) identity.Identity {
	if token == "" {
		return nil
	}
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetBySessionToken(ctx, token)
	if err != nil || !user.IsActive {
		return nil
	}
	return identityFor(user)
}

// ResolveIdentity resolves request credentials: a valid bearer token wins,
// then the legacy session token, otherwise the caller stays unresolved.
func (s *AuthService) ResolveIdentity(ctx context.Context, bearer, legacy string) identity.Identity {
	if bearer != "" {
		if id := s.ResolveBearer(ctx, bearer); id != nil {
			return id
		}
	}
	return s.ResolveLegacyToken(ctx, legacy)
}

// GetOrCreateAnonymous resolves a legacy session token to its anonymous
// user, or mints a brand-new anonymous user when the token is empty,
// unknown, or deactivated. It never reuses some other stored anonymous row:
// a miss always produces a fresh user with a fresh token.
func (s *AuthService) GetOrCreateAnonymous(ctx context.Context, token string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	if token != "" {
		user, err := repo.GetBySessionToken(ctx, token)
		if err == nil && user.IsActive {
			if err := repo.TouchLastActive(ctx, user.ID); err != nil {
				s.log.Warn(ctx, "touch last_active failed", "user_id", user.ID, "error", err)
			}
			return user, nil
		}
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorInternal
		}
	}

	user, err := repo.Create(ctx, &models.User{
		SessionToken: uuid.NewString(),
		AccountType:  models.AccountAnonymous,
		IsActive:     true,
	})
	if err != nil {
		return nil, common.ErrorInternal
	}
	s.log.Info(ctx, "created anonymous user", "user_id", user.ID)
	return user, nil
}

// Register creates a registered user and mints a token pair. When
// legacyToken identifies an existing anonymous account, that account is
// promoted in place, preserving its id, session token, and chat sessions.
func (s *AuthService) Register(ctx context.Context, email, password, displayName, legacyToken string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := auth.ValidatePassword(password); err != nil {
		return nil, nil, err
	}

	repo := s.repomanager.Users(s.db)

	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, nil, common.ErrorDuplicateEmail
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, nil, common.ErrorInternal
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}
	if displayName == "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			displayName = email[:at]
		}
	}

	// Promotion path: the anonymous account keeps its id and session token,
	// so its existing chat sessions stay attached.
	if legacyToken != "" {
		anon, err := repo.GetBySessionToken(ctx, legacyToken)
		if err == nil && anon.IsAnonymous() && anon.IsActive {
			if err := repo.Promote(ctx, anon.ID, email, hash, displayName); err != nil {
				return nil, nil, common.ErrorInternal
			}
			user, err := repo.GetByID(ctx, anon.ID)
			if err != nil {
				return nil, nil, common.ErrorInternal
			}
			pair, err := s.finishSignIn(ctx, user)
			if err != nil {
				return nil, nil, err
			}
			s.log.Info(ctx, "promoted anonymous user", "user_id", user.ID)
			return user, pair, nil
		}
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorInternal
		}
	}

	user, err := repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		SessionToken: uuid.NewString(),
		AccountType:  models.AccountRegistered,
		IsActive:     true,
		Preferences: map[string]any{
			"theme":              "dark",
			"auto_save_interval": 30,
		},
	})
	if err != nil {
		// The unique index catches the race where another registration for
		// the same email commits between the pre-check and this insert.
		if errors.Is(err, common.ErrorDuplicateEmail) {
			return nil, nil, common.ErrorDuplicateEmail
		}
		return nil, nil, common.ErrorInternal
	}

	pair, err := s.finishSignIn(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info(ctx, "registered new user", "user_id", user.ID)
	return user, pair, nil
}

// Login verifies the credentials and, on success, returns the user and a new
// token pair. Unknown email and wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Equalize timing with the stored-hash path.
			auth.CheckPassword(enumerationDummyHash, password)
			return nil, nil, common.ErrorInvalidCredentials
		}
		return nil, nil, common.ErrorInternal
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, nil, common.ErrorInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, common.ErrorAccountInactive
	}

	pair, err := s.finishSignIn(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh validates a refresh token, rotates it transactionally, and returns
// a fresh TokenPair. A token absent from storage was already rotated or
// revoked and is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := auth.ParseToken(refreshToken, s.jwtSecret)
	if err != nil || claims.TokenType != auth.TokenTypeRefresh {
		return nil, common.ErrInvalidToken
	}

	repo := s.repomanager.RefreshTokens(s.db)
	stored, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrorInternal
	}
	if stored.Expires.Before(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if !user.IsActive {
		return nil, common.ErrorAccountInactive
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %v", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes a refresh token. Revoking an unknown token succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// RequestPasswordReset stores a fresh single-use reset token for the
// account. It reports success whether or not the email is known, so the
// endpoint cannot be used to probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return common.ErrorInternal
	}

	token := uuid.NewString()
	if err := repo.SetResetToken(ctx, user.ID, token, time.Now().Add(resetTokenValidity)); err != nil {
		return common.ErrorInternal
	}

	// TODO: deliver the token by email once a mailer is wired up.
	s.log.Info(ctx, "password reset requested", "user_id", user.ID)
	return nil
}

// ConfirmPasswordReset sets a new password for the account holding the
// reset token. The token is single-use: the update clears it.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrResetTokenInvalid
		}
		return common.ErrorInternal
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return common.ErrorInternal
	}
	if err := repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return common.ErrorInternal
	}

	// Force re-authentication everywhere after a reset.
	if err := s.repomanager.RefreshTokens(s.db).DeleteByUser(ctx, user.ID); err != nil {
		s.log.Warn(ctx, "revoking refresh tokens failed", "user_id", user.ID, "error", err)
	}
	s.log.Info(ctx, "password reset completed", "user_id", user.ID)
	return nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return common.ErrorInternal
	}
	if !auth.CheckPassword(user.PasswordHash, current) {
		return common.ErrorInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return common.ErrorInternal
	}
	if err := repo.UpdatePassword(ctx, userID, hash); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// Profile returns the user record.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// UpdateProfile updates the display name and merges preferences key-wise,
// returning the refreshed record.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, displayName string, prefs map[string]any) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	if err := repo.UpdateProfile(ctx, userID, displayName, prefs); err != nil {
		return nil, common.ErrorInternal
	}
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return user, nil
}

// Deactivate disables the account and revokes its refresh tokens. Session
// data is kept.
func (s *AuthService) Deactivate(ctx context.Context, userID int64) error {
	if err := s.repomanager.Users(s.db).Deactivate(ctx, userID); err != nil {
		return common.ErrorInternal
	}
	if err := s.repomanager.RefreshTokens(s.db).DeleteByUser(ctx, userID); err != nil {
		s.log.Warn(ctx, "revoking refresh tokens failed", "user_id", userID, "error", err)
	}
	s.log.Info(ctx, "account deactivated", "user_id", userID)
	return nil
}

// DeleteAccount removes the user permanently; sessions, messages, and
// refresh tokens are removed by the schema's cascade rules.
func (s *AuthService) DeleteAccount(ctx context.Context, userID int64) error {
	if err := s.repomanager.Users(s.db).Delete(ctx, userID); err != nil {
		return common.ErrorInternal
	}
	s.log.Info(ctx, "account deleted", "user_id", userID)
	return nil
}

// RequestEmailVerification stores a fresh verification token for the user.
func (s *AuthService) RequestEmailVerification(ctx context.Context, userID int64) error {
	token := uuid.NewString()
	expires := time.Now().Add(verificationTokenValidity)
	if err := s.repomanager.Users(s.db).SetVerificationToken(ctx, userID, token, expires); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// VerifyEmail marks the account holding the token as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return common.ErrorInternal
	}
	if err := repo.MarkVerified(ctx, user.ID); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// --- helpers below ---

// enumerationDummyHash is a bcrypt hash of an unguessable throwaway value,
// compared against on unknown-email logins so both failure paths cost a
// bcrypt verification.
const enumerationDummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func (s *AuthService) finishSignIn(ctx context.Context, user *models.User) (*TokenPair, error) {
	repo := s.repomanager.Users(s.db)
	if err := repo.SetLastLogin(ctx, user.ID); err != nil {
		s.log.Warn(ctx, "set last_login failed", "user_id", user.ID, "error", err)
	}
	return s.generateTokenPair(ctx, user, s.db)
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *models.User, tx dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateAccessToken(user.ID, user.Email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := auth.GenerateRefreshToken(user.ID, s.jwtSecret, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, user.ID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
