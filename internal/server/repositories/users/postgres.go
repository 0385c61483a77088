package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aimathteacher/backend/internal/common"
	"github.com/aimathteacher/backend/internal/dbx"
	"github.com/aimathteacher/backend/internal/server/models"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// PostgresRepository implements Repository over dbx.DBTX (satisfied by both
// *sql.DB and *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, COALESCE(email, ''), COALESCE(password_hash, ''), COALESCE(session_token, ''),
	COALESCE(display_name, ''), account_type, is_active, is_verified, preferences,
	COALESCE(reset_token, ''), COALESCE(reset_token_expires, 'epoch'::timestamptz),
	COALESCE(verification_token, ''), COALESCE(verification_token_expires, 'epoch'::timestamptz),
	created_at, last_active, COALESCE(last_login, 'epoch'::timestamptz)`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var prefs []byte
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.SessionToken,
		&u.DisplayName, &u.AccountType, &u.IsActive, &u.IsVerified, &prefs,
		&u.ResetToken, &u.ResetTokenExpires,
		&u.VerificationToken, &u.VerificationTokenExpires,
		&u.CreatedAt, &u.LastActive, &u.LastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return nil, fmt.Errorf("preferences decode error: %w", err)
		}
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	prefs, err := json.Marshal(orEmpty(user.Preferences))
	if err != nil {
		return nil, fmt.Errorf("preferences encode error: %w", err)
	}

	query := `
		INSERT INTO users (email, password_hash, session_token, display_name, account_type, is_active, preferences)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6, $7)
		RETURNING id, created_at, last_active
	`
	err = r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.SessionToken, user.DisplayName,
		user.AccountType, user.IsActive, prefs).
		Scan(&user.ID, &user.CreatedAt, &user.LastActive)
	if err != nil {
		// Two concurrent registrations can both pass the duplicate pre-check;
		// the unique index on email decides the loser here.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrorDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetBySessionToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE session_token = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, token))
}

func (r *PostgresRepository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token = $1 AND reset_token_expires > now()`
	return scanUser(r.db.QueryRowContext(ctx, query, token))
}

func (r *PostgresRepository) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE verification_token = $1 AND verification_token_expires > now()`
	return scanUser(r.db.QueryRowContext(ctx, query, token))
}

func (r *PostgresRepository) Promote(ctx context.Context, id int64, email, passwordHash, displayName string) error {
	query := `
		UPDATE users
		SET email = lower($2), password_hash = $3, display_name = COALESCE(NULLIF($4, ''), display_name),
		    account_type = 'registered', last_active = now()
		WHERE id = $1 AND account_type = 'anonymous'
	`
	res, err := r.db.ExecContext(ctx, query, id, email, passwordHash, displayName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	query := `UPDATE users SET reset_token = $2, reset_token_expires = $3, last_active = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, token, expires); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetVerificationToken(ctx context.Context, id int64, token string, expires time.Time) error {
	query := `UPDATE users SET verification_token = $2, verification_token_expires = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, token, expires); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, reset_token = NULL, reset_token_expires = NULL, last_active = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL, verification_token_expires = NULL
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id int64, displayName string, prefs map[string]any) error {
	encoded, err := json.Marshal(orEmpty(prefs))
	if err != nil {
		return fmt.Errorf("preferences encode error: %w", err)
	}

	// jsonb || merges top-level keys, which gives the merge-not-replace
	// semantics for preferences.
	query := `
		UPDATE users
		SET display_name = COALESCE(NULLIF($2, ''), display_name),
		    preferences = preferences || $3,
		    last_active = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, displayName, encoded); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TouchLastActive(ctx context.Context, id int64) error {
	query := `UPDATE users SET last_active = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetLastLogin(ctx context.Context, id int64) error {
	query := `UPDATE users SET last_login = now(), last_active = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE users SET is_active = FALSE, last_active = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM users WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
