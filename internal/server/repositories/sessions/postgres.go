package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aimathteacher/backend/internal/common"
	"github.com/aimathteacher/backend/internal/dbx"
	"github.com/aimathteacher/backend/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, session_id, user_id, title, message_count, is_archived, ai_context,
	created_at, last_active, COALESCE(archived_at, 'epoch'::timestamptz)`

func (r *PostgresRepository) Create(ctx context.Context, session *models.ChatSession) (*models.ChatSession, error) {
	query := `
		INSERT INTO chat_sessions (session_id, user_id, title, ai_context)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, last_active
	`
	err := r.db.QueryRowContext(ctx, query, session.SessionID, session.UserID, session.Title, session.AIContext).
		Scan(&session.ID, &session.CreatedAt, &session.LastActive)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

func (r *PostgresRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE session_id = $1`

	s := &models.ChatSession{}
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&s.ID, &s.SessionID, &s.UserID, &s.Title, &s.MessageCount, &s.IsArchived, &s.AIContext,
		&s.CreatedAt, &s.LastActive, &s.ArchivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64, includeArchived bool, limit int) ([]*models.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE user_id = $1`
	if !includeArchived {
		query += ` AND is_archived = FALSE`
	}
	query += ` ORDER BY last_active DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ChatSession
	for rows.Next() {
		s := &models.ChatSession{}
		if err := rows.Scan(&s.ID, &s.SessionID, &s.UserID, &s.Title, &s.MessageCount, &s.IsArchived, &s.AIContext,
			&s.CreatedAt, &s.LastActive, &s.ArchivedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) SetTitle(ctx context.Context, sessionID, title string) error {
	query := `UPDATE chat_sessions SET title = $2, last_active = now() WHERE session_id = $1`
	return r.exec(ctx, query, sessionID, title)
}

func (r *PostgresRepository) Archive(ctx context.Context, sessionID string) error {
	query := `UPDATE chat_sessions SET is_archived = TRUE, archived_at = now(), last_active = now() WHERE session_id = $1`
	return r.exec(ctx, query, sessionID)
}

func (r *PostgresRepository) TouchLastActive(ctx context.Context, sessionID string) error {
	query := `UPDATE chat_sessions SET last_active = now() WHERE session_id = $1`
	return r.exec(ctx, query, sessionID)
}

func (r *PostgresRepository) SetMessageCount(ctx context.Context, sessionID string, count int) error {
	query := `UPDATE chat_sessions SET message_count = $2, last_active = now() WHERE session_id = $1`
	return r.exec(ctx, query, sessionID, count)
}

func (r *PostgresRepository) SetAIContext(ctx context.Context, sessionID string, blob []byte) error {
	query := `UPDATE chat_sessions SET ai_context = $2, last_active = now() WHERE session_id = $1`
	return r.exec(ctx, query, sessionID, blob)
}

func (r *PostgresRepository) Delete(ctx context.Context, sessionID string) error {
	query := `DELETE FROM chat_sessions WHERE session_id = $1`
	return r.exec(ctx, query, sessionID)
}

func (r *PostgresRepository) DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM chat_sessions WHERE is_archived = TRUE AND last_active < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
