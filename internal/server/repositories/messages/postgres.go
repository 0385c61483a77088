package messages

import (
	"context"
	"fmt"

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

func (r *PostgresRepository) Append(ctx context.Context, chatSessionID int64, role, content string, index int) (*models.ChatMessage, error) {
	query := `
		INSERT INTO chat_messages (chat_session_id, role, content, message_index)
		VALUES ($1, $2, $3, $4)
		RETURNING id, timestamp
	`
	m := &models.ChatMessage{
		ChatSessionID: chatSessionID,
		Role:          role,
		Content:       content,
		MessageIndex:  index,
	}
	err := r.db.QueryRowContext(ctx, query, chatSessionID, role, content, index).
		Scan(&m.ID, &m.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) ListBySession(ctx context.Context, chatSessionID int64) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, chat_session_id, role, content, timestamp, message_index
		FROM chat_messages
		WHERE chat_session_id = $1
		ORDER BY message_index
	`
	rows, err := r.db.QueryContext(ctx, query, chatSessionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ChatMessage
	for rows.Next() {
		m := &models.ChatMessage{}
		if err := rows.Scan(&m.ID, &m.ChatSessionID, &m.Role, &m.Content, &m.Timestamp, &m.MessageIndex); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteBySession(ctx context.Context, chatSessionID int64) error {
	query := `DELETE FROM chat_messages WHERE chat_session_id = $1`
	if _, err := r.db.ExecContext(ctx, query, chatSessionID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
