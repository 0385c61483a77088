package models

import "time"

// RefreshToken is a row in the refresh_tokens table.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
