package models

import "time"

// ChatSession is a row in the chat_sessions table. SessionID is the opaque
// public identifier; UserID is the owning user and never changes after
// creation.
type ChatSession struct {
	ID        int64
	SessionID string
	UserID    int64

	Title        string
	MessageCount int
	IsArchived   bool

	// AIContext is an opaque serialized conversation-engine state blob,
	// written after every turn and read back on restoration.
	AIContext []byte

	CreatedAt  time.Time
	LastActive time.Time
	ArchivedAt time.Time
}
