// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account types stored in users.account_type.
const (
	AccountAnonymous  = "anonymous"
	AccountRegistered = "registered"
	AccountPremium    = "premium"
)

// User is a row in the users table. Anonymous users carry only a
// SessionToken; registered users additionally carry Email and PasswordHash.
// Promotion from anonymous to registered happens in place: the ID and
// SessionToken are preserved.
type User struct {
	ID           int64
	Email        string // empty for anonymous accounts
	PasswordHash string // empty for anonymous accounts
	DisplayName  string

	// SessionToken is the legacy opaque credential. For anonymous accounts
	// it is the only credential; for registered accounts it is kept for
	// backward compatibility.
	SessionToken string

	AccountType string
	IsActive    bool
	IsVerified  bool

	Preferences map[string]any

	ResetToken               string
	ResetTokenExpires        time.Time
	VerificationToken        string
	VerificationTokenExpires time.Time

	CreatedAt  time.Time
	LastActive time.Time
	LastLogin  time.Time
}

// IsAnonymous reports whether the account has not been promoted yet.
func (u *User) IsAnonymous() bool {
	return u.AccountType == AccountAnonymous
}
