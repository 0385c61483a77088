// Package identity defines the resolved-caller identity that crosses
// component boundaries. It is a tagged variant rather than a dynamic
// account-type string so the ownership guard's differing comparison rules
// (token equality for anonymous callers, id equality for registered ones)
// are a compile-time-checked branch.
package identity

// Identity is a resolved caller identity. A nil Identity means the caller
// could not be resolved and must be treated as having no access.
type Identity interface {
	// UserID returns the durable user id behind this identity.
	UserID() int64

	// sealed prevents implementations outside this package, keeping the
	// guard's type switch exhaustive.
	sealed()
}

// Anonymous identifies a caller by its opaque legacy session token. Two
// anonymous identities are the same caller only if their tokens are equal.
type Anonymous struct {
	ID    int64
	Token string
}

func (a Anonymous) UserID() int64 { return a.ID }
func (Anonymous) sealed()         {}

// Registered identifies a signed-in caller by durable user id.
type Registered struct {
	ID      int64
	Email   string
	Premium bool
}

func (r Registered) UserID() int64 { return r.ID }
func (Registered) sealed()         {}
