// Package logging defines the structured logger interface the services are
// written against, with slog and zap implementations behind it.
package logging

import "context"

// Logger is a leveled, context-aware structured logger. Variadic args are
// alternating key-value pairs:
//
//	log.Warn(ctx, "durable session update failed", "session_id", id, "error", err)
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a derived logger that attaches the given key-value pairs
	// to every record. Services use it to tag their name once at construction.
	With(args ...any) Logger
}
