// Package engine abstracts the conversational AI backend. An Engine mints
// Conversation handles; a Conversation carries the model-side chat state
// and exchanges one turn at a time.
package engine

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance of a conversation. The slice form of Turn is also
// the serialized conversation state persisted alongside a chat session, so
// a handle can be rebuilt after a restart.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is a live chat handle. Implementations are not safe for
// concurrent use; callers serialize turns per session.
type Conversation interface {
	// Send submits the user's text and returns the assistant's reply.
	// On error the conversation state is unchanged.
	Send(ctx context.Context, text string) (string, error)
	// History returns the turns exchanged so far, oldest first.
	History() []Turn
}

// Engine creates conversations, optionally primed with prior turns.
type Engine interface {
	NewConversation(history []Turn) Conversation
}
