// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aimathteacher/backend/internal/engine"
)

// Fake is an engine whose conversations echo scripted replies. When Reply
// is nil, each turn answers "reply N" with a per-conversation counter.
type Fake struct {
	mu sync.Mutex

	// Reply, when set, computes the assistant response for a user text.
	Reply func(text string) (string, error)

	// Err, when set, fails every Send.
	Err error

	conversations int
}

// NewConversation implements engine.Engine.
func (f *Fake) NewConversation(history []engine.Turn) engine.Conversation {
	f.mu.Lock()
	f.conversations++
	f.mu.Unlock()

	turns := make([]engine.Turn, len(history))
	copy(turns, history)
	return &fakeConversation{fake: f, turns: turns}
}

// Conversations reports how many handles were minted.
func (f *Fake) Conversations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations
}

type fakeConversation struct {
	mu    sync.Mutex
	fake  *Fake
	turns []engine.Turn
	n     int
}

func (c *fakeConversation) Send(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fake.Err != nil {
		return "", c.fake.Err
	}

	var reply string
	if c.fake.Reply != nil {
		r, err := c.fake.Reply(text)
		if err != nil {
			return "", err
		}
		reply = r
	} else {
		reply = fmt.Sprintf("reply %d", c.n)
	}
	c.n++

	c.turns = append(c.turns,
		engine.Turn{Role: engine.RoleUser, Content: text},
		engine.Turn{Role: engine.RoleAssistant, Content: reply},
	)
	return reply, nil
}

func (c *fakeConversation) History() []engine.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]engine.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}
