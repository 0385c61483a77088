// Package sessioncache holds the volatile in-process session state. The
// store is an injected service constructed once at startup, not a package
// global, so tests get isolated instances and the implementation can later
// be swapped for a distributed cache.
package sessioncache

import (
	"sync"
	"time"

	"github.com/aimathteacher/backend/internal/engine"
	"github.com/aimathteacher/backend/internal/server/models"
)

// Entry is the live state of one chat session. OwnerID and OwnerToken are
// fixed at insertion; the ownership guard compares against them without
// touching durable storage.
//
// Mu serializes message appends and conversation-state updates for the
// session: callers must hold it across a read-modify-write of Messages or
// Conversation so concurrent turns cannot interleave indexes.
type Entry struct {
	Mu sync.Mutex

	SessionID  string
	OwnerID    int64
	OwnerToken string // legacy token of the owner; empty for registered owners

	// DurableID is the chat_sessions row id backing this entry, or 0 when
	// the durable mirror could not be written.
	DurableID int64

	Conversation engine.Conversation
	Messages     []*models.ChatMessage

	CreatedAt  time.Time
	LastActive time.Time
}

// NextIndex returns the next message index for the cached transcript.
// Callers must hold Mu.
func (e *Entry) NextIndex() int {
	if n := len(e.Messages); n > 0 {
		return e.Messages[n-1].MessageIndex + 1
	}
	return 0
}

// Cache is a concurrency-safe map of live sessions keyed by session id.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Get returns the entry for sessionID, or nil if the session is not live.
func (c *Cache) Get(sessionID string) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[sessionID]
}

// Put inserts or replaces the entry for its session id.
func (c *Cache) Put(entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.SessionID] = entry
}

// GetOrPut inserts entry unless its session is already live, in which case
// the existing entry is returned untouched. The boolean reports whether
// entry was inserted. Restoration goes through here so two callers racing
// to rehydrate the same session converge on a single entry instead of one
// replacing the other mid-turn.
func (c *Cache) GetOrPut(entry *Entry) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[entry.SessionID]; ok {
		return existing, false
	}
	c.entries[entry.SessionID] = entry
	return entry, true
}

// Delete drops the entry for sessionID if present.
func (c *Cache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

// Len reports the number of live sessions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Range calls fn for every live entry until fn returns false. The cache
// lock is held for the duration; fn must not call back into the cache.
func (c *Cache) Range(fn func(entry *Entry) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if !fn(e) {
			return
		}
	}
}
