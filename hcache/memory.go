package hcache

import (
	"sync"
	"time"

	"github.com/LarsHaalck/neomutt/mailbox"
)

// Memory is an in-process Cache. It is safe for use by multiple mailboxes
// sharing one cache.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	msg      *mailbox.Message
	storedAt time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Fetch implements Cache.
func (c *Memory) Fetch(key string) (*mailbox.Message, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, time.Time{}, false
	}
	return clone(e.msg), e.storedAt, true
}

// Store implements Cache.
func (c *Memory) Store(key string, msg *mailbox.Message, storedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{msg: clone(msg), storedAt: storedAt}
	return nil
}

// Delete implements Cache.
func (c *Memory) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Close implements Cache.
func (c *Memory) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]memoryEntry)
	return nil
}

// Len returns the number of cached records.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var _ Cache = (*Memory)(nil)
