package agent

import "sync"

// chatLocks serializes response cycles per chat so two concurrent
// messages for the same chat cannot interleave their history writes.
// Locks are never removed; the map grows with the number of distinct
// chats, which is bounded in practice.
type chatLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[string]*sync.Mutex)}
}

func (c *chatLocks) lock(chatID string) *sync.Mutex {
	c.mu.Lock()
	m, ok := c.locks[chatID]
	if !ok {
		m = &sync.Mutex{}
		c.locks[chatID] = m
	}
	c.mu.Unlock()

	m.Lock()
	return m
}
