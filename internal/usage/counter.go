// Package usage tracks how often each upstream source actually served a request.
//
// Counter is the in-process ledger: one monotonically increasing count per
// source name, safe for concurrent use and lost on restart. Durable history is
// attached separately through Store (SQLite) and shipped off-node by Syncer.
package usage

import "sync"

// Counter is a thread-safe named-counter store.
type Counter struct {
	mu     sync.RWMutex
	counts map[string]int64
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int64)}
}

// Increment adds 1 to the count for name, creating the entry if needed.
func (c *Counter) Increment(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
}

// Get returns the current count for name, or 0 if it was never incremented.
func (c *Counter) Get(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[name]
}

// GetAll returns a copy of every entry at call time.
func (c *Counter) GetAll() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]int64, len(c.counts))
	for name, n := range c.counts {
		out[name] = n
	}
	return out
}

// Reset sets every existing entry back to zero. Keys are kept so GetAll still
// reports them.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.counts {
		c.counts[name] = 0
	}
}
