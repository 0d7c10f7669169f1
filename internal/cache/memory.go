package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	fetchedAt time.Time
}

// Memory is an in-process Store. Expired entries are ignored on read, not purged.
type Memory struct {
	mu  sync.RWMutex
	m   map[string]entry
	ttl time.Duration
	now Clock
}

// NewMemory creates a Memory store. A nil clock uses time.Now.
func NewMemory(ttl time.Duration, now Clock) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{m: make(map[string]entry), ttl: ttl, now: now}
}

func (c *Memory) Get(_ context.Context, key Key) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key.String()]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *Memory) Put(_ context.Context, key Key, value []byte) error {
	c.mu.Lock()
	c.m[key.String()] = entry{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
