package cache

import (
	"context"
	"fmt"
	"time"
)

// DefaultTTL is how long fetched market data stays fresh.
const DefaultTTL = 60 * time.Second

// Request kinds used in cache keys.
const (
	KindLive    = "live"
	KindHistory = "hist"
)

// Key identifies a memoized upstream request.
type Key struct {
	Symbol string
	Kind   string
	Params string
}

func (k Key) String() string {
	if k.Params == "" {
		return fmt.Sprintf("%s:%s", k.Symbol, k.Kind)
	}
	return fmt.Sprintf("%s:%s:%s", k.Symbol, k.Kind, k.Params)
}

// Store is a keyed byte cache with a fixed TTL.
// A Get is a hit only while the entry is younger than the TTL.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Put(ctx context.Context, key Key, value []byte) error
}

// Clock returns the current time.
type Clock func() time.Time
