// Package cache stores serialized leaderboards between refreshes.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/dugout/pkg/metrics"
)

// ErrCacheUnavailable wraps backend failures.
var ErrCacheUnavailable = errors.New("leaderboard cache unavailable")

// GlobalKey names the cached global leaderboard.
const GlobalKey = "leaderboard:global"

// ChallengeKey names the cached standings of one challenge.
func ChallengeKey(challengeID string) string {
	return "leaderboard:challenge:" + challengeID
}

// LeaderboardCache holds serialized leaderboards.
type LeaderboardCache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context, keys ...string) error
	Close() error
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, bool, error) {
	metrics.RecordCacheMiss()
	return nil, false, nil
}
func (NopCache) Set(context.Context, string, []byte) error   { return nil }
func (NopCache) Invalidate(context.Context, ...string) error { return nil }
func (NopCache) Close() error                                 { return nil }

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is a process-local LeaderboardCache with a TTL.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache. A ttl <= 0 keeps entries until
// invalidated.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		metrics.RecordCacheMiss()
		return nil, false, nil
	}
	metrics.RecordCacheHit()
	return append([]byte(nil), e.value...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{value: append([]byte(nil), value...)}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *MemoryCache) Close() error { return nil }
