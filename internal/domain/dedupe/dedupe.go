// Package dedupe guards against concurrent duplicate submissions.
//
// A user may hold at most one attempt per challenge. Storage enforces that
// with a unique constraint; the guard rejects a second request for the same
// pair while the first is still being processed, so the slower request fails
// fast instead of racing the insert.
package dedupe

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
)

var (
	// ErrInFlight is returned when the key is already held.
	ErrInFlight = errors.New("submission already in flight")
	// ErrCapacity is returned when the guard is full.
	ErrCapacity = errors.New("too many submissions in flight")
)

// Guard tracks keys that are currently being processed.
type Guard interface {
	// Acquire marks key as in flight. It fails with ErrInFlight when the key
	// is already held and with ErrCapacity when the guard is full.
	Acquire(ctx context.Context, key string) error

	// Release frees key. Releasing a key that is not held is a no-op.
	Release(ctx context.Context, key string)

	Size() int64
}

// SubmissionKey builds the guard key for a user's attempt on a challenge.
// The user id is length-prefixed so distinct pairs never share a key.
func SubmissionKey(userID, challengeID string) string {
	return strconv.Itoa(len(userID)) + ":" + userID + "|" + challengeID
}

// inFlightGuard is a mutex-protected set. For maxSize > 0 Acquire refuses new
// keys once maxSize are held; for maxSize <= 0 it is unbounded.
type inFlightGuard struct {
	mu      sync.Mutex
	held    map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInFlightGuard creates a guard with configuration options.
func NewInFlightGuard(opts ...Option) Guard {
	g := &inFlightGuard{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.held = make(map[string]struct{})
	return g
}

func (g *inFlightGuard) Acquire(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.held[key]; exists {
		return ErrInFlight
	}
	if g.maxSize > 0 && len(g.held) >= g.maxSize {
		return ErrCapacity
	}
	g.held[key] = struct{}{}
	g.size.Add(1)
	return nil
}

func (g *inFlightGuard) Release(ctx context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.held[key]; exists {
		delete(g.held, key)
		g.size.Add(-1)
	}
}

// Size returns the number of keys currently held.
func (g *inFlightGuard) Size() int64 {
	return g.size.Load()
}
