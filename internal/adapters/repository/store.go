// Package repository persists challenges, attempts and profiles.
package repository

import (
	"context"
	"time"

	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/pkg/metrics"
)

// Store provides read/write access to challenges, attempts and profiles.
type Store interface {
	// ListChallenges returns every challenge ordered by challenge date,
	// undated challenges last.
	ListChallenges(ctx context.Context) ([]model.Challenge, error)
	// GetChallenge returns ErrNotFound for unknown ids.
	GetChallenge(ctx context.Context, id string) (*model.Challenge, error)
	// ChallengeForDate returns the earliest challenge dated date (YYYY-MM-DD)
	// or ErrNotFound.
	ChallengeForDate(ctx context.Context, date string) (*model.Challenge, error)
	// CreateChallenge stores c, assigning ID and CreatedAt when empty.
	// Returns ErrChallengeExists when the id is taken.
	CreateChallenge(ctx context.Context, c *model.Challenge) error
	// ClearChallenges deletes every challenge and its attempts and returns
	// the number of challenges removed.
	ClearChallenges(ctx context.Context) (int, error)

	// InsertAttempt stores a, assigning ID and CreatedAt when empty. Returns
	// ErrAttemptExists when the user already attempted the challenge and
	// ErrNotFound when the challenge does not exist.
	InsertAttempt(ctx context.Context, a *model.Attempt) error
	// GetAttempt returns the user's attempt on a challenge or ErrNotFound.
	GetAttempt(ctx context.Context, userID, challengeID string) (*model.Attempt, error)
	// ListAttemptsByChallenge returns attempts in submission order.
	ListAttemptsByChallenge(ctx context.Context, challengeID string) ([]model.Attempt, error)
	// ListAttemptsByUser returns attempts in submission order.
	ListAttemptsByUser(ctx context.Context, userID string) ([]model.Attempt, error)
	// ListAllAttempts returns every attempt in submission order.
	ListAllAttempts(ctx context.Context) ([]model.Attempt, error)

	// UpsertProfile sets a user's username. Returns ErrUsernameTaken when
	// another user holds it.
	UpsertProfile(ctx context.Context, p model.Profile) error
	// Usernames maps the given user ids to usernames. Users without a
	// profile are absent from the result.
	Usernames(ctx context.Context, userIDs []string) (map[string]string, error)

	Close() error
}

// observe records the latency of a store operation. Use with defer.
func observe(driver, op string, start time.Time) {
	metrics.RecordStoreLatency(driver, op, float64(time.Since(start).Microseconds())/1000)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
