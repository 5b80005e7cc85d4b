package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/dugout/internal/domain/standings"
	"github.com/okian/dugout/pkg/logger"
)

type result struct {
	sub       Submission
	first     outcome
	duplicate outcome
	err       error
}

// Run executes a complete load test against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	start := time.Now()
	client := NewClient(cfg)

	log.Info(ctx, "starting load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("workers", cfg.Workers),
		logger.Bool("duplicates", cfg.Duplicates))

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return Stats{}, err
	}

	// Step 2: Fetch the challenge and generate picks
	detail, err := client.Challenge(ctx, cfg.ChallengeID)
	if err != nil {
		return Stats{}, fmt.Errorf("challenge lookup failed: %w", err)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	subs := generate(cfg, detail, rand.New(rand.NewPCG(seed, seed>>1)))
	log.Info(ctx, "generated submissions",
		logger.String("challenge_id", detail.ID), logger.Int("count", len(subs)))

	// Step 3: Submit concurrently
	results := submitAll(ctx, cfg, client, detail.ID, subs)
	stats := Stats{ChallengeID: detail.ID}
	expected := make(map[string]float64, len(subs))
	var errs []error
	for _, r := range results {
		stats.Submitted++
		switch r.first {
		case outcomeAccepted:
			stats.Accepted++
			expected[r.sub.UserID] = r.sub.Score
		case outcomeDuplicate:
			stats.Duplicates++
		default:
			stats.Failed++
		}
		if r.err != nil {
			errs = append(errs, r.err)
		}
		if cfg.Duplicates && r.first == outcomeAccepted {
			stats.Submitted++
			if r.duplicate == outcomeDuplicate {
				stats.Duplicates++
			} else {
				errs = append(errs, fmt.Errorf("%w: resubmission by %s was not refused", ErrMismatch, r.sub.UserID))
			}
		}
	}
	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("failed", stats.Failed))

	// Step 4: Wait for the leaderboard and verify it
	rows, err := awaitLeaderboard(ctx, cfg, client, detail.ID, expected)
	if err != nil {
		errs = append(errs, err)
	}
	stats.Entries = len(rows)
	if len(rows) > 0 {
		stats.TopUser, stats.TopScore = rows[0].UserID, rows[0].Score
	}
	if err := verify(rows, expected); err != nil {
		errs = append(errs, err)
	}

	stats.Duration = time.Since(start)
	if len(errs) > 0 {
		log.Warn(ctx, "load test finished with errors", logger.Int("errors", len(errs)))
		return stats, errors.Join(errs...)
	}
	log.Info(ctx, "load test completed", logger.Duration("duration", stats.Duration))
	return stats, nil
}

// submitAll posts subs from cfg.Workers goroutines.
func submitAll(ctx context.Context, cfg *Config, client *Client, challengeID string, subs []Submission) []result {
	results := make([]result, len(subs))
	jobs := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup

	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				r := result{sub: subs[i]}
				r.first, r.err = client.submit(ctx, challengeID, r.sub)
				if cfg.Duplicates && r.first == outcomeAccepted {
					r.duplicate, _ = client.submit(ctx, challengeID, r.sub)
				}
				results[i] = r
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range subs {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	wg.Wait()
	return results
}

// awaitLeaderboard polls until every accepted user is ranked or the settle
// window closes. The last standings read are returned either way.
func awaitLeaderboard(ctx context.Context, cfg *Config, client *Client, challengeID string, expected map[string]float64) ([]standings.ChallengeStanding, error) {
	deadline := time.Now().Add(cfg.Settle)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		rows, err := client.Leaderboard(ctx, challengeID)
		if err != nil {
			return nil, fmt.Errorf("leaderboard retrieval failed: %w", err)
		}
		if containsAll(rows, expected) || time.Now().After(deadline) {
			return rows, nil
		}
		select {
		case <-ctx.Done():
			return rows, ctx.Err()
		case <-ticker.C:
		}
	}
}

func containsAll(rows []standings.ChallengeStanding, expected map[string]float64) bool {
	seen := 0
	for _, r := range rows {
		if _, ok := expected[r.UserID]; ok {
			seen++
		}
	}
	return seen == len(expected)
}
