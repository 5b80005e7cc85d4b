package loadtest

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/dugout/internal/domain/standings"
)

const scoreTolerance = 1e-9

// verify checks that rows are ranked 1..n by non-increasing score and that
// every user in expected appears once with the score computed locally.
func verify(rows []standings.ChallengeStanding, expected map[string]float64) error {
	var errs []error
	found := make(map[string]int, len(expected))

	for i, r := range rows {
		if r.Rank != i+1 {
			errs = append(errs, fmt.Errorf("row %d has rank %d", i, r.Rank))
		}
		if i > 0 && r.Score > rows[i-1].Score {
			errs = append(errs, fmt.Errorf("row %d scores %.3f above row %d (%.3f)", i, r.Score, i-1, rows[i-1].Score))
		}
		want, ok := expected[r.UserID]
		if !ok {
			continue
		}
		found[r.UserID]++
		if math.Abs(want-r.Score) > scoreTolerance {
			errs = append(errs, fmt.Errorf("user %s scored %.3f, want %.3f", r.UserID, r.Score, want))
		}
	}
	for user := range expected {
		switch found[user] {
		case 1:
		case 0:
			errs = append(errs, fmt.Errorf("user %s missing from leaderboard", user))
		default:
			errs = append(errs, fmt.Errorf("user %s ranked %d times", user, found[user]))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrMismatch, errors.Join(errs...))
	}
	return nil
}
