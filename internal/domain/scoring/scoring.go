// Package scoring evaluates pick sets against a challenge's player pool.
//
// Every function here is pure: inputs are never mutated and no state is kept
// between calls, so they are safe for concurrent use.
package scoring

import (
	"fmt"
	"math"
	"slices"

	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/internal/domain/stat"
)

const percent = 100

// Baseline holds the reference scores for a challenge.
type Baseline struct {
	Key       stat.Key `json:"stat_key"`
	StatLabel string   `json:"stat_label"`
	PickLimit int      `json:"pick_limit"`
	Best      float64  `json:"best_possible_score"`
	Expected  float64  `json:"expected_random_score"`
}

// Performance compares an achieved score with a baseline. The percentages are
// nil when their denominator is zero.
type Performance struct {
	Achieved        float64  `json:"score"`
	Best            float64  `json:"best_possible_score"`
	Expected        float64  `json:"expected_random_score"`
	PercentOfBest   *float64 `json:"percent_of_best"`
	PercentVsRandom *float64 `json:"percent_vs_random"`
}

func checkKey(key stat.Key) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatKey, key)
	}
	return nil
}

func finite(p model.Player, key stat.Key) (float64, error) {
	v := p.Stat(string(key))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: player %q has %s=%v", ErrMalformedStats, p.ID, key, v)
	}
	return v, nil
}

// AchievedScore sums key over picks. The pick count is not checked.
func AchievedScore(picks []model.Player, key stat.Key) (float64, error) {
	if err := checkKey(key); err != nil {
		return 0, err
	}
	var total float64
	for _, p := range picks {
		v, err := finite(p, key)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

// SumPicks returns the score of an already denormalized pick set.
func SumPicks(entries []model.PickEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.StatValue
	}
	return total
}

// BestPossibleScore is the sum of the pickLimit highest values of key in pool.
// When pickLimit exceeds the pool the whole pool is summed.
func BestPossibleScore(pool []model.Player, pickLimit int, key stat.Key) (float64, error) {
	if err := checkKey(key); err != nil {
		return 0, err
	}
	values := make([]float64, len(pool))
	for i, p := range pool {
		v, err := finite(p, key)
		if err != nil {
			return 0, err
		}
		values[i] = v
	}
	// Descending; stable so equal values keep pool order.
	slices.SortStableFunc(values, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})
	n := min(max(pickLimit, 0), len(values))
	var total float64
	for _, v := range values[:n] {
		total += v
	}
	return total, nil
}

// ExpectedRandomScore is the mean of key over pool multiplied by pickLimit,
// i.e. the expectation of pickLimit uniform draws with replacement. The
// result is not rounded.
func ExpectedRandomScore(pool []model.Player, pickLimit int, key stat.Key) (float64, error) {
	if err := checkKey(key); err != nil {
		return 0, err
	}
	if len(pool) == 0 {
		return 0, ErrEmptyPool
	}
	var total float64
	for _, p := range pool {
		v, err := finite(p, key)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total / float64(len(pool)) * float64(pickLimit), nil
}

// PercentOfBest returns achieved as a percentage of best. ok is false when
// best is zero or the result is not finite.
func PercentOfBest(achieved, best float64) (pct float64, ok bool) {
	if best == 0 {
		return 0, false
	}
	return finitePercent(achieved / best * percent)
}

// PercentVsRandom returns how far achieved is above (or below) expected, in
// percent of expected. ok is false when expected is zero or the result is
// not finite.
func PercentVsRandom(achieved, expected float64) (pct float64, ok bool) {
	if expected == 0 {
		return 0, false
	}
	return finitePercent((achieved - expected) / expected * percent)
}

func finitePercent(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ValidatePicks resolves ids against pool. It requires exactly pickLimit
// distinct ids that all exist in pool and returns the players in submission
// order.
func ValidatePicks(pool []model.Player, pickLimit int, ids []string) ([]model.Player, error) {
	if len(ids) != pickLimit {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrPickCount, len(ids), pickLimit)
	}
	byID := make(map[string]int, len(pool))
	for i, p := range pool {
		byID[p.ID] = i
	}
	seen := make(map[string]struct{}, len(ids))
	picks := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePick, id)
		}
		seen[id] = struct{}{}
		idx, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, id)
		}
		picks = append(picks, pool[idx])
	}
	return picks, nil
}

// Denormalize snapshots picks as id/name/value triples for key.
func Denormalize(picks []model.Player, key stat.Key) []model.PickEntry {
	out := make([]model.PickEntry, len(picks))
	for i, p := range picks {
		out[i] = model.PickEntry{PlayerID: p.ID, Name: p.Name, StatValue: p.Stat(string(key))}
	}
	return out
}

// Evaluate resolves the challenge's stat key and computes its baseline.
func Evaluate(c *model.Challenge) (Baseline, error) {
	key := stat.Resolve(c.Rule)
	best, err := BestPossibleScore(c.Pool, c.PickLimit, key)
	if err != nil {
		return Baseline{}, err
	}
	expected, err := ExpectedRandomScore(c.Pool, c.PickLimit, key)
	if err != nil {
		return Baseline{}, err
	}
	return Baseline{
		Key:       key,
		StatLabel: key.DisplayName(),
		PickLimit: c.PickLimit,
		Best:      best,
		Expected:  expected,
	}, nil
}

// Compare derives the relative metrics of achieved against b.
func Compare(b Baseline, achieved float64) Performance {
	perf := Performance{Achieved: achieved, Best: b.Best, Expected: b.Expected}
	if pct, ok := PercentOfBest(achieved, b.Best); ok {
		perf.PercentOfBest = &pct
	}
	if pct, ok := PercentVsRandom(achieved, b.Expected); ok {
		perf.PercentVsRandom = &pct
	}
	return perf
}
