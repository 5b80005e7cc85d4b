// Package standings aggregates attempts into leaderboards and profile stats.
package standings

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/internal/domain/scoring"
)

// Pagination defaults for Global.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// ChallengeStanding is one row of a per-challenge leaderboard.
type ChallengeStanding struct {
	Rank      int       `json:"rank"`
	AttemptID string    `json:"attempt_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// ForChallenge ranks attempts by score, highest first. Equal scores keep the
// earlier submission ahead. The input slice is not modified.
func ForChallenge(attempts []model.Attempt, usernames map[string]string) []ChallengeStanding {
	sorted := slices.Clone(attempts)
	slices.SortStableFunc(sorted, func(a, b model.Attempt) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	out := make([]ChallengeStanding, len(sorted))
	for i, a := range sorted {
		out[i] = ChallengeStanding{
			Rank:      i + 1,
			AttemptID: a.ID,
			UserID:    a.UserID,
			Username:  displayName(usernames, a.UserID),
			Score:     a.Score,
			CreatedAt: a.CreatedAt,
		}
	}
	return out
}

// Record pairs an attempt with the baseline of its challenge.
type Record struct {
	Attempt  model.Attempt
	Baseline scoring.Baseline
	Username string
}

// GlobalEntry is one row of the global leaderboard.
type GlobalEntry struct {
	Rank                int      `json:"rank"`
	UserID              string   `json:"user_id"`
	Username            string   `json:"username"`
	TotalScore          float64  `json:"total_score"`
	ChallengesCompleted int      `json:"challenges_completed"`
	Accuracy            *float64 `json:"accuracy"`
}

// GlobalPage is a page of the global leaderboard.
type GlobalPage struct {
	Entries []GlobalEntry `json:"entries"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	Total   int           `json:"total"`
	HasMore bool          `json:"has_more"`
}

type userTotals struct {
	entry      GlobalEntry
	accSum     float64
	accSamples int
}

// RankUsers aggregates records per user. Users are ordered by total score,
// ties broken by user id.
func RankUsers(records []Record) []GlobalEntry {
	byUser := make(map[string]*userTotals)
	for _, r := range records {
		t, ok := byUser[r.Attempt.UserID]
		if !ok {
			t = &userTotals{entry: GlobalEntry{UserID: r.Attempt.UserID}}
			byUser[r.Attempt.UserID] = t
		}
		if t.entry.Username == "" && r.Username != "" {
			t.entry.Username = r.Username
		}
		t.entry.TotalScore += r.Attempt.Score
		t.entry.ChallengesCompleted++
		if pct, ok := scoring.PercentOfBest(r.Attempt.Score, r.Baseline.Best); ok {
			t.accSum += pct
			t.accSamples++
		}
	}

	all := make([]GlobalEntry, 0, len(byUser))
	for _, t := range byUser {
		e := t.entry
		if e.Username == "" {
			e.Username = e.UserID
		}
		if t.accSamples > 0 {
			acc := round1(t.accSum / float64(t.accSamples))
			e.Accuracy = &acc
		}
		all = append(all, e)
	}
	slices.SortFunc(all, func(a, b GlobalEntry) int {
		if c := cmp.Compare(b.TotalScore, a.TotalScore); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	for i := range all {
		all[i].Rank = i + 1
	}
	return all
}

// Paginate returns one page of ranked entries. Pages start at 1;
// out-of-range page and limit values are clamped.
func Paginate(ranked []GlobalEntry, page, limit int) GlobalPage {
	page = max(page, 1)
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	limit = min(limit, MaxPageLimit)

	start := min((page-1)*limit, len(ranked))
	end := min(start+limit, len(ranked))
	return GlobalPage{
		Entries: ranked[start:end],
		Page:    page,
		Limit:   limit,
		Total:   len(ranked),
		HasMore: end < len(ranked),
	}
}

// Global ranks records per user and returns the requested page.
func Global(records []Record, page, limit int) GlobalPage {
	return Paginate(RankUsers(records), page, limit)
}

// ProfileStats summarizes one user's attempts. Averages of percentages only
// include attempts where the percentage is computable; they are nil when no
// attempt qualifies.
type ProfileStats struct {
	TotalAttempts   int      `json:"total_attempts"`
	AverageScore    float64  `json:"average_score"`
	AverageAccuracy *float64 `json:"average_accuracy"`
	AverageVsRandom *float64 `json:"average_vs_random"`
	BestScore       float64  `json:"best_score"`
}

// Profile computes ProfileStats from one user's records. ok is false when
// records is empty.
func Profile(records []Record) (stats ProfileStats, ok bool) {
	if len(records) == 0 {
		return ProfileStats{}, false
	}
	var scoreSum, accSum, vsSum float64
	var accN, vsN int
	best := math.Inf(-1)
	for _, r := range records {
		s := r.Attempt.Score
		scoreSum += s
		best = max(best, s)
		if pct, ok := scoring.PercentOfBest(s, r.Baseline.Best); ok {
			accSum += pct
			accN++
		}
		if pct, ok := scoring.PercentVsRandom(s, r.Baseline.Expected); ok {
			vsSum += pct
			vsN++
		}
	}
	stats = ProfileStats{
		TotalAttempts: len(records),
		AverageScore:  round1(scoreSum / float64(len(records))),
		BestScore:     round1(best),
	}
	if accN > 0 {
		v := round1(accSum / float64(accN))
		stats.AverageAccuracy = &v
	}
	if vsN > 0 {
		v := round1(vsSum / float64(vsN))
		stats.AverageVsRandom = &v
	}
	return stats, true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func displayName(usernames map[string]string, userID string) string {
	if name := usernames[userID]; name != "" {
		return name
	}
	return userID
}
