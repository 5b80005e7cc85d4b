package loadtest

import (
	"fmt"
	"math/rand/v2"

	"github.com/okian/dugout/internal/domain/stat"
	"github.com/okian/dugout/internal/domain/types"
)

// generate builds one random valid submission per user. The expected score is
// computed from the pool the server returned.
func generate(cfg *Config, c types.ChallengeDetail, rng *rand.Rand) []Submission {
	key := stat.Resolve(c.Rule)
	if c.Baseline != nil {
		key = c.Baseline.Key
	}

	subs := make([]Submission, cfg.Users)
	for i := range subs {
		order := rng.Perm(len(c.Pool))[:c.PickLimit]
		ids := make([]string, len(order))
		var score float64
		for j, idx := range order {
			p := c.Pool[idx]
			ids[j] = p.ID
			score += p.Stat(key.String())
		}
		subs[i] = Submission{
			UserID:    fmt.Sprintf("%s-%05d", cfg.UserPrefix, i+1),
			PlayerIDs: ids,
			Score:     score,
		}
	}
	return subs
}
