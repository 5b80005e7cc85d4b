// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the layout of Challenge.ChallengeDate.
const DateLayout = "2006-01-02"

// ErrInvalidChallenge is returned by Challenge.Validate.
var ErrInvalidChallenge = errors.New("invalid challenge")

// Player is one entry of a challenge pool. Stats are keyed by stat key
// ("hrs", "rbis", "sb"); missing keys read as zero.
type Player struct {
	ID    string             `json:"id" yaml:"id"`
	Name  string             `json:"name" yaml:"name"`
	Team  string             `json:"team" yaml:"team"`
	Stats map[string]float64 `json:"stats" yaml:"stats"`
}

// Stat returns the value recorded for key, or zero.
func (p Player) Stat(key string) float64 {
	return p.Stats[key]
}

// Challenge is a daily pick challenge. It is read-only once published.
type Challenge struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Rule          string    `json:"rule"`
	PickLimit     int       `json:"pick_limit"`
	Pool          []Player  `json:"players_pool"`
	ChallengeDate string    `json:"challenge_date,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Player looks up a pool entry by id.
func (c *Challenge) Player(id string) (Player, bool) {
	for _, p := range c.Pool {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Validate checks the authoring invariants of a challenge.
func (c *Challenge) Validate() error {
	switch {
	case strings.TrimSpace(c.Title) == "":
		return fmt.Errorf("%w: missing title", ErrInvalidChallenge)
	case strings.TrimSpace(c.Rule) == "":
		return fmt.Errorf("%w: missing rule", ErrInvalidChallenge)
	case c.PickLimit <= 0:
		return fmt.Errorf("%w: pick_limit must be positive", ErrInvalidChallenge)
	case len(c.Pool) == 0:
		return fmt.Errorf("%w: empty players_pool", ErrInvalidChallenge)
	case c.PickLimit > len(c.Pool):
		return fmt.Errorf("%w: pick_limit %d exceeds pool size %d", ErrInvalidChallenge, c.PickLimit, len(c.Pool))
	}
	if c.ChallengeDate != "" {
		if _, err := time.Parse(DateLayout, c.ChallengeDate); err != nil {
			return fmt.Errorf("%w: challenge_date %q is not YYYY-MM-DD", ErrInvalidChallenge, c.ChallengeDate)
		}
	}
	seen := make(map[string]struct{}, len(c.Pool))
	for i, p := range c.Pool {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%w: player %d has no id", ErrInvalidChallenge, i)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate player id %q", ErrInvalidChallenge, p.ID)
		}
		seen[p.ID] = struct{}{}
		for key, v := range p.Stats {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: player %q has non-finite %s", ErrInvalidChallenge, p.ID, key)
			}
		}
	}
	return nil
}

// PickEntry is a pick denormalized at submission time.
type PickEntry struct {
	PlayerID  string  `json:"player_id"`
	Name      string  `json:"name"`
	StatValue float64 `json:"stat_value"`
}

// Attempt is one user's single submission against one challenge.
type Attempt struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	ChallengeID string      `json:"challenge_id"`
	Score       float64     `json:"score"`
	Picks       []PickEntry `json:"picks"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Profile is the public identity of a user.
type Profile struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
