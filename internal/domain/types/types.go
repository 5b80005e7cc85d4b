// Package types contains common types used across the application
package types

import (
	"time"

	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/internal/domain/scoring"
	"github.com/okian/dugout/internal/domain/standings"
)

// LiveStandingsType tags LiveMessage payloads carrying challenge standings.
const LiveStandingsType = "standings"

// ChallengeDetail is a challenge together with its scoring baseline. Baseline
// is nil when the challenge cannot be evaluated (e.g. an empty pool).
type ChallengeDetail struct {
	model.Challenge
	Baseline *scoring.Baseline `json:"baseline,omitempty"`
}

// AttemptResult is a stored attempt and how it compares with its challenge.
type AttemptResult struct {
	Attempt     model.Attempt       `json:"attempt"`
	StatLabel   string              `json:"stat_label"`
	Performance scoring.Performance `json:"performance"`
}

// LiveMessage is pushed to websocket subscribers of a challenge.
type LiveMessage struct {
	Type        string                        `json:"type"`
	ChallengeID string                        `json:"challenge_id"`
	Standings   []standings.ChallengeStanding `json:"standings"`
	At          time.Time                     `json:"at"`
}

// NewLiveStandings builds a standings message for challengeID.
func NewLiveStandings(challengeID string, rows []standings.ChallengeStanding, at time.Time) LiveMessage {
	if rows == nil {
		rows = []standings.ChallengeStanding{}
	}
	return LiveMessage{
		Type:        LiveStandingsType,
		ChallengeID: challengeID,
		Standings:   rows,
		At:          at.UTC(),
	}
}
