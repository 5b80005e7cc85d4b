// Package loadtest drives a running server with concurrent submissions and
// checks that the challenge leaderboard agrees with locally computed scores.
package loadtest

import (
	"errors"
	"time"
)

// Defaults used by the loadtest command.
const (
	DefaultBaseURL      = "http://localhost:9080"
	DefaultUsers        = 200
	DefaultWorkers      = 16
	DefaultTimeout      = 10 * time.Second
	DefaultSettleWindow = 10 * time.Second
	pollInterval        = 100 * time.Millisecond
)

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid loadtest config")
	// ErrUnhealthy is returned when /healthz does not answer 200.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrMismatch is returned when the leaderboard disagrees with the submissions.
	ErrMismatch = errors.New("leaderboard mismatch")
)

// Config holds the parameters of a run.
type Config struct {
	BaseURL     string        // Base URL of the service
	ChallengeID string        // Challenge to attempt; empty means today's
	Users       int           // Number of distinct users to submit as
	Workers     int           // Number of concurrent submitters
	Duplicates  bool          // Resubmit every attempt and expect 409
	Timeout     time.Duration // HTTP request timeout
	Settle      time.Duration // How long to wait for the leaderboard to catch up
	Secret      string        // HS256 secret; empty sends X-User-ID instead
	UserPrefix  string        // Prefix of generated user ids
	Seed        uint64        // Pick generator seed; zero means time based
}

// Validate checks c and fills unset fields with defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Settle == 0 {
		c.Settle = DefaultSettleWindow
	}
	if c.UserPrefix == "" {
		c.UserPrefix = "loadtest"
	}
	switch {
	case c.Users <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("users must be positive"))
	case c.Workers < 0:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be positive"))
	}
	return nil
}

// Submission is one generated attempt.
type Submission struct {
	UserID    string
	PlayerIDs []string
	Score     float64
}

// Stats summarizes a run.
type Stats struct {
	ChallengeID string
	Submitted   int
	Accepted    int
	Duplicates  int
	Failed      int
	Entries     int
	TopUser     string
	TopScore    float64
	Duration    time.Duration
}
