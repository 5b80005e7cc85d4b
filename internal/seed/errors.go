package seed

import "errors"

var (
	// ErrInvalidFile is returned when a challenge file cannot be parsed.
	ErrInvalidFile = errors.New("invalid challenge file")
	// ErrNoChallenges is returned when there is nothing to publish.
	ErrNoChallenges = errors.New("no challenges to publish")
)
