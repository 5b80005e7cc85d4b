package service

import "github.com/okian/dugout/internal/domain/fault"

// Sentinel kinds returned by Service operations. They are the kinds of the
// fault package, so transports need not import the service.
var (
	ErrNotStarted         = fault.ErrNotStarted
	ErrChallengeNotFound  = fault.ErrChallengeNotFound
	ErrNoChallengeToday   = fault.ErrNoChallengeToday
	ErrAttemptNotFound    = fault.ErrAttemptNotFound
	ErrAlreadyAttempted   = fault.ErrAlreadyAttempted
	ErrSubmissionInFlight = fault.ErrSubmissionInFlight
	ErrBusy               = fault.ErrBusy
	ErrInvalidPicks       = fault.ErrInvalidPicks
	ErrNotScorable        = fault.ErrNotScorable
	ErrInvalidUsername    = fault.ErrInvalidUsername
	ErrUsernameTaken      = fault.ErrUsernameTaken
)
