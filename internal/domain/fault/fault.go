// Package fault holds the error kinds shared by the service and its
// transports. The service wraps them; transports map them to status codes
// with errors.Is.
package fault

import "errors"

var (
	ErrNotStarted         = errors.New("service not started")
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrNoChallengeToday   = errors.New("no challenge scheduled for today")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrAlreadyAttempted   = errors.New("challenge already attempted")
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrBusy               = errors.New("too many submissions in progress")
	ErrInvalidPicks       = errors.New("invalid picks")
	ErrNotScorable        = errors.New("challenge cannot be scored")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrUsernameTaken      = errors.New("username already taken")
)
