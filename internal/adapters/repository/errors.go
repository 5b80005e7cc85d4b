package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrAttemptExists   = errors.New("attempt already submitted")
	ErrChallengeExists = errors.New("challenge already exists")
	ErrUsernameTaken   = errors.New("username already taken")
)
