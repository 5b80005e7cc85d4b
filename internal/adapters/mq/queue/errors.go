package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrQueueFull   = errors.New("refresh queue full")
	ErrQueueClosed = errors.New("refresh queue closed")
)
