package scoring

import "errors"

// Sentinel kinds for rejected computations.
var (
	ErrUnknownStatKey = errors.New("unknown stat key")
	ErrEmptyPool      = errors.New("empty player pool")
	ErrPickCount      = errors.New("wrong number of picks")
	ErrDuplicatePick  = errors.New("duplicate pick")
	ErrUnknownPlayer  = errors.New("player not in pool")
	ErrMalformedStats = errors.New("malformed player stats")
)
