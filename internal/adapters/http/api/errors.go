package api

import (
	"errors"
	"net/http"

	"github.com/okian/dugout/internal/domain/fault"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBackpressure = errors.New("backpressure")
	ErrUpgrade      = errors.New("websocket upgrade failed")
)

// Error attaches the failing operation and an optional kind to an error.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	case e.Kind != nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap annotates err with op. It returns nil for a nil err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind annotates err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// message returns the text shown to clients: the cause without the op
// prefix.
func message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch {
		case e.Err != nil:
			return e.Err.Error()
		case e.Kind != nil:
			return e.Kind.Error()
		}
	}
	return err.Error()
}

// statusOf maps an error kind to an HTTP status and error code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, fault.ErrChallengeNotFound),
		errors.Is(err, fault.ErrNoChallengeToday),
		errors.Is(err, fault.ErrAttemptNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, fault.ErrInvalidPicks):
		return http.StatusBadRequest, "invalid_picks"
	case errors.Is(err, fault.ErrInvalidUsername):
		return http.StatusBadRequest, "invalid_username"
	case errors.Is(err, fault.ErrAlreadyAttempted):
		return http.StatusConflict, "already_attempted"
	case errors.Is(err, fault.ErrSubmissionInFlight):
		return http.StatusConflict, "in_flight"
	case errors.Is(err, fault.ErrUsernameTaken):
		return http.StatusConflict, "username_taken"
	case errors.Is(err, fault.ErrBusy), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, fault.ErrNotScorable):
		return http.StatusUnprocessableEntity, "not_scorable"
	case errors.Is(err, fault.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
