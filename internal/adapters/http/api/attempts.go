package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/dugout/internal/domain/types"
)

// AttemptDependencies defines attempt submission and lookup.
type AttemptDependencies interface {
	SubmitAttempt(ctx context.Context, userID, challengeID string, playerIDs []string) (types.AttemptResult, error)
	GetAttempt(ctx context.Context, userID, challengeID string) (types.AttemptResult, error)
}

// AttemptsHandler handles attempt requests.
type AttemptsHandler struct {
	deps AttemptDependencies
}

// NewAttemptsHandler creates a new attempts handler.
func NewAttemptsHandler(deps AttemptDependencies) *AttemptsHandler {
	return &AttemptsHandler{deps: deps}
}

// attemptRequest is the body of POST /challenges/{id}/attempts.
type attemptRequest struct {
	PlayerIDs []string `json:"player_ids"`
}

func (a attemptRequest) validate() error {
	if len(a.PlayerIDs) == 0 {
		return errors.New("missing player_ids")
	}
	for _, id := range a.PlayerIDs {
		if id == "" {
			return errors.New("player_ids must not contain empty ids")
		}
	}
	return nil
}

// HandleSubmit handles POST /challenges/{id}/attempts.
func (h *AttemptsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_attempt"
	userID, _ := UserID(r.Context())

	var req attemptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.SubmitAttempt(r.Context(), userID, r.PathValue("id"), req.PlayerIDs)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleGetMine handles GET /challenges/{id}/attempts/me.
func (h *AttemptsHandler) HandleGetMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	res, err := h.deps.GetAttempt(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap("api.get_attempt", err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
