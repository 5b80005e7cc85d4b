package api

import (
	"context"
	"net/http"

	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/internal/domain/standings"
)

// ProfileDependencies defines per-user operations.
type ProfileDependencies interface {
	ProfileStats(ctx context.Context, userID string) (standings.ProfileStats, bool, error)
	SetUsername(ctx context.Context, userID, username string) (model.Profile, error)
}

// ProfileHandler handles the caller's profile requests.
type ProfileHandler struct {
	deps ProfileDependencies
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps ProfileDependencies) *ProfileHandler {
	return &ProfileHandler{deps: deps}
}

// HandleStats handles GET /me/stats. It answers 204 when the caller has no
// attempts yet.
func (h *ProfileHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	stats, ok, err := h.deps.ProfileStats(r.Context(), userID)
	if err != nil {
		writeFailure(w, Wrap("api.profile_stats", err))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type profileRequest struct {
	Username string `json:"username"`
}

// HandleSetProfile handles PUT /me/profile.
func (h *ProfileHandler) HandleSetProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_profile"
	userID, _ := UserID(r.Context())

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.SetUsername(r.Context(), userID, req.Username)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}
