package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/dugout/internal/domain/standings"
)

// LeaderboardDependencies defines the interface for leaderboard operations
type LeaderboardDependencies interface {
	GlobalLeaderboard(ctx context.Context, page, limit int) (standings.GlobalPage, error)
}

// LeaderboardHandler handles leaderboard requests
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?page=P&limit=N requests.
// Both parameters are optional.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	q := r.URL.Query()

	page, ok := positiveParam(q.Get("page"), 1)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	limit, ok := positiveParam(q.Get("limit"), min(standings.DefaultPageLimit, h.maxLimit))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	result, err := h.deps.GlobalLeaderboard(r.Context(), page, limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if result.Entries == nil {
		result.Entries = []standings.GlobalEntry{}
	}
	writeJSON(w, http.StatusOK, result)
}

func positiveParam(raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
