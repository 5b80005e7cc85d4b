package api

import (
	"context"
	"net/http"

	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/internal/domain/standings"
	"github.com/okian/dugout/internal/domain/types"
	"github.com/okian/dugout/pkg/logger"
)

// ChallengeDependencies defines the read side of challenges.
type ChallengeDependencies interface {
	ListChallenges(ctx context.Context) ([]model.Challenge, error)
	GetChallenge(ctx context.Context, id string) (types.ChallengeDetail, error)
	TodayChallenge(ctx context.Context) (types.ChallengeDetail, error)
	ChallengeLeaderboard(ctx context.Context, challengeID string) ([]standings.ChallengeStanding, error)
	LiveSnapshot(ctx context.Context, challengeID string) ([]byte, error)
}

// ChallengesHandler handles challenge requests.
type ChallengesHandler struct {
	deps   ChallengeDependencies
	live   LiveServer
	logger logger.Logger
}

// NewChallengesHandler creates a new challenges handler. live may be nil.
func NewChallengesHandler(deps ChallengeDependencies, live LiveServer, l logger.Logger) *ChallengesHandler {
	return &ChallengesHandler{deps: deps, live: live, logger: l}
}

// HandleList handles GET /challenges.
func (h *ChallengesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.ListChallenges(r.Context())
	if err != nil {
		writeFailure(w, Wrap("api.list_challenges", err))
		return
	}
	if list == nil {
		list = []model.Challenge{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleToday handles GET /challenges/today.
func (h *ChallengesHandler) HandleToday(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.TodayChallenge(r.Context())
	if err != nil {
		writeFailure(w, Wrap("api.today_challenge", err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleGet handles GET /challenges/{id}.
func (h *ChallengesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.GetChallenge(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap("api.get_challenge", err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleLeaderboard handles GET /challenges/{id}/leaderboard.
func (h *ChallengesHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.ChallengeLeaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap("api.challenge_leaderboard", err))
		return
	}
	if rows == nil {
		rows = []standings.ChallengeStanding{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleLive handles GET /challenges/{id}/live. The connection first
// receives the current standings, then every refresh.
func (h *ChallengesHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	const op = "api.challenge_live"
	if h.live == nil {
		http.NotFound(w, r)
		return
	}
	id := r.PathValue("id")
	snapshot, err := h.deps.LiveSnapshot(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if err := h.live.Serve(w, r, id, snapshot); err != nil {
		h.logger.Debug(r.Context(), "live subscription refused",
			logger.String("challenge_id", id),
			logger.String("request_id", RequestID(r.Context())),
			logger.Error(WrapKind(op, ErrUpgrade, err)),
		)
	}
}
