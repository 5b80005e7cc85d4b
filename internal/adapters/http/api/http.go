// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/dugout/internal/domain/standings"
	"github.com/okian/dugout/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ChallengeDependencies
	AttemptDependencies
	LeaderboardDependencies
	ProfileDependencies
}

// LiveServer upgrades a request into a subscription on topic.
type LiveServer interface {
	Serve(w http.ResponseWriter, r *http.Request, topic string, initial []byte) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	challengesHandler  *ChallengesHandler
	attemptsHandler    *AttemptsHandler
	leaderboardHandler *LeaderboardHandler
	profileHandler     *ProfileHandler

	auth *Authenticator
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	auth     *Authenticator
	live     LiveServer
	maxLimit int
	logger   logger.Logger
}

// WithAuthenticator sets how user routes identify the caller. Without it
// every user route answers 401.
func WithAuthenticator(a *Authenticator) Option {
	return func(c *serverConfig) { c.auth = a }
}

// WithLive enables GET /challenges/{id}/live.
func WithLive(l LiveServer) Option {
	return func(c *serverConfig) { c.live = l }
}

// WithMaxLeaderboardLimit caps the limit accepted by GET /leaderboard.
func WithMaxLeaderboardLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{maxLimit: standings.MaxPageLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("api")
	}
	if cfg.auth == nil {
		cfg.auth = NewAuthenticator(nil)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		challengesHandler:  NewChallengesHandler(deps, cfg.live, cfg.logger),
		attemptsHandler:    NewAttemptsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxLimit),
		profileHandler:     NewProfileHandler(deps),
		auth:               cfg.auth,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.Handle(pattern, RequestIDMiddleware(MetricsMiddleware(h, endpoint)))
	}
	user := s.auth.Require

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("GET /challenges", "challenges", s.challengesHandler.HandleList)
	route("GET /challenges/today", "challenges_today", s.challengesHandler.HandleToday)
	route("GET /challenges/{id}", "challenge", s.challengesHandler.HandleGet)
	route("GET /challenges/{id}/leaderboard", "challenge_leaderboard", s.challengesHandler.HandleLeaderboard)
	route("GET /challenges/{id}/live", "challenge_live", s.challengesHandler.HandleLive)

	route("POST /challenges/{id}/attempts", "attempts", user(s.attemptsHandler.HandleSubmit))
	route("GET /challenges/{id}/attempts/me", "attempts_me", user(s.attemptsHandler.HandleGetMine))

	route("GET /leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)

	route("GET /me/stats", "me_stats", user(s.profileHandler.HandleStats))
	route("PUT /me/profile", "me_profile", user(s.profileHandler.HandleSetProfile))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = message(err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err to a status. Internal errors are not echoed.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

const maxBodyBytes = 64 << 10

