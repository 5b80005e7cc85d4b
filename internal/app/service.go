// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/dugout/internal/adapters/cache"
	eventqueue "github.com/okian/dugout/internal/adapters/mq/queue"
	workerpool "github.com/okian/dugout/internal/adapters/mq/worker"
	"github.com/okian/dugout/internal/adapters/repository"
	"github.com/okian/dugout/internal/domain/dedupe"
	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/internal/domain/scoring"
	"github.com/okian/dugout/internal/domain/standings"
	"github.com/okian/dugout/internal/domain/types"
	"github.com/okian/dugout/pkg/logger"
	"github.com/okian/dugout/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// Publisher pushes serialized updates to subscribers of a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) int
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, []byte) int { return 0 }

// Service implements the API dependencies for the challenge game.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store     repository.Store
	cache     cache.LeaderboardCache
	publisher Publisher

	// Created by Start
	guard      dedupe.Guard
	eventQueue eventqueue.Queue
	workerPool *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int

	// State
	started   bool
	startedAt time.Time
	submitted atomic.Int64
	rejected  atomic.Int64

	// Cache generations, bumped on every invalidation of a key.
	genMu sync.Mutex
	gens  map[string]uint64

	logger logger.Logger
	now    func() time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCache sets the leaderboard cache. The service closes it on Stop.
func WithCache(c cache.LeaderboardCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithPublisher sets where refreshed standings are pushed.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the refresh queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submissions may be in flight at once.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for "today" and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service. Without options it keeps everything in
// memory and caches nothing.
func New(opts ...Option) *Service {
	s := &Service{
		store:       repository.NewMemoryStore(),
		cache:       cache.NopCache{},
		publisher:   nopPublisher{},
		workerCount: runtime.NumCPU(),
		queueSize:   10000,
		dedupeSize:  10000,
		gens:        make(map[string]uint64),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the submission guard and the refresh pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting challenge service...")

	s.guard = dedupe.NewInFlightGuard(dedupe.WithMaxSize(s.dedupeSize))
	q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.eventQueue = q
	s.workerPool = workerpool.NewPool(s.workerCount, q, s,
		workerpool.WithLogger(s.logger.Named("refresh")))
	s.workerPool.Start(ctx)

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "challenge service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains pending refreshes and closes the store and the cache.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping challenge service...")

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "refresh workers did not drain", logger.Error(err))
	}
	if err := s.cache.Close(); err != nil {
		s.logger.Warn(ctx, "error closing cache", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "error closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "challenge service stopped")
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Nop()
	}
	return s.logger
}

// ListChallenges returns every challenge ordered by challenge date.
func (s *Service) ListChallenges(ctx context.Context) ([]model.Challenge, error) {
	list, err := s.store.ListChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return list, nil
}

// GetChallenge returns a challenge and its baseline.
func (s *Service) GetChallenge(ctx context.Context, id string) (types.ChallengeDetail, error) {
	c, err := s.challenge(ctx, id)
	if err != nil {
		return types.ChallengeDetail{}, err
	}
	return s.detail(ctx, c), nil
}

// TodayChallenge returns the challenge dated today (UTC).
func (s *Service) TodayChallenge(ctx context.Context) (types.ChallengeDetail, error) {
	date := s.now().UTC().Format(model.DateLayout)
	c, err := s.store.ChallengeForDate(ctx, date)
	if errors.Is(err, repository.ErrNotFound) {
		return types.ChallengeDetail{}, fmt.Errorf("%w: %s", ErrNoChallengeToday, date)
	}
	if err != nil {
		return types.ChallengeDetail{}, fmt.Errorf("challenge for %s: %w", date, err)
	}
	return s.detail(ctx, c), nil
}

func (s *Service) challenge(ctx context.Context, id string) (*model.Challenge, error) {
	c, err := s.store.GetChallenge(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge %s: %w", id, err)
	}
	return c, nil
}

func (s *Service) detail(ctx context.Context, c *model.Challenge) types.ChallengeDetail {
	d := types.ChallengeDetail{Challenge: *c}
	b, err := scoring.Evaluate(c)
	metrics.RecordEvaluation(err)
	if err != nil {
		s.log().Warn(ctx, "challenge not scorable",
			logger.String("challenge_id", c.ID), logger.Error(err))
		return d
	}
	d.Baseline = &b
	return d
}

// SubmitAttempt scores and stores a user's picks for a challenge. A user may
// attempt each challenge once; a concurrent duplicate is rejected with
// ErrSubmissionInFlight before storage is touched.
func (s *Service) SubmitAttempt(ctx context.Context, userID, challengeID string, playerIDs []string) (types.AttemptResult, error) {
	s.mu.RLock()
	guard, q, started := s.guard, s.eventQueue, s.started
	s.mu.RUnlock()
	if !started {
		return types.AttemptResult{}, ErrNotStarted
	}

	key := dedupe.SubmissionKey(userID, challengeID)
	if err := guard.Acquire(ctx, key); err != nil {
		return types.AttemptResult{}, s.reject(ctx, "in_flight", s.guardError(err))
	}
	defer guard.Release(ctx, key)

	c, err := s.challenge(ctx, challengeID)
	if err != nil {
		return types.AttemptResult{}, err
	}
	if _, err := s.store.GetAttempt(ctx, userID, challengeID); err == nil {
		return types.AttemptResult{}, s.reject(ctx, "duplicate", ErrAlreadyAttempted)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return types.AttemptResult{}, fmt.Errorf("lookup attempt: %w", err)
	}

	picks, err := scoring.ValidatePicks(c.Pool, c.PickLimit, playerIDs)
	if err != nil {
		return types.AttemptResult{}, s.reject(ctx, "invalid_picks", fmt.Errorf("%w: %w", ErrInvalidPicks, err))
	}
	baseline, err := scoring.Evaluate(c)
	metrics.RecordEvaluation(err)
	if err != nil {
		return types.AttemptResult{}, fmt.Errorf("%w: %w", ErrNotScorable, err)
	}

	entries := scoring.Denormalize(picks, baseline.Key)
	attempt := model.Attempt{
		UserID:      userID,
		ChallengeID: challengeID,
		Score:       scoring.SumPicks(entries),
		Picks:       entries,
	}
	if err := s.store.InsertAttempt(ctx, &attempt); err != nil {
		if errors.Is(err, repository.ErrAttemptExists) {
			return types.AttemptResult{}, s.reject(ctx, "duplicate", ErrAlreadyAttempted)
		}
		return types.AttemptResult{}, fmt.Errorf("store attempt: %w", err)
	}

	perf := scoring.Compare(baseline, attempt.Score)
	pct, ok := 0.0, perf.PercentOfBest != nil
	if ok {
		pct = *perf.PercentOfBest
	}
	metrics.RecordAttemptSubmitted(pct, ok)
	s.submitted.Add(1)

	s.scheduleRefresh(ctx, q, challengeID)

	s.log().Info(ctx, "attempt recorded",
		logger.String("attempt_id", attempt.ID),
		logger.String("challenge_id", challengeID),
		logger.String("user_id", userID),
		logger.Float64("score", attempt.Score),
	)
	return types.AttemptResult{Attempt: attempt, StatLabel: baseline.StatLabel, Performance: perf}, nil
}

func (s *Service) guardError(err error) error {
	if errors.Is(err, dedupe.ErrCapacity) {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return fmt.Errorf("%w: %w", ErrSubmissionInFlight, err)
}

func (s *Service) reject(ctx context.Context, reason string, err error) error {
	metrics.RecordAttemptRejected(reason)
	s.rejected.Add(1)
	s.log().Debug(ctx, "attempt rejected", logger.String("reason", reason), logger.Error(err))
	return err
}

// scheduleRefresh drops the cached boards the attempt changed and queues a
// refresh that rebuilds and publishes them.
func (s *Service) scheduleRefresh(ctx context.Context, q eventqueue.Queue, challengeID string) {
	s.invalidate(ctx, cache.ChallengeKey(challengeID), cache.GlobalKey)
	err := q.Enqueue(ctx, eventqueue.RefreshJob{ChallengeID: challengeID, EnqueuedAt: s.now()})
	if err != nil {
		s.log().Warn(ctx, "refresh not queued",
			logger.String("challenge_id", challengeID), logger.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	s.genMu.Lock()
	for _, k := range keys {
		s.gens[k]++
	}
	s.genMu.Unlock()
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log().Warn(ctx, "cache invalidation failed", logger.Error(err))
	}
}

// GetAttempt returns the user's attempt on a challenge with its performance.
func (s *Service) GetAttempt(ctx context.Context, userID, challengeID string) (types.AttemptResult, error) {
	c, err := s.challenge(ctx, challengeID)
	if err != nil {
		return types.AttemptResult{}, err
	}
	a, err := s.store.GetAttempt(ctx, userID, challengeID)
	if errors.Is(err, repository.ErrNotFound) {
		return types.AttemptResult{}, ErrAttemptNotFound
	}
	if err != nil {
		return types.AttemptResult{}, fmt.Errorf("get attempt: %w", err)
	}
	res := types.AttemptResult{Attempt: *a}
	if b, err := scoring.Evaluate(c); err == nil {
		res.StatLabel = b.StatLabel
		res.Performance = scoring.Compare(b, a.Score)
	} else {
		res.Performance = scoring.Performance{Achieved: a.Score}
	}
	return res, nil
}

// ChallengeLeaderboard returns the standings of one challenge, from cache
// when possible.
func (s *Service) ChallengeLeaderboard(ctx context.Context, challengeID string) ([]standings.ChallengeStanding, error) {
	if _, err := s.challenge(ctx, challengeID); err != nil {
		return nil, err
	}
	key := cache.ChallengeKey(challengeID)
	var rows []standings.ChallengeStanding
	if s.cached(ctx, key, &rows) {
		return rows, nil
	}
	gen := s.generation(key)
	rows, err := s.computeChallengeStandings(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, key, gen, rows)
	return rows, nil
}

func (s *Service) computeChallengeStandings(ctx context.Context, challengeID string) ([]standings.ChallengeStanding, error) {
	attempts, err := s.store.ListAttemptsByChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	ids := make([]string, len(attempts))
	for i, a := range attempts {
		ids[i] = a.UserID
	}
	names, err := s.store.Usernames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("usernames: %w", err)
	}
	return standings.ForChallenge(attempts, names), nil
}

// RefreshChallenge recomputes a challenge's standings, stores them in the
// cache, drops the global board and pushes the standings to live
// subscribers. It is called by the refresh workers.
func (s *Service) RefreshChallenge(ctx context.Context, challengeID string) error {
	key := cache.ChallengeKey(challengeID)
	gen := s.generation(key)
	rows, err := s.computeChallengeStandings(ctx, challengeID)
	if err != nil {
		return err
	}
	s.remember(ctx, key, gen, rows)
	s.invalidate(ctx, cache.GlobalKey)

	payload, err := json.Marshal(types.NewLiveStandings(challengeID, rows, s.now()))
	if err != nil {
		return fmt.Errorf("encode live standings: %w", err)
	}
	delivered := s.publisher.Publish(ctx, challengeID, payload)
	s.log().Debug(ctx, "standings published",
		logger.String("challenge_id", challengeID),
		logger.Int("subscribers", delivered),
	)
	return nil
}

// LiveSnapshot returns the current standings of a challenge encoded as a
// live message, for new subscribers.
func (s *Service) LiveSnapshot(ctx context.Context, challengeID string) ([]byte, error) {
	rows, err := s.ChallengeLeaderboard(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.NewLiveStandings(challengeID, rows, s.now()))
}

// GlobalLeaderboard returns one page of users ranked by total score. The
// full ranking is cached; pages are cut from it.
func (s *Service) GlobalLeaderboard(ctx context.Context, page, limit int) (standings.GlobalPage, error) {
	var ranked []standings.GlobalEntry
	if !s.cached(ctx, cache.GlobalKey, &ranked) {
		gen := s.generation(cache.GlobalKey)
		attempts, err := s.store.ListAllAttempts(ctx)
		if err != nil {
			return standings.GlobalPage{}, fmt.Errorf("list attempts: %w", err)
		}
		records, err := s.records(ctx, attempts)
		if err != nil {
			return standings.GlobalPage{}, err
		}
		ranked = standings.RankUsers(records)
		s.remember(ctx, cache.GlobalKey, gen, ranked)
	}
	return standings.Paginate(ranked, page, limit), nil
}

// ProfileStats summarizes a user's attempts. ok is false when the user has
// none.
func (s *Service) ProfileStats(ctx context.Context, userID string) (standings.ProfileStats, bool, error) {
	attempts, err := s.store.ListAttemptsByUser(ctx, userID)
	if err != nil {
		return standings.ProfileStats{}, false, fmt.Errorf("list attempts: %w", err)
	}
	records, err := s.records(ctx, attempts)
	if err != nil {
		return standings.ProfileStats{}, false, err
	}
	stats, ok := standings.Profile(records)
	return stats, ok, nil
}

// records joins attempts with their challenge baselines and usernames.
// Attempts on challenges that no longer evaluate keep a zero baseline, so
// their percentages are skipped.
func (s *Service) records(ctx context.Context, attempts []model.Attempt) ([]standings.Record, error) {
	baselines := make(map[string]scoring.Baseline)
	var userIDs []string
	seenUser := make(map[string]struct{})
	for _, a := range attempts {
		if _, ok := seenUser[a.UserID]; !ok {
			seenUser[a.UserID] = struct{}{}
			userIDs = append(userIDs, a.UserID)
		}
		if _, ok := baselines[a.ChallengeID]; ok {
			continue
		}
		var b scoring.Baseline
		c, err := s.store.GetChallenge(ctx, a.ChallengeID)
		switch {
		case err == nil:
			if b, err = scoring.Evaluate(c); err != nil {
				b = scoring.Baseline{}
			}
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("get challenge %s: %w", a.ChallengeID, err)
		}
		baselines[a.ChallengeID] = b
	}
	names, err := s.store.Usernames(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("usernames: %w", err)
	}

	out := make([]standings.Record, len(attempts))
	for i, a := range attempts {
		out[i] = standings.Record{Attempt: a, Baseline: baselines[a.ChallengeID], Username: names[a.UserID]}
	}
	return out, nil
}

// SetUsername sets the public name of a user.
func (s *Service) SetUsername(ctx context.Context, userID, username string) (model.Profile, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return model.Profile{}, fmt.Errorf("%w: use 3-32 letters, digits, '.', '_' or '-'", ErrInvalidUsername)
	}
	p := model.Profile{UserID: userID, Username: username}
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return model.Profile{}, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
		}
		return model.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	keys := []string{cache.GlobalKey}
	if attempts, err := s.store.ListAttemptsByUser(ctx, userID); err == nil {
		for _, a := range attempts {
			keys = append(keys, cache.ChallengeKey(a.ChallengeID))
		}
	}
	s.invalidate(ctx, keys...)
	return p, nil
}

// cached decodes key into dst and reports whether it was usable. Cache
// failures are logged and treated as misses.
func (s *Service) cached(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log().Warn(ctx, "cache read failed", logger.String("key", key), logger.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.log().Warn(ctx, "discarding undecodable cache entry", logger.String("key", key), logger.Error(err))
		return false
	}
	return true
}

// generation returns the invalidation count of key. Take it before reading
// the store and pass it to remember.
func (s *Service) generation(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[key]
}

// remember caches v under key. When key was invalidated after gen was taken,
// v may predate the change and the entry is dropped again.
func (s *Service) remember(ctx context.Context, key string, gen uint64, v any) {
	if s.generation(key) != gen {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.log().Warn(ctx, "cache encode failed", logger.String("key", key), logger.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, raw); err != nil {
		s.log().Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
		return
	}
	if s.generation(key) != gen {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.log().Warn(ctx, "cache invalidation failed", logger.String("key", key), logger.Error(err))
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"submitted":   s.submitted.Load(),
		"rejected":    s.rejected.Load(),
	}

	if s.started {
		stats["queueLength"] = s.eventQueue.Len(ctx)
		stats["inFlight"] = s.guard.Size()
		stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
		metrics.UpdateWorkerCount(s.workerPool.Size())
	}
	return stats
}
