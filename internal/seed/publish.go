package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/dugout/internal/adapters/repository"
	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/internal/domain/stat"
	"github.com/okian/dugout/pkg/logger"
	"github.com/okian/dugout/pkg/metrics"
)

// TodayRule is the rule of the challenge created by CreateToday.
const TodayRule = "Pick players with the most home runs!"

// Option configures Publish and CreateToday.
type Option func(*settings)

type settings struct {
	log logger.Logger
	now func() time.Time
}

// WithLogger sets the logger used to report progress.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the clock that decides "today".
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func apply(opts []Option) settings {
	s := settings{log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s settings) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Publish stores challenges in order. Undated challenges are dated
// consecutively from today (UTC) by their position in the list. Every
// challenge is validated before any is stored. It returns the challenges
// stored so far, also on error.
func Publish(ctx context.Context, store repository.Store, challenges []model.Challenge, opts ...Option) ([]model.Challenge, error) {
	if len(challenges) == 0 {
		return nil, ErrNoChallenges
	}
	s := apply(opts)
	start := s.today()

	pending := make([]model.Challenge, len(challenges))
	for i, c := range challenges {
		if c.ChallengeDate == "" {
			c.ChallengeDate = start.AddDate(0, 0, i).Format(model.DateLayout)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("challenge %d (%s): %w", i, c.Title, err)
		}
		if key, ok := stat.ResolveStrict(c.Rule); !ok {
			s.log.Warn(ctx, "rule names no known stat; scoring by default",
				logger.String("title", c.Title), logger.String("rule", c.Rule),
				logger.String("stat_key", key.String()))
		}
		pending[i] = c
	}

	published := make([]model.Challenge, 0, len(pending))
	for i := range pending {
		c := pending[i]
		if err := store.CreateChallenge(ctx, &c); err != nil {
			s.log.Error(ctx, "failed to publish challenge",
				logger.String("title", c.Title), logger.Error(err))
			return published, fmt.Errorf("publish %q: %w", c.Title, err)
		}
		metrics.RecordChallengePublished()
		s.log.Info(ctx, "challenge published",
			logger.String("challenge_id", c.ID),
			logger.String("title", c.Title),
			logger.String("challenge_date", c.ChallengeDate))
		published = append(published, c)
	}
	return published, nil
}

// Today returns the small home run challenge used by CreateToday, dated date.
func Today(date string) model.Challenge {
	names := []struct {
		name string
		hrs  float64
	}{
		{"Mike Trout", 3},
		{"Aaron Judge", 2},
		{"Bryce Harper", 1},
		{"Mookie Betts", 4},
		{"Freddie Freeman", 2},
	}
	pool := make([]model.Player, len(names))
	for i, p := range names {
		pool[i] = player(fmt.Sprintf("player_%d", i+1), p.name, "MLB", string(stat.HomeRuns), p.hrs)
	}
	return model.Challenge{
		Title:         "Daily Home Runs",
		Rule:          TodayRule,
		PickLimit:     3,
		ChallengeDate: date,
		Pool:          pool,
	}
}

// CreateToday stores today's challenge unless one is already dated today.
// The returned flag reports whether a challenge was created.
func CreateToday(ctx context.Context, store repository.Store, opts ...Option) (model.Challenge, bool, error) {
	s := apply(opts)
	date := s.today().Format(model.DateLayout)

	existing, err := store.ChallengeForDate(ctx, date)
	switch {
	case err == nil:
		s.log.Info(ctx, "challenge already exists for today",
			logger.String("challenge_id", existing.ID), logger.String("challenge_date", date))
		return *existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return model.Challenge{}, false, fmt.Errorf("check today's challenge: %w", err)
	}

	c := Today(date)
	if err := store.CreateChallenge(ctx, &c); err != nil {
		return model.Challenge{}, false, fmt.Errorf("create today's challenge: %w", err)
	}
	metrics.RecordChallengePublished()
	s.log.Info(ctx, "challenge created",
		logger.String("challenge_id", c.ID), logger.String("challenge_date", date))
	return c, true, nil
}
