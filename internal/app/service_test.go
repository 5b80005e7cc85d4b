package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	service "github.com/okian/dugout/internal/app"
	"github.com/okian/dugout/internal/adapters/cache"
	"github.com/okian/dugout/internal/adapters/repository"
	"github.com/okian/dugout/internal/domain/fault"
	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/internal/domain/scoring"
	"github.com/okian/dugout/internal/domain/types"
	"github.com/okian/dugout/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var today = time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

func homeRunChallenge(id, date string) *model.Challenge {
	return &model.Challenge{
		ID:            id,
		Title:         "Home Run Derby (2023)",
		Rule:          "Pick players with the most home runs in 2023!",
		PickLimit:     2,
		ChallengeDate: date,
		Pool: []model.Player{
			{ID: "judge", Name: "Aaron Judge", Team: "NYY", Stats: map[string]float64{"hrs": 62}},
			{ID: "ohtani", Name: "Shohei Ohtani", Team: "LAA", Stats: map[string]float64{"hrs": 46}},
			{ID: "olson", Name: "Matt Olson", Team: "ATL", Stats: map[string]float64{"hrs": 54}},
			{ID: "alonso", Name: "Pete Alonso", Team: "NYM", Stats: map[string]float64{"hrs": 39}},
		},
	}
}

// recordingPublisher captures live messages pushed by refreshes.
type recordingPublisher struct {
	msgs chan types.LiveMessage
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{msgs: make(chan types.LiveMessage, 32)}
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) int {
	var msg types.LiveMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.ChallengeID != topic {
		return 0
	}
	select {
	case p.msgs <- msg:
	default:
	}
	return 1
}

func (p *recordingPublisher) next(timeout time.Duration) (types.LiveMessage, bool) {
	select {
	case msg := <-p.msgs:
		return msg, true
	case <-time.After(timeout):
		return types.LiveMessage{}, false
	}
}

// blockingStore parks GetChallenge until release is closed.
type blockingStore struct {
	repository.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) GetChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.Store.GetChallenge(ctx, id)
}

// stallingStore reads attempts for the first standings computation and then
// parks it until release is closed, so the result goes stale.
type stallingStore struct {
	repository.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) ListAttemptsByChallenge(ctx context.Context, id string) ([]model.Attempt, error) {
	rows, err := s.Store.ListAttemptsByChallenge(ctx, id)
	stall := false
	s.once.Do(func() { stall = true })
	if stall {
		close(s.entered)
		<-s.release
	}
	return rows, err
}

func (s *stallingStore) ListAllAttempts(ctx context.Context) ([]model.Attempt, error) {
	rows, err := s.Store.ListAllAttempts(ctx)
	stall := false
	s.once.Do(func() { stall = true })
	if stall {
		close(s.entered)
		<-s.release
	}
	return rows, err
}

func newService(store repository.Store, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithStore(store),
		service.WithLogger(logger.Nop()),
		service.WithWorkerCount(2),
		service.WithClock(func() time.Time { return today }),
	}
	return service.New(append(base, opts...)...)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("When it has not been started", func() {
			_, err := svc.SubmitAttempt(context.Background(), "u1", "c-1", []string{"a"})

			Convey("Then submissions are refused", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When it is started twice and stopped twice", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["queueLength"], ShouldEqual, 0)
			So(stats["inFlight"], ShouldEqual, int64(0))

			svc.Stop()
			So(func() { svc.Stop() }, ShouldNotPanic)

			Convey("Then it reports stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Challenges(t *testing.T) {
	Convey("Given a store with a dated and an unscorable challenge", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		So(store.CreateChallenge(ctx, homeRunChallenge("c-1", "2026-10-19")), ShouldBeNil)
		So(store.CreateChallenge(ctx, &model.Challenge{ID: "c-empty", Rule: "home runs", PickLimit: 1}), ShouldBeNil)
		svc := newService(store)

		Convey("When a challenge is fetched", func() {
			d, err := svc.GetChallenge(ctx, "c-1")

			Convey("Then it carries its baseline", func() {
				So(err, ShouldBeNil)
				So(d.ID, ShouldEqual, "c-1")
				So(d.Baseline, ShouldNotBeNil)
				So(d.Baseline.StatLabel, ShouldEqual, "Home Runs")
				So(d.Baseline.Best, ShouldEqual, 116)
				So(d.Baseline.Expected, ShouldEqual, 100.5)
			})
		})

		Convey("When a challenge with an empty pool is fetched", func() {
			d, err := svc.GetChallenge(ctx, "c-empty")

			Convey("Then it has no baseline", func() {
				So(err, ShouldBeNil)
				So(d.Baseline, ShouldBeNil)
			})
		})

		Convey("When an unknown challenge is fetched", func() {
			_, err := svc.GetChallenge(ctx, "nope")

			Convey("Then ErrChallengeNotFound is returned", func() {
				So(errors.Is(err, service.ErrChallengeNotFound), ShouldBeTrue)
			})
		})

		Convey("When today's challenge is requested", func() {
			d, err := svc.TodayChallenge(ctx)
			So(err, ShouldBeNil)
			So(d.ID, ShouldEqual, "c-1")

			Convey("And no challenge is dated on another day", func() {
				other := newService(store, service.WithClock(func() time.Time { return today.AddDate(0, 0, 1) }))
				_, err := other.TodayChallenge(ctx)
				So(errors.Is(err, service.ErrNoChallengeToday), ShouldBeTrue)
			})
		})

		Convey("When challenges are listed", func() {
			list, err := svc.ListChallenges(ctx)

			Convey("Then both are returned, dated first", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 2)
				So(list[0].ID, ShouldEqual, "c-1")
			})
		})
	})
}

func TestService_SubmitAttempt(t *testing.T) {
	Convey("Given a started service with one challenge", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		So(store.CreateChallenge(ctx, homeRunChallenge("c-1", "2026-10-19")), ShouldBeNil)
		pub := newRecordingPublisher()
		svc := newService(store, service.WithPublisher(pub), service.WithCache(cache.NewMemoryCache(time.Minute)))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		Convey("When the best picks are submitted", func() {
			res, err := svc.SubmitAttempt(ctx, "u1", "c-1", []string{"olson", "judge"})

			Convey("Then the attempt is scored against both baselines", func() {
				So(err, ShouldBeNil)
				So(res.Attempt.ID, ShouldNotBeEmpty)
				So(res.Attempt.Score, ShouldEqual, 116)
				So(res.StatLabel, ShouldEqual, "Home Runs")
				So(res.Attempt.Picks[0], ShouldResemble, model.PickEntry{PlayerID: "olson", Name: "Matt Olson", StatValue: 54})
				So(*res.Performance.PercentOfBest, ShouldEqual, 100)
				So(*res.Performance.PercentVsRandom, ShouldAlmostEqual, (116-100.5)/100.5*100, 1e-9)
			})

			Convey("And the refreshed standings are published", func() {
				msg, ok := pub.next(5 * time.Second)
				So(ok, ShouldBeTrue)
				So(msg.Type, ShouldEqual, types.LiveStandingsType)
				So(len(msg.Standings), ShouldEqual, 1)
				So(msg.Standings[0].UserID, ShouldEqual, "u1")
				So(msg.Standings[0].Score, ShouldEqual, 116)
			})

			Convey("And a second submission is rejected", func() {
				_, err := svc.SubmitAttempt(ctx, "u1", "c-1", []string{"ohtani", "alonso"})
				So(errors.Is(err, service.ErrAlreadyAttempted), ShouldBeTrue)
				So(svc.GetStats()["rejected"], ShouldEqual, int64(1))
			})

			Convey("And it can be read back with its performance", func() {
				got, err := svc.GetAttempt(ctx, "u1", "c-1")
				So(err, ShouldBeNil)
				So(got.Attempt.ID, ShouldEqual, res.Attempt.ID)
				So(got.Performance, ShouldResemble, res.Performance)
			})
		})

		cases := []struct {
			name string
			ids  []string
			kind error
		}{
			{"too few picks", []string{"judge"}, scoring.ErrPickCount},
			{"a duplicate pick", []string{"judge", "judge"}, scoring.ErrDuplicatePick},
			{"a player outside the pool", []string{"judge", "ruth"}, scoring.ErrUnknownPlayer},
		}
		for _, tc := range cases {
			Convey("When the picks contain "+tc.name, func() {
				_, err := svc.SubmitAttempt(ctx, "u2", "c-1", tc.ids)

				Convey("Then ErrInvalidPicks wraps the scoring error", func() {
					So(errors.Is(err, service.ErrInvalidPicks), ShouldBeTrue)
					So(errors.Is(err, tc.kind), ShouldBeTrue)
				})
			})
		}

		Convey("When a stored challenge carries a non-finite stat", func() {
			broken := homeRunChallenge("c-nan", "")
			broken.Pool[1].Stats["hrs"] = math.NaN()
			So(store.CreateChallenge(ctx, broken), ShouldBeNil)

			Convey("Then submitting is refused as not scorable", func() {
				_, err := svc.SubmitAttempt(ctx, "u1", "c-nan", []string{"judge", "olson"})
				So(errors.Is(err, service.ErrNotScorable), ShouldBeTrue)
				So(errors.Is(err, scoring.ErrMalformedStats), ShouldBeTrue)
			})

			Convey("Then its detail carries no baseline", func() {
				d, err := svc.GetChallenge(ctx, "c-nan")
				So(err, ShouldBeNil)
				So(d.Baseline, ShouldBeNil)
			})
		})

		Convey("When the challenge does not exist", func() {
			_, err := svc.SubmitAttempt(ctx, "u1", "missing", []string{"judge", "olson"})

			Convey("Then ErrChallengeNotFound is returned", func() {
				So(errors.Is(err, service.ErrChallengeNotFound), ShouldBeTrue)
			})
		})

		Convey("When the user has no attempt", func() {
			_, err := svc.GetAttempt(ctx, "nobody", "c-1")

			Convey("Then ErrAttemptNotFound is returned", func() {
				So(errors.Is(err, service.ErrAttemptNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_ErrorKinds(t *testing.T) {
	Convey("Given a rejected submission", t, func() {
		ctx := context.Background()
		svc := newService(repository.NewMemoryStore())
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		_, err := svc.SubmitAttempt(ctx, "u1", "missing", []string{"judge"})

		Convey("Then transports can match it by its shared kind", func() {
			So(errors.Is(err, fault.ErrChallengeNotFound), ShouldBeTrue)
			So(service.ErrBusy, ShouldEqual, fault.ErrBusy)
		})
	})
}

func TestService_ConcurrentDuplicate(t *testing.T) {
	Convey("Given a submission that is still being processed", t, func() {
		ctx := context.Background()
		mem := repository.NewMemoryStore()
		So(mem.CreateChallenge(ctx, homeRunChallenge("c-1", "")), ShouldBeNil)
		store := &blockingStore{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
		svc := newService(store)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		first := make(chan error, 1)
		go func() {
			_, err := svc.SubmitAttempt(ctx, "u1", "c-1", []string{"judge", "olson"})
			first <- err
		}()
		<-store.entered

		Convey("When the same user submits again", func() {
			_, err := svc.SubmitAttempt(ctx, "u1", "c-1", []string{"judge", "ohtani"})
			close(store.release)

			Convey("Then the second request fails fast and the first succeeds", func() {
				So(errors.Is(err, service.ErrSubmissionInFlight), ShouldBeTrue)
				So(<-first, ShouldBeNil)
			})
		})
	})
}

func TestService_Leaderboards(t *testing.T) {
	Convey("Given attempts on two challenges", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		So(store.CreateChallenge(ctx, homeRunChallenge("c-1", "2026-10-19")), ShouldBeNil)
		So(store.CreateChallenge(ctx, homeRunChallenge("c-2", "2026-10-20")), ShouldBeNil)
		svc := newService(store)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		_, err := svc.SetUsername(ctx, "u1", "slugger")
		So(err, ShouldBeNil)

		submit := func(user, challengeID string, ids ...string) {
			_, err := svc.SubmitAttempt(ctx, user, challengeID, ids)
			So(err, ShouldBeNil)
		}
		submit("u1", "c-1", "judge", "alonso")  // 101
		submit("u2", "c-1", "judge", "olson")   // 116
		submit("u3", "c-1", "ohtani", "alonso") // 85
		submit("u1", "c-2", "judge", "olson")   // 116

		Convey("When the challenge leaderboard is read", func() {
			rows, err := svc.ChallengeLeaderboard(ctx, "c-1")

			Convey("Then attempts are ranked by score", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 3)
				So(rows[0].UserID, ShouldEqual, "u2")
				So(rows[1].Username, ShouldEqual, "slugger")
				So(rows[2].Rank, ShouldEqual, 3)
			})
		})

		Convey("When the global leaderboard is read", func() {
			page, err := svc.GlobalLeaderboard(ctx, 1, 2)

			Convey("Then users are ranked by total score", func() {
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 3)
				So(page.HasMore, ShouldBeTrue)
				So(page.Entries[0].Username, ShouldEqual, "slugger")
				So(page.Entries[0].TotalScore, ShouldEqual, 217)
				So(page.Entries[0].ChallengesCompleted, ShouldEqual, 2)
				So(*page.Entries[0].Accuracy, ShouldEqual, 93.5)
				So(page.Entries[1].UserID, ShouldEqual, "u2")
			})

			Convey("And the second page holds the rest", func() {
				page, err := svc.GlobalLeaderboard(ctx, 2, 2)
				So(err, ShouldBeNil)
				So(len(page.Entries), ShouldEqual, 1)
				So(page.Entries[0].UserID, ShouldEqual, "u3")
			})
		})

		Convey("When profile stats are requested", func() {
			stats, ok, err := svc.ProfileStats(ctx, "u1")

			Convey("Then they summarize the user's attempts", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(stats.TotalAttempts, ShouldEqual, 2)
				So(stats.AverageScore, ShouldEqual, 108.5)
				So(stats.BestScore, ShouldEqual, 116)
			})

			Convey("And a user without attempts has none", func() {
				_, ok, err := svc.ProfileStats(ctx, "ghost")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a username is invalid or taken", func() {
			_, errInvalid := svc.SetUsername(ctx, "u2", "x")
			_, errTaken := svc.SetUsername(ctx, "u2", "slugger")

			Convey("Then the matching errors are returned", func() {
				So(errors.Is(errInvalid, service.ErrInvalidUsername), ShouldBeTrue)
				So(errors.Is(errTaken, service.ErrUsernameTaken), ShouldBeTrue)
			})
		})
	})
}

func TestService_StaleCacheWrite(t *testing.T) {
	Convey("Given a leaderboard read that computed its rows before an attempt landed", t, func() {
		ctx := context.Background()
		mem := repository.NewMemoryStore()
		So(mem.CreateChallenge(ctx, homeRunChallenge("c-1", "")), ShouldBeNil)
		store := &stallingStore{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
		pub := newRecordingPublisher()
		svc := newService(store, service.WithPublisher(pub), service.WithCache(cache.NewMemoryCache(time.Minute)))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		Convey("When the challenge board is written back after the refresh", func() {
			stale := make(chan int, 1)
			go func() {
				rows, _ := svc.ChallengeLeaderboard(ctx, "c-1")
				stale <- len(rows)
			}()
			<-store.entered

			_, err := svc.SubmitAttempt(ctx, "u1", "c-1", []string{"judge", "olson"})
			So(err, ShouldBeNil)
			_, ok := pub.next(5 * time.Second)
			So(ok, ShouldBeTrue)
			close(store.release)
			So(<-stale, ShouldEqual, 0)

			Convey("Then later reads still see the attempt", func() {
				rows, err := svc.ChallengeLeaderboard(ctx, "c-1")
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 1)
				So(rows[0].UserID, ShouldEqual, "u1")
			})
		})

		Convey("When the global board is written back after an attempt", func() {
			stale := make(chan int, 1)
			go func() {
				page, _ := svc.GlobalLeaderboard(ctx, 1, 10)
				stale <- page.Total
			}()
			<-store.entered

			_, err := svc.SubmitAttempt(ctx, "u1", "c-1", []string{"judge", "olson"})
			So(err, ShouldBeNil)
			close(store.release)
			So(<-stale, ShouldEqual, 0)

			Convey("Then later reads still see the attempt", func() {
				page, err := svc.GlobalLeaderboard(ctx, 1, 10)
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 1)
			})
		})
	})
}
