package scoring_test

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/internal/domain/scoring"
	"github.com/okian/dugout/internal/domain/stat"
	. "github.com/smartystreets/goconvey/convey"
)

func hrPool() []model.Player {
	return []model.Player{
		{ID: "p1", Name: "Aaron Judge", Stats: map[string]float64{"hrs": 62}},
		{ID: "p2", Name: "Shohei Ohtani", Stats: map[string]float64{"hrs": 46}},
		{ID: "p3", Name: "Matt Olson", Stats: map[string]float64{"hrs": 54}},
		{ID: "p4", Name: "Mookie Betts", Stats: map[string]float64{"hrs": 39}},
	}
}

func TestBestPossibleScore(t *testing.T) {
	Convey("Given the 62/46/54/39 home run pool", t, func() {
		pool := hrPool()

		Convey("When three picks are allowed", func() {
			best, err := scoring.BestPossibleScore(pool, 3, stat.HomeRuns)

			Convey("Then the best score is 62+54+46", func() {
				So(err, ShouldBeNil)
				So(best, ShouldEqual, 162)
			})

			Convey("And the pool keeps its original order", func() {
				So(pool[0].ID, ShouldEqual, "p1")
				So(pool[1].ID, ShouldEqual, "p2")
				So(pool[2].ID, ShouldEqual, "p3")
				So(pool[3].ID, ShouldEqual, "p4")
			})
		})

		Convey("When the pick limit exceeds the pool", func() {
			best, err := scoring.BestPossibleScore(pool, 10, stat.HomeRuns)

			Convey("Then the whole pool is summed", func() {
				So(err, ShouldBeNil)
				So(best, ShouldEqual, 201)
			})
		})

		Convey("When the stat is absent from every player", func() {
			best, err := scoring.BestPossibleScore(pool, 3, stat.StolenBases)
			So(err, ShouldBeNil)
			So(best, ShouldEqual, 0)
		})

		Convey("When the pool is empty", func() {
			best, err := scoring.BestPossibleScore(nil, 3, stat.HomeRuns)
			So(err, ShouldBeNil)
			So(best, ShouldEqual, 0)
		})

		Convey("When the stat key is unknown", func() {
			_, err := scoring.BestPossibleScore(pool, 3, stat.Key("era"))
			So(errors.Is(err, scoring.ErrUnknownStatKey), ShouldBeTrue)
		})
	})
}

func TestExpectedRandomScore(t *testing.T) {
	Convey("Given the 62/46/54/39 home run pool", t, func() {
		pool := hrPool()

		Convey("Then the expected random score is the unrounded mean times the limit", func() {
			expected, err := scoring.ExpectedRandomScore(pool, 3, stat.HomeRuns)
			So(err, ShouldBeNil)
			So(expected, ShouldEqual, 150.75)
		})

		Convey("Then an empty pool is not computable", func() {
			_, err := scoring.ExpectedRandomScore(nil, 3, stat.HomeRuns)
			So(errors.Is(err, scoring.ErrEmptyPool), ShouldBeTrue)
		})

		Convey("Then an unknown key is rejected", func() {
			_, err := scoring.ExpectedRandomScore(pool, 3, stat.Key(""))
			So(errors.Is(err, scoring.ErrUnknownStatKey), ShouldBeTrue)
		})
	})
}

func TestAchievedScore(t *testing.T) {
	Convey("Given picks from the home run pool", t, func() {
		pool := hrPool()

		Convey("Then the score sums the stat and treats absent keys as zero", func() {
			got, err := scoring.AchievedScore(pool[:2], stat.HomeRuns)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, 108)

			got, err = scoring.AchievedScore(pool[:2], stat.RBIs)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, 0)
		})

		Convey("Then denormalized picks sum to the same score", func() {
			entries := scoring.Denormalize(pool[1:], stat.HomeRuns)
			So(entries, ShouldHaveLength, 3)
			So(entries[0], ShouldResemble, model.PickEntry{PlayerID: "p2", Name: "Shohei Ohtani", StatValue: 46})
			achieved, _ := scoring.AchievedScore(pool[1:], stat.HomeRuns)
			So(scoring.SumPicks(entries), ShouldEqual, achieved)
		})
	})
}

func TestBestDominatesEveryLegalPickSet(t *testing.T) {
	Convey("Given random pools and random legal pick sets", t, func() {
		rng := rand.New(rand.NewSource(7))
		violations := 0
		for round := 0; round < 200; round++ {
			size := 1 + rng.Intn(12)
			pool := make([]model.Player, size)
			for i := range pool {
				pool[i] = model.Player{
					ID:    string(rune('a' + i)),
					Stats: map[string]float64{"rbis": float64(rng.Intn(150))},
				}
			}
			limit := 1 + rng.Intn(size)
			perm := rng.Perm(size)[:limit]
			picks := make([]model.Player, limit)
			for i, idx := range perm {
				picks[i] = pool[idx]
			}
			best, _ := scoring.BestPossibleScore(pool, limit, stat.RBIs)
			achieved, _ := scoring.AchievedScore(picks, stat.RBIs)
			if achieved > best {
				violations++
			}
		}

		Convey("Then no pick set beats the best possible score", func() {
			So(violations, ShouldEqual, 0)
		})
	})
}

func TestPercentages(t *testing.T) {
	Convey("Given achieved, best and expected scores", t, func() {
		Convey("Then percent of best is achieved over best", func() {
			pct, ok := scoring.PercentOfBest(81, 162)
			So(ok, ShouldBeTrue)
			So(pct, ShouldEqual, 50)
		})

		Convey("Then percent vs random is the relative gain over expected", func() {
			pct, ok := scoring.PercentVsRandom(150, 100)
			So(ok, ShouldBeTrue)
			So(pct, ShouldEqual, 50)

			pct, ok = scoring.PercentVsRandom(50, 100)
			So(ok, ShouldBeTrue)
			So(pct, ShouldEqual, -50)
		})

		Convey("Then non-finite results are not computable", func() {
			_, ok := scoring.PercentOfBest(math.Inf(1), 10)
			So(ok, ShouldBeFalse)
			_, ok = scoring.PercentVsRandom(math.NaN(), 10)
			So(ok, ShouldBeFalse)
		})

		Convey("Then zero denominators are not computable", func() {
			pct, ok := scoring.PercentOfBest(10, 0)
			So(ok, ShouldBeFalse)
			So(pct, ShouldEqual, 0)

			pct, ok = scoring.PercentVsRandom(10, 0)
			So(ok, ShouldBeFalse)
			So(pct, ShouldEqual, 0)
		})
	})
}

func TestValidatePicks(t *testing.T) {
	Convey("Given a pool and a pick limit of two", t, func() {
		pool := hrPool()

		Convey("When the picks are legal", func() {
			picks, err := scoring.ValidatePicks(pool, 2, []string{"p3", "p1"})

			Convey("Then the players come back in submission order", func() {
				So(err, ShouldBeNil)
				So(picks, ShouldHaveLength, 2)
				So(picks[0].ID, ShouldEqual, "p3")
				So(picks[1].ID, ShouldEqual, "p1")
			})
		})

		Convey("When too few picks are submitted", func() {
			_, err := scoring.ValidatePicks(pool, 2, []string{"p1"})
			So(errors.Is(err, scoring.ErrPickCount), ShouldBeTrue)
		})

		Convey("When a player is picked twice", func() {
			_, err := scoring.ValidatePicks(pool, 2, []string{"p1", "p1"})
			So(errors.Is(err, scoring.ErrDuplicatePick), ShouldBeTrue)
		})

		Convey("When a player is not in the pool", func() {
			_, err := scoring.ValidatePicks(pool, 2, []string{"p1", "p9"})
			So(errors.Is(err, scoring.ErrUnknownPlayer), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "p9")
		})
	})
}

func TestEvaluateAndCompare(t *testing.T) {
	Convey("Given a home run challenge", t, func() {
		c := &model.Challenge{Rule: "Pick players with the most home runs!", PickLimit: 3, Pool: hrPool()}

		b, err := scoring.Evaluate(c)

		Convey("Then the baseline resolves the stat and both reference scores", func() {
			So(err, ShouldBeNil)
			So(b.Key, ShouldEqual, stat.HomeRuns)
			So(b.StatLabel, ShouldEqual, "Home Runs")
			So(b.Best, ShouldEqual, 162)
			So(b.Expected, ShouldEqual, 150.75)
		})

		Convey("Then a perfect pick set is 100 percent of best", func() {
			perf := scoring.Compare(b, 162)
			So(perf.PercentOfBest, ShouldNotBeNil)
			So(*perf.PercentOfBest, ShouldEqual, 100)
			So(perf.PercentVsRandom, ShouldNotBeNil)
			So(*perf.PercentVsRandom, ShouldAlmostEqual, (162-150.75)/150.75*100, 1e-9)
		})

		Convey("Then repeated evaluation is identical", func() {
			again, err := scoring.Evaluate(c)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, b)
		})
	})

	Convey("Given a challenge whose stat is zero everywhere", t, func() {
		c := &model.Challenge{Rule: "Most stolen bases", PickLimit: 2, Pool: hrPool()}
		b, err := scoring.Evaluate(c)
		So(err, ShouldBeNil)

		Convey("Then comparisons are not computable rather than NaN", func() {
			perf := scoring.Compare(b, 0)
			So(perf.PercentOfBest, ShouldBeNil)
			So(perf.PercentVsRandom, ShouldBeNil)
		})
	})

	Convey("Given a challenge with an empty pool", t, func() {
		_, err := scoring.Evaluate(&model.Challenge{Rule: "home runs", PickLimit: 3})
		So(errors.Is(err, scoring.ErrEmptyPool), ShouldBeTrue)
	})
}

func TestMalformedStats(t *testing.T) {
	Convey("Given a pool where one player has a non-finite stat", t, func() {
		for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			pool := hrPool()
			pool[2].Stats = map[string]float64{"hrs": bad, "rbis": 100}

			Convey("When the stat is "+fmtFloat(bad), func() {
				Convey("Then the best possible score is rejected", func() {
					_, err := scoring.BestPossibleScore(pool, 2, stat.HomeRuns)
					So(errors.Is(err, scoring.ErrMalformedStats), ShouldBeTrue)
					So(err.Error(), ShouldContainSubstring, "p3")
				})

				Convey("Then the expected random score is rejected", func() {
					_, err := scoring.ExpectedRandomScore(pool, 2, stat.HomeRuns)
					So(errors.Is(err, scoring.ErrMalformedStats), ShouldBeTrue)
				})

				Convey("Then an achieved score over that player is rejected", func() {
					_, err := scoring.AchievedScore(pool[1:3], stat.HomeRuns)
					So(errors.Is(err, scoring.ErrMalformedStats), ShouldBeTrue)
				})

				Convey("Then evaluation fails instead of producing a baseline", func() {
					_, err := scoring.Evaluate(&model.Challenge{Rule: "home runs", PickLimit: 2, Pool: pool})
					So(errors.Is(err, scoring.ErrMalformedStats), ShouldBeTrue)
				})

				Convey("Then a different stat key still evaluates and marshals", func() {
					b, err := scoring.Evaluate(&model.Challenge{Rule: "most RBIs", PickLimit: 2, Pool: pool})
					So(err, ShouldBeNil)
					So(b.Best, ShouldEqual, 100)
					_, err = json.Marshal(scoring.Compare(b, 50))
					So(err, ShouldBeNil)
				})
			})
		}
	})
}

func fmtFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	}
	return "-Inf"
}
