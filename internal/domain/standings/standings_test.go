package standings_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/internal/domain/scoring"
	"github.com/okian/dugout/internal/domain/standings"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func attempt(id, user string, score float64, offset time.Duration) model.Attempt {
	return model.Attempt{ID: id, UserID: user, ChallengeID: "c-1", Score: score, CreatedAt: t0.Add(offset)}
}

func TestForChallenge(t *testing.T) {
	Convey("Given attempts on one challenge", t, func() {
		attempts := []model.Attempt{
			attempt("a1", "u1", 140, 0),
			attempt("a2", "u2", 162, time.Minute),
			attempt("a3", "u3", 140, -time.Minute),
		}

		rows := standings.ForChallenge(attempts, map[string]string{"u2": "slugger"})

		Convey("Then rows are ordered by score with earlier submissions first on ties", func() {
			So(rows, ShouldHaveLength, 3)
			So(rows[0].AttemptID, ShouldEqual, "a2")
			So(rows[0].Username, ShouldEqual, "slugger")
			So(rows[1].AttemptID, ShouldEqual, "a3")
			So(rows[2].AttemptID, ShouldEqual, "a1")
			So(rows[2].Rank, ShouldEqual, 3)
		})

		Convey("Then unknown usernames fall back to the user id", func() {
			So(rows[1].Username, ShouldEqual, "u3")
		})

		Convey("And the input order is untouched", func() {
			So(attempts[0].ID, ShouldEqual, "a1")
		})
	})

	Convey("Given no attempts", t, func() {
		So(standings.ForChallenge(nil, nil), ShouldBeEmpty)
	})
}

func TestGlobal(t *testing.T) {
	Convey("Given records across users and challenges", t, func() {
		base := scoring.Baseline{Best: 200, Expected: 100}
		zero := scoring.Baseline{}
		records := []standings.Record{
			{Attempt: attempt("a1", "u1", 100, 0), Baseline: base, Username: "one"},
			{Attempt: attempt("a2", "u1", 150, 0), Baseline: base, Username: "one"},
			{Attempt: attempt("a3", "u2", 300, 0), Baseline: zero},
			{Attempt: attempt("a4", "u3", 50, 0), Baseline: base},
		}

		Convey("When the first page is requested", func() {
			page := standings.Global(records, 1, 2)

			Convey("Then users are ranked by total score", func() {
				So(page.Total, ShouldEqual, 3)
				So(page.HasMore, ShouldBeTrue)
				So(page.Entries, ShouldHaveLength, 2)
				So(page.Entries[0].UserID, ShouldEqual, "u2")
				So(page.Entries[0].Accuracy, ShouldBeNil)
				So(page.Entries[1].UserID, ShouldEqual, "u1")
				So(page.Entries[1].Username, ShouldEqual, "one")
				So(page.Entries[1].TotalScore, ShouldEqual, 250)
				So(page.Entries[1].ChallengesCompleted, ShouldEqual, 2)
				So(*page.Entries[1].Accuracy, ShouldEqual, 62.5)
			})
		})

		Convey("When the last page is requested", func() {
			page := standings.Global(records, 2, 2)
			So(page.HasMore, ShouldBeFalse)
			So(page.Entries, ShouldHaveLength, 1)
			So(page.Entries[0].Rank, ShouldEqual, 3)
			So(page.Entries[0].Username, ShouldEqual, "u3")
		})

		Convey("When the page is past the end", func() {
			page := standings.Global(records, 9, 2)
			So(page.Entries, ShouldBeEmpty)
			So(page.HasMore, ShouldBeFalse)
		})

		Convey("When page and limit are out of range they are clamped", func() {
			page := standings.Global(records, -1, 0)
			So(page.Page, ShouldEqual, 1)
			So(page.Limit, ShouldEqual, standings.DefaultPageLimit)

			page = standings.Global(records, 1, 10_000)
			So(page.Limit, ShouldEqual, standings.MaxPageLimit)
		})
	})

	Convey("Given equal totals", t, func() {
		var records []standings.Record
		for _, u := range []string{"u9", "u3", "u5"} {
			records = append(records, standings.Record{Attempt: attempt(fmt.Sprintf("a-%s", u), u, 10, 0)})
		}
		page := standings.Global(records, 1, 10)

		Convey("Then ties are broken by user id", func() {
			So(page.Entries[0].UserID, ShouldEqual, "u3")
			So(page.Entries[1].UserID, ShouldEqual, "u5")
			So(page.Entries[2].UserID, ShouldEqual, "u9")
		})
	})
}

func TestProfile(t *testing.T) {
	Convey("Given no records", t, func() {
		_, ok := standings.Profile(nil)
		So(ok, ShouldBeFalse)
	})

	Convey("Given a user's records", t, func() {
		records := []standings.Record{
			{Attempt: attempt("a1", "u1", 162, 0), Baseline: scoring.Baseline{Best: 162, Expected: 150.75}},
			{Attempt: attempt("a2", "u1", 50, 0), Baseline: scoring.Baseline{Best: 200, Expected: 100}},
			{Attempt: attempt("a3", "u1", 0, 0), Baseline: scoring.Baseline{}},
		}

		stats, ok := standings.Profile(records)

		Convey("Then totals and averages are rounded to one decimal", func() {
			So(ok, ShouldBeTrue)
			So(stats.TotalAttempts, ShouldEqual, 3)
			So(stats.AverageScore, ShouldEqual, 70.7)
			So(stats.BestScore, ShouldEqual, 162)
			So(*stats.AverageAccuracy, ShouldEqual, 62.5)
			// (7.4626... + -50) / 2
			So(*stats.AverageVsRandom, ShouldEqual, -21.3)
		})
	})

	Convey("Given only records with zero baselines", t, func() {
		stats, ok := standings.Profile([]standings.Record{{Attempt: attempt("a1", "u1", 0, 0)}})

		Convey("Then the percentage averages are not computable", func() {
			So(ok, ShouldBeTrue)
			So(stats.AverageAccuracy, ShouldBeNil)
			So(stats.AverageVsRandom, ShouldBeNil)
		})
	})
}
