package stat_test

import (
	"errors"
	"testing"

	"github.com/okian/dugout/internal/domain/stat"
	. "github.com/smartystreets/goconvey/convey"
)

func TestResolve(t *testing.T) {
	Convey("Given rule texts", t, func() {
		Convey("When a rule mentions RBIs and home runs", func() {
			Convey("Then RBIs win regardless of word order", func() {
				So(stat.Resolve("RBI and home run leaders"), ShouldEqual, stat.RBIs)
				So(stat.Resolve("home run and RBI leaders"), ShouldEqual, stat.RBIs)
			})
		})

		Convey("When a rule mentions stolen bases", func() {
			So(stat.Resolve("stolen base champions"), ShouldEqual, stat.StolenBases)
			So(stat.Resolve("Pick players with the most career stolen bases!"), ShouldEqual, stat.StolenBases)
		})

		Convey("When a rule mentions home runs in any case", func() {
			So(stat.Resolve("Pick players with the most HOME RUNS!"), ShouldEqual, stat.HomeRuns)
		})

		Convey("When a rule mentions stolen bases and home runs", func() {
			So(stat.Resolve("home runs or stolen bases"), ShouldEqual, stat.StolenBases)
		})

		Convey("When a rule matches nothing", func() {
			Convey("Then it silently defaults to home runs", func() {
				So(stat.Resolve("nonsense rule"), ShouldEqual, stat.HomeRuns)
				So(stat.Resolve(""), ShouldEqual, stat.HomeRuns)
			})

			Convey("And the strict variant reports the fallback", func() {
				k, ok := stat.ResolveStrict("nonsense rule")
				So(k, ShouldEqual, stat.Default)
				So(ok, ShouldBeFalse)

				k, ok = stat.ResolveStrict("Most RBIs in 2021")
				So(k, ShouldEqual, stat.RBIs)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When resolving the same rule twice", func() {
			So(stat.Resolve("RBI Machine"), ShouldEqual, stat.Resolve("RBI Machine"))
		})
	})
}

func TestParseAndDisplay(t *testing.T) {
	Convey("Given canonical key strings", t, func() {
		for _, s := range []string{"hrs", "RBIS", " sb "} {
			k, err := stat.Parse(s)
			So(err, ShouldBeNil)
			So(k.Valid(), ShouldBeTrue)
		}

		Convey("Then unknown keys are rejected", func() {
			_, err := stat.Parse("era")
			So(errors.Is(err, stat.ErrUnknownKey), ShouldBeTrue)
		})

		Convey("Then display names are human readable", func() {
			So(stat.HomeRuns.DisplayName(), ShouldEqual, "Home Runs")
			So(stat.RBIs.DisplayName(), ShouldEqual, "RBIs")
			So(stat.StolenBases.DisplayName(), ShouldEqual, "Stolen Bases")
			So(stat.Key("ops").DisplayName(), ShouldEqual, "OPS")
		})
	})
}
