package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/dugout/internal/adapters/http/live"
	"github.com/okian/dugout/internal/adapters/repository"
	app "github.com/okian/dugout/internal/app"
	"github.com/okian/dugout/internal/config"
	"github.com/okian/dugout/internal/seed"
	"github.com/okian/dugout/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func run(args ...string) (string, error) {
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfiguration(t *testing.T) {
	Convey("Given DUGOUT_ environment variables", t, func() {
		t.Setenv("DUGOUT_ADDR", ":8181")
		t.Setenv("DUGOUT_QUEUE_SIZE", "1000")
		t.Setenv("DUGOUT_WORKER_COUNT", "4")
		t.Setenv("DUGOUT_LOG_FORMAT", "json")

		Convey("Then bootstrap loads them and initializes logging", func() {
			cfg, log, err := bootstrap(context.Background())
			So(err, ShouldBeNil)
			So(log, ShouldNotBeNil)
			So(cfg.Addr, ShouldEqual, ":8181")
			So(cfg.QueueSize, ShouldEqual, 1000)
			So(cfg.WorkerCount, ShouldEqual, 4)
		})
	})

	Convey("Given an unknown store driver", t, func() {
		t.Setenv("DUGOUT_STORE", "cassandra")

		Convey("Then bootstrap fails", func() {
			_, _, err := bootstrap(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestHandler(t *testing.T) {
	Convey("Given the wired HTTP handler", t, func() {
		So(logger.Init(logger.WithOutput(io.Discard)), ShouldBeNil)
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.AuthRequired = false

		svc := app.New(app.WithLogger(logger.Nop()), app.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		hub := live.NewHub(live.WithLogger(logger.Nop()))
		Reset(func() { _ = hub.Close() })

		h := newHandler(ctx, cfg, svc, hub, newAuthenticator(ctx, cfg, logger.Nop()), logger.Nop())

		for _, path := range []string{"/healthz", "/stats", "/challenges", "/leaderboard", "/openapi.yaml", "/api-docs", "/metrics"} {
			Convey("Then GET "+path+" answers 200", func() {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		}

		Convey("Then user routes trust X-User-ID when auth is optional", func() {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me/stats", nil)
			req.Header.Set("X-User-ID", "user-1")
			h.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("Then user routes answer 401 when auth is required", func() {
			cfg.AuthRequired = true
			strict := newHandler(ctx, cfg, svc, hub, newAuthenticator(ctx, cfg, logger.Nop()), logger.Nop())
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me/stats", nil)
			req.Header.Set("X-User-ID", "user-1")
			strict.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestChallengesCommands(t *testing.T) {
	Convey("Given a sqlite store", t, func() {
		t.Setenv("DUGOUT_STORE", "sqlite")
		t.Setenv("DUGOUT_SQLITE_PATH", filepath.Join(t.TempDir(), "dugout.db"))
		t.Setenv("DUGOUT_LOG_LEVEL", "error")

		Convey("When the example set is published", func() {
			out, err := run("challenges", "publish")
			So(err, ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(out), "\n")
			So(lines, ShouldHaveLength, 6)
			firstID := strings.Split(lines[0], "\t")[0]

			Convey("Then list shows every challenge", func() {
				out, err := run("challenges", "list")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Home Run Derby (2023)")
				So(out, ShouldContainSubstring, "Speedsters (Career)")
			})

			Convey("Then inspect prints the baseline", func() {
				out, err := run("challenges", "inspect", firstID, "--json")
				So(err, ShouldBeNil)
				var got struct {
					ID       string `json:"id"`
					Baseline struct {
						Key  string  `json:"stat_key"`
						Best float64 `json:"best_possible_score"`
					} `json:"baseline"`
				}
				So(json.Unmarshal([]byte(out), &got), ShouldBeNil)
				So(got.ID, ShouldEqual, firstID)
				So(got.Baseline.Key, ShouldEqual, "hrs")
				So(got.Baseline.Best, ShouldEqual, 163)

				text, err := run("challenges", "inspect", firstID)
				So(err, ShouldBeNil)
				So(text, ShouldContainSubstring, "Best possible:")
				So(text, ShouldContainSubstring, "Aaron Judge")
			})

			Convey("Then create-today keeps the existing challenge", func() {
				out, err := run("challenges", "create-today")
				So(err, ShouldBeNil)
				So(out, ShouldStartWith, "exists\t"+firstID)
			})

			Convey("Then clear needs confirmation", func() {
				_, err := run("challenges", "clear")
				So(err, ShouldEqual, errConfirm)

				out, err := run("challenges", "clear", "--yes")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "cleared 6 challenges")
			})
		})

		Convey("When create-today runs on an empty store", func() {
			out, err := run("challenges", "create-today")

			Convey("Then it creates the challenge", func() {
				So(err, ShouldBeNil)
				So(out, ShouldStartWith, "created\t")
			})
		})

		Convey("When inspect names an unknown challenge", func() {
			_, err := run("challenges", "inspect", "missing")

			Convey("Then it fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoadtestCommand(t *testing.T) {
	Convey("Given a running server with the example set", t, func() {
		So(logger.Init(logger.WithOutput(io.Discard)), ShouldBeNil)
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.AuthRequired = false

		store := repository.NewMemoryStore()
		published, err := seed.Publish(ctx, store, seed.Defaults())
		So(err, ShouldBeNil)
		svc := app.New(app.WithStore(store), app.WithLogger(logger.Nop()), app.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		hub := live.NewHub(live.WithLogger(logger.Nop()))
		Reset(func() { _ = hub.Close() })
		srv := httptest.NewServer(newHandler(ctx, cfg, svc, hub, newAuthenticator(ctx, cfg, logger.Nop()), logger.Nop()))
		Reset(srv.Close)

		Convey("When loadtest runs against it", func() {
			out, err := run("loadtest", "--url", srv.URL, "--challenge", published[1].ID, "--users", "12", "--workers", "3", "--seed", "3")

			Convey("Then every attempt is accepted and ranked", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "accepted=12")
				So(out, ShouldContainSubstring, "duplicates=12")
				So(out, ShouldContainSubstring, "entries=12")
			})
		})
	})
}
