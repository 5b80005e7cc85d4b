package main

import (
	"fmt"
	"os"

	"github.com/okian/dugout/internal/loadtest"
	"github.com/okian/dugout/pkg/logger"
	"github.com/spf13/cobra"
)

func loadtestCmd() *cobra.Command {
	cfg := &loadtest.Config{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Submit concurrent attempts to a running server and verify its leaderboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
				return err
			}
			if cfg.Secret == "" {
				cfg.Secret = os.Getenv("DUGOUT_AUTH_JWT_SECRET")
			}
			stats, err := loadtest.Run(cmd.Context(), cfg, logger.Named("loadtest"))
			fmt.Fprintf(cmd.OutOrStdout(),
				"challenge=%s submitted=%d accepted=%d duplicates=%d failed=%d entries=%d top=%s(%g) duration=%s\n",
				stats.ChallengeID, stats.Submitted, stats.Accepted, stats.Duplicates, stats.Failed,
				stats.Entries, stats.TopUser, stats.TopScore, stats.Duration)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", loadtest.DefaultBaseURL, "base URL of the service")
	f.StringVar(&cfg.ChallengeID, "challenge", "", "challenge id (default: today's)")
	f.IntVar(&cfg.Users, "users", loadtest.DefaultUsers, "number of users")
	f.IntVar(&cfg.Workers, "workers", loadtest.DefaultWorkers, "concurrent submitters")
	f.BoolVar(&cfg.Duplicates, "duplicates", true, "resubmit each attempt and expect 409")
	f.DurationVar(&cfg.Timeout, "timeout", loadtest.DefaultTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", loadtest.DefaultSettleWindow, "time allowed for the leaderboard to catch up")
	f.StringVar(&cfg.Secret, "secret", "", "HS256 secret used to sign tokens (default: $DUGOUT_AUTH_JWT_SECRET)")
	f.StringVar(&cfg.UserPrefix, "user-prefix", "loadtest", "prefix of generated user ids")
	f.Uint64Var(&cfg.Seed, "seed", 0, "pick generator seed (default: time based)")
	return cmd
}
