package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/okian/dugout/internal/adapters/repository"
	"github.com/okian/dugout/internal/config"
	"github.com/okian/dugout/internal/domain/model"
	"github.com/okian/dugout/internal/domain/scoring"
	"github.com/okian/dugout/internal/domain/stat"
	"github.com/okian/dugout/internal/domain/types"
	"github.com/okian/dugout/internal/seed"
	"github.com/okian/dugout/pkg/logger"
	"github.com/spf13/cobra"
)

// errConfirm is returned by destructive commands run without --yes.
var errConfirm = errors.New("refusing to clear challenges without --yes")

func challengesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenges",
		Short: "Manage published challenges",
	}
	cmd.AddCommand(publishCmd())
	cmd.AddCommand(createTodayCmd())
	cmd.AddCommand(clearCmd())
	cmd.AddCommand(listCmd())
	cmd.AddCommand(inspectCmd())
	return cmd
}

// withStore bootstraps the process and runs fn against the configured store.
func withStore(ctx context.Context, fn func(repository.Store, logger.Logger) error) error {
	cfg, log, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	if cfg.Store == config.StoreMemory {
		log.Warn(ctx, "memory store selected; changes are lost when the command exits")
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close store", logger.Error(err))
		}
	}()
	return fn(store, log.Named("challenges"))
}

func publishCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a challenge set on consecutive days starting today",
		Long: "Publish the challenges in --file, or the built-in example set when no file is given.\n" +
			"Undated challenges are dated today, tomorrow and so on in file order.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := seed.Defaults()
			if file != "" {
				loaded, err := seed.LoadFile(file)
				if err != nil {
					return err
				}
				set = loaded
			}
			return withStore(cmd.Context(), func(store repository.Store, log logger.Logger) error {
				published, err := seed.Publish(cmd.Context(), store, set, seed.WithLogger(log))
				for _, c := range published {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", c.ID, c.ChallengeDate, c.Title)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML challenge set to publish")
	return cmd
}

func createTodayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-today",
		Short: "Create today's challenge unless one exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(store repository.Store, log logger.Logger) error {
				c, created, err := seed.CreateToday(cmd.Context(), store, seed.WithLogger(log))
				if err != nil {
					return err
				}
				state := "exists"
				if created {
					state = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", state, c.ID, c.ChallengeDate)
				return nil
			})
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every challenge and its attempts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errConfirm
			}
			return withStore(cmd.Context(), func(store repository.Store, log logger.Logger) error {
				n, err := store.ClearChallenges(cmd.Context())
				if err != nil {
					return err
				}
				log.Info(cmd.Context(), "challenges cleared", logger.Int("count", n))
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %d challenges\n", n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List challenges by date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(store repository.Store, _ logger.Logger) error {
				all, err := store.ListChallenges(cmd.Context())
				if err != nil {
					return err
				}
				return printChallenges(cmd.OutOrStdout(), all)
			})
		},
	}
}

func printChallenges(w io.Writer, all []model.Challenge) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSTAT\tPICKS\tTITLE")
	for _, c := range all {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n",
			c.ID, c.ChallengeDate, stat.Resolve(c.Rule), c.PickLimit, len(c.Pool), c.Title)
	}
	return tw.Flush()
}

func inspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <id>",
		Short: "Show a challenge with its stat and baselines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(store repository.Store, _ logger.Logger) error {
				c, err := store.GetChallenge(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("challenge %s: %w", args[0], err)
				}
				d := types.ChallengeDetail{Challenge: *c}
				b, evalErr := scoring.Evaluate(c)
				if evalErr == nil {
					d.Baseline = &b
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(d)
				}
				return printDetail(cmd.OutOrStdout(), d, evalErr)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printDetail(w io.Writer, d types.ChallengeDetail, evalErr error) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", d.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", d.Title)
	fmt.Fprintf(tw, "Date:\t%s\n", d.ChallengeDate)
	fmt.Fprintf(tw, "Rule:\t%s\n", d.Rule)
	if d.Baseline != nil {
		fmt.Fprintf(tw, "Stat:\t%s (%s)\n", d.Baseline.StatLabel, d.Baseline.Key)
		fmt.Fprintf(tw, "Picks:\t%d\n", d.Baseline.PickLimit)
		fmt.Fprintf(tw, "Best possible:\t%g\n", d.Baseline.Best)
		fmt.Fprintf(tw, "Expected random:\t%.2f\n", d.Baseline.Expected)
	} else {
		fmt.Fprintf(tw, "Baseline:\tunavailable (%v)\n", evalErr)
	}
	fmt.Fprintln(tw)
	key := stat.Resolve(d.Rule)
	fmt.Fprintln(tw, "PLAYER\tNAME\tTEAM\t"+key.DisplayName())
	for _, p := range d.Pool {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\n", p.ID, p.Name, p.Team, p.Stat(key.String()))
	}
	return tw.Flush()
}
