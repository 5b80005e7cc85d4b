package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/dugout/internal/config"
	"github.com/okian/dugout/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgFile, envFile string

	root := &cobra.Command{
		Use:           "dugout",
		Short:         "Daily baseball pick challenges",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Flags win over the environment; config.Load reads both.
			if cfgFile != "" {
				if err := os.Setenv(config.EnvConfig, cfgFile); err != nil {
					return err
				}
			}
			if envFile != "" {
				if err := os.Setenv(config.EnvFile, envFile); err != nil {
					return err
				}
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default: $"+config.EnvConfig+")")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file (default: $"+config.EnvFile+" or .env)")

	root.AddCommand(serveCmd())
	root.AddCommand(challengesCmd())
	root.AddCommand(loadtestCmd())
	return root
}

// bootstrap loads configuration and initializes the global logger.
func bootstrap(ctx context.Context) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(logger.Format(cfg.LogFormat)), logger.WithOutput(os.Stderr)); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, log, nil
}
