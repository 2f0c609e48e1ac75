package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/telebill/pkg/config"
	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/requestid"
	"github.com/dmitrymomot/telebill/pkg/scheduler"
)

type configLoader func() (Config, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(config.Load[Config])
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the binary without a
// subcommand runs serve.
func newRootCmd(loadConfig func(...config.LoadOption) (Config, error)) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "billing-scheduler",
		Short:         "Recurring billing and subscription lifecycle scheduler",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	envFile := rootCmd.PersistentFlags().String("env-file", "", "extra dotenv file; .env in the working directory is always read when present")

	load := func() (Config, error) {
		var opts []config.LoadOption
		if *envFile != "" {
			opts = append(opts, config.WithEnvFiles(*envFile))
		}
		return loadConfig(opts...)
	}

	serve := serveCmd(load)
	rootCmd.RunE = serve.RunE
	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(runOnceCmd(load))
	rootCmd.AddCommand(migrateCmd(load))
	rootCmd.AddCommand(provisionPlansCmd(load))
	return rootCmd
}

func newLogger(cfg Config) *slog.Logger {
	l := logger.New(
		logger.WithEnvironment(cfg.Environment(), cfg.Name),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithContextExtractors(scheduler.LogExtractors()...),
		logger.WithContextExtractors(requestid.LogExtractor()),
	)
	logger.SetAsDefault(l)
	return l
}
