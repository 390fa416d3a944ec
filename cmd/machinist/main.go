package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"machinist/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var flags rootFlags
	var logLevel string

	cmd := &cobra.Command{
		Use:           "machinist",
		Short:         "Manage the lifecycle of remotely-deployed machines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Configure(logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.definitions, "definitions", "d", "machinist.yaml",
		"machine definitions file")
	cmd.PersistentFlags().StringVar(&flags.statePath, "state", defaultStatePath(),
		"state database path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", logging.LevelInfo,
		"log level (debug, info, warn, error)")

	cmd.AddCommand(
		waitCmd(&flags),
		checkCmd(&flags),
		rebootCmd(&flags),
		sendKeysCmd(&flags),
		switchCmd(&flags),
		showCmd(&flags),
	)
	return cmd
}
